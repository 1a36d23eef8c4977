package types

import "errors"

// Error kinds surfaced by the indexing and retrieval core. Per-file IO and
// per-batch embed/storage failures are logged and skipped; these sentinels
// mark the conditions that abort a call or need caller-side branching.
var (
	// ErrConfig indicates an invalid or missing collaborator/configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrAborted indicates the caller cancelled the operation; the current
	// flush completed but the snapshot was not updated.
	ErrAborted = errors.New("operation aborted")

	// ErrCollectionMissing indicates a search against a codebase
	// that has never been indexed.
	ErrCollectionMissing = errors.New("collection does not exist")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the collection's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// VectorDocument is the persisted unit stored in a vector collection.
type VectorDocument struct {
	ID            string
	Vector        []float32
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      string
	// Sparse holds a term->weight map when the collection carries a sparse
	// field; nil otherwise.
	Sparse map[string]float64
}

// DocumentID derives the deterministic document id for a chunk. The id is a
// pure function of (relativePath, startLine, endLine, content), so re-emitting
// the same chunk always produces the same id and upserts are idempotent.
func DocumentID(relativePath string, startLine, endLine int, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d:%s", relativePath, startLine, endLine, content)))
	return "chunk_" + hex.EncodeToString(sum[:8])
}

// Validate checks the document's structural invariants.
func (d *VectorDocument) Validate() error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if len(d.Vector) == 0 {
		return errors.New("document vector cannot be empty")
	}
	if d.RelativePath == "" {
		return errors.New("relative path is required")
	}
	if d.StartLine <= 0 || d.EndLine < d.StartLine {
		return errors.New("invalid line span")
	}
	return nil
}

// SearchResult is one hit returned by the query planner.
type SearchResult struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	Language     string
	Score        float64
}

// Progress reports pipeline progress to an optional callback. Percentage is
// in [0,100] and monotonically non-decreasing within a single call.
type Progress struct {
	Phase      string
	Current    int
	Total      int
	Percentage float64
}

// ProgressFunc receives progress updates during indexing.
type ProgressFunc func(Progress)

// IndexStats summarizes a completed IndexCodebase call. TotalChunks counts
// persisted chunks only; IndexedFiles counts files that were read and split,
// whether or not their chunks were persisted.
type IndexStats struct {
	IndexedFiles int
	TotalChunks  int
}

// ReindexStats summarizes a completed ReindexByChange call.
type ReindexStats struct {
	Added    int
	Removed  int
	Modified int
}

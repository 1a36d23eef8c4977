// Package types provides shared value types for the code indexer.
//
// CodeChunk is the splitter's output: a contiguous slice of a source file
// with 1-based inclusive line numbers and an optional AST node tag.
// VectorDocument is the persisted unit: a chunk paired with its embedding
// and a deterministic id derived from (relative_path, start_line, end_line,
// content), which makes re-indexing idempotent.
//
// Chunks and documents are plain values owned by their producing component;
// nothing in this package is shared mutably.
package types

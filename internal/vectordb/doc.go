// Package vectordb defines the abstract vector database consumed by the
// indexing pipeline and the query planner, plus two adapters: a SQLite
// store (pure-Go or cgo driver selected by build tag) and an in-memory
// store with identical semantics.
//
// Collections are anchored to an embedding dimension at creation time and
// never mutated in place. Dense search is cosine similarity; sparse search
// is an inner product over term->weight maps; hybrid search fuses the two
// ranked lists with reciprocal-rank fusion or a weighted sum.
//
// Query filters use a small expression grammar limited to field equality
// and list membership over string-typed fields:
//
//	relative_path == "internal/server.go"
//	file_extension in [".go", ".ts"]
package vectordb

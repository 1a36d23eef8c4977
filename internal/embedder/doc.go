// Package embedder turns text into dense vectors behind a single Embedder
// interface. Providers: the OpenAI embeddings API (via the go-openai SDK,
// pointable at any compatible endpoint), a local Ollama daemon, and a
// deterministic hash-derived provider for tests and offline use.
//
// Batch output order always matches input order. Vectors are cached in an
// LRU keyed by sha256 of the text, and transient API failures are retried
// with exponential backoff that respects context cancellation.
package embedder

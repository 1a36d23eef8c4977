// Package indexer orchestrates the indexing pipeline: enumerate files
// through the ignore engine, split each file into chunks, stream the chunks
// through a single bounded buffer, batch-embed, and bulk-insert into the
// vector store.
//
// Peak memory is about EmbedBatch x average chunk size, independent of
// repository size: the buffer is cleared on every flush attempt, even a
// failed one. Document ids are deterministic, so any partial run is safely
// restartable and re-indexing is idempotent. Incremental runs use the
// filesync snapshot to touch only added, modified, and removed files.
package indexer

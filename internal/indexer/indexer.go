package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/collection"
	"github.com/dshills/codeindexer/internal/embedder"
	"github.com/dshills/codeindexer/internal/enrich"
	"github.com/dshills/codeindexer/internal/filesync"
	"github.com/dshills/codeindexer/internal/ignore"
	"github.com/dshills/codeindexer/internal/splitter"
	"github.com/dshills/codeindexer/internal/vectordb"
	"github.com/dshills/codeindexer/pkg/types"
)

const (
	// DefaultEmbedBatch is the flush threshold for the streaming buffer.
	DefaultEmbedBatch = 100

	// DefaultSnapshotDirName is the per-user snapshot directory under $HOME.
	DefaultSnapshotDirName = ".codeindexer/merkle"
)

// DefaultExtensions are the source file extensions indexed when none are
// configured.
var DefaultExtensions = []string{
	".go", ".java", ".js", ".jsx", ".mjs", ".ts", ".tsx",
	".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".kt", ".scala",
	".py", ".rb", ".rs", ".php", ".swift", ".m", ".md", ".txt",
}

// Config parameterizes the orchestrator.
type Config struct {
	EmbedBatch          int      // flush threshold; default 100, min 1
	EnableSparse        bool     // store sparse term maps for hybrid search
	SupportedExtensions []string // lowercase dotted extensions; nil = defaults
	IgnorePatterns      []string // merged with the default denylist
	SnapshotDir         string   // default $HOME/.codeindexer/merkle
	MaxParallelBatches  int      // enrichment parallelism; <=1 is serial
}

func (c *Config) applyDefaults() {
	if c.EmbedBatch < 1 {
		c.EmbedBatch = DefaultEmbedBatch
	}
	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = DefaultExtensions
	}
	if c.SnapshotDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.SnapshotDir = filepath.Join(home, filepath.FromSlash(DefaultSnapshotDirName))
	}
}

// Orchestrator runs the indexing pipeline: walk files, split, buffer,
// batch-embed, bulk-insert. The pipeline is single-threaded cooperative:
// chunks from one file are fully produced before the next file begins, and
// only outbound calls may block.
type Orchestrator struct {
	cfg         Config
	splitter    *splitter.Splitter
	embedder    embedder.Embedder
	store       vectordb.VectorStore
	collections *collection.Manager
	engine      *ignore.Engine
	enricher    *enrich.Pipeline
	extensions  map[string]bool
	logger      *zap.Logger
}

// New creates an Orchestrator. The splitter, embedder, and store are
// required collaborators; a missing one is a configuration error.
func New(cfg Config, split *splitter.Splitter, emb embedder.Embedder, store vectordb.VectorStore, transformer enrich.Transformer, logger *zap.Logger) (*Orchestrator, error) {
	if split == nil || emb == nil || store == nil {
		return nil, fmt.Errorf("%w: splitter, embedder, and vector store are required", types.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.applyDefaults()

	extensions := make(map[string]bool, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		extensions[strings.ToLower(ext)] = true
	}

	var pipeline *enrich.Pipeline
	if transformer != nil {
		pipeline = enrich.NewPipeline(transformer, cfg.MaxParallelBatches)
	}

	return &Orchestrator{
		cfg:         cfg,
		splitter:    split,
		embedder:    emb,
		store:       store,
		collections: collection.NewManager(store, emb, logger),
		engine:      ignore.New(cfg.IgnorePatterns...),
		enricher:    pipeline,
		extensions:  extensions,
		logger:      logger,
	}, nil
}

// fileEntry is one enumerated source file.
type fileEntry struct {
	absPath string
	relPath string
}

// IndexCodebase indexes every supported file under path into the codebase's
// collection and records the content-hash snapshot for later incremental
// runs. TotalChunks counts persisted chunks only; IndexedFiles counts every
// file that was read and split, whether or not its chunks were persisted.
func (o *Orchestrator) IndexCodebase(ctx context.Context, path string, progress types.ProgressFunc) (*types.IndexStats, error) {
	root, err := o.checkRoot(path)
	if err != nil {
		return nil, err
	}

	name, err := o.collections.Prepare(ctx, root, o.cfg.EnableSparse)
	if err != nil {
		return nil, err
	}

	reporter := newReporter(progress)
	reporter.report("scanning", 0, 1)

	files, err := o.enumerate(root)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}

	stats := &types.IndexStats{}
	if err := o.indexFiles(ctx, name, root, files, reporter, stats); err != nil {
		return stats, err
	}

	// Persisting the snapshot last means an aborted run leaves the previous
	// snapshot authoritative.
	if _, err := o.synchronizer(root).Delta(ctx); err != nil {
		return stats, fmt.Errorf("record snapshot: %w", err)
	}

	reporter.report("completed", 1, 1)

	o.logger.Info("codebase indexed",
		zap.String("path", root),
		zap.String("collection", name),
		zap.Int("files", stats.IndexedFiles),
		zap.Int("chunks", stats.TotalChunks))

	return stats, nil
}

// ReindexByChange computes the snapshot delta, deletes vectors of removed
// and modified files, and re-runs the pipeline over added and modified
// files.
func (o *Orchestrator) ReindexByChange(ctx context.Context, path string, progress types.ProgressFunc) (*types.ReindexStats, error) {
	root, err := o.checkRoot(path)
	if err != nil {
		return nil, err
	}

	name, err := o.collections.Prepare(ctx, root, o.cfg.EnableSparse)
	if err != nil {
		return nil, err
	}

	reporter := newReporter(progress)
	reporter.report("diffing", 0, 1)

	delta, err := o.synchronizer(root).Delta(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute delta: %w", err)
	}

	stats := &types.ReindexStats{
		Added:    len(delta.Added),
		Removed:  len(delta.Removed),
		Modified: len(delta.Modified),
	}

	if delta.Empty() {
		reporter.report("completed", 1, 1)
		return stats, nil
	}

	// Stale vectors go first so a modified file is never half old, half new.
	for _, rel := range append(append([]string{}, delta.Removed...), delta.Modified...) {
		if err := o.deleteFileChunks(ctx, name, rel); err != nil {
			return stats, fmt.Errorf("delete chunks for %s: %w", rel, err)
		}
	}

	var files []fileEntry
	for _, rel := range append(append([]string{}, delta.Added...), delta.Modified...) {
		files = append(files, fileEntry{
			absPath: filepath.Join(root, filepath.FromSlash(rel)),
			relPath: rel,
		})
	}

	indexStats := &types.IndexStats{}
	if err := o.indexFiles(ctx, name, root, files, reporter, indexStats); err != nil {
		return stats, err
	}

	reporter.report("completed", 1, 1)

	o.logger.Info("incremental reindex finished",
		zap.String("path", root),
		zap.Int("added", stats.Added),
		zap.Int("removed", stats.Removed),
		zap.Int("modified", stats.Modified))

	return stats, nil
}

// ClearIndex drops the codebase's collection and deletes its snapshot.
func (o *Orchestrator) ClearIndex(ctx context.Context, path string) error {
	root, err := o.checkRoot(path)
	if err != nil {
		return err
	}

	if err := o.collections.Drop(ctx, root); err != nil {
		return err
	}
	return o.synchronizer(root).Clear()
}

// indexFiles streams files through the split -> buffer -> embed -> insert
// pipeline. The buffer flushes whenever it reaches EmbedBatch chunks, and is
// cleared even when a flush fails so memory stays bounded; failed batches
// are logged and skipped.
func (o *Orchestrator) indexFiles(ctx context.Context, name, root string, files []fileEntry, reporter *reporter, stats *types.IndexStats) error {
	var buffer []pendingChunk

	for i, file := range files {
		if ctx.Err() != nil {
			// Complete the current flush, then surface the abort.
			stats.TotalChunks += o.flush(ctx, name, buffer)
			return fmt.Errorf("%w: %v", types.ErrAborted, ctx.Err())
		}

		content, err := os.ReadFile(file.absPath)
		if err != nil {
			o.logger.Warn("skipping unreadable file",
				zap.String("file", file.absPath), zap.Error(err))
			continue
		}

		language := splitter.LanguageForPath(file.relPath)
		chunks := o.splitter.Split(string(content), language, file.absPath)
		for _, chunk := range chunks {
			buffer = append(buffer, pendingChunk{chunk: chunk, relPath: file.relPath})
		}
		stats.IndexedFiles++

		if len(buffer) >= o.cfg.EmbedBatch {
			stats.TotalChunks += o.flush(ctx, name, buffer)
			buffer = buffer[:0]
		}

		reporter.report("indexing", i+1, len(files))
	}

	stats.TotalChunks += o.flush(ctx, name, buffer)
	return nil
}

// pendingChunk pairs a chunk with its codebase-relative path.
type pendingChunk struct {
	chunk   types.CodeChunk
	relPath string
}

// flush embeds and inserts the buffered chunks, returning how many were
// persisted. Per-batch embed and storage failures are logged and the batch
// is dropped; the pipeline continues.
func (o *Orchestrator) flush(ctx context.Context, name string, buffer []pendingChunk) int {
	if len(buffer) == 0 {
		return 0
	}

	texts := o.embeddingTexts(ctx, buffer)

	limit := o.cfg.EmbedBatch
	if max := o.embedder.MaxBatchSize(); max > 0 && max < limit {
		limit = max
	}

	inserted := 0
	for start := 0; start < len(buffer); start += limit {
		end := start + limit
		if end > len(buffer) {
			end = len(buffer)
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			o.logger.Error("embedding batch failed, skipping",
				zap.Int("batch_size", end-start), zap.Error(err))
			continue
		}

		docs := make([]types.VectorDocument, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, o.buildDocument(&buffer[i], vectors[i-start]))
		}

		if err := o.store.Insert(ctx, name, docs); err != nil {
			o.logger.Error("insert batch failed, skipping",
				zap.Int("batch_size", len(docs)), zap.Error(err))
			continue
		}
		inserted += len(docs)
	}

	return inserted
}

// embeddingTexts runs the optional enrichment transform; the persisted
// content always stays the original chunk content.
func (o *Orchestrator) embeddingTexts(ctx context.Context, buffer []pendingChunk) []string {
	texts := make([]string, len(buffer))
	for i := range buffer {
		texts[i] = buffer[i].chunk.Content
	}

	if o.enricher == nil {
		return texts
	}

	chunks := make([]types.CodeChunk, len(buffer))
	for i := range buffer {
		chunks[i] = buffer[i].chunk
	}

	enriched, err := o.enricher.Texts(ctx, chunks)
	if err != nil {
		o.logger.Warn("enrichment failed, embedding raw content", zap.Error(err))
		return texts
	}
	return enriched
}

func (o *Orchestrator) buildDocument(pending *pendingChunk, vector []float32) types.VectorDocument {
	chunk := &pending.chunk

	metadata, _ := json.Marshal(map[string]string{
		"language":  chunk.Language,
		"node_type": string(chunk.NodeType),
		"node_name": chunk.NodeName,
	})

	doc := types.VectorDocument{
		ID:            types.DocumentID(pending.relPath, chunk.StartLine, chunk.EndLine, chunk.Content),
		Vector:        vector,
		Content:       chunk.Content,
		RelativePath:  pending.relPath,
		StartLine:     chunk.StartLine,
		EndLine:       chunk.EndLine,
		FileExtension: strings.ToLower(filepath.Ext(pending.relPath)),
		Metadata:      string(metadata),
	}

	if o.cfg.EnableSparse {
		doc.Sparse = vectordb.EncodeSparse(chunk.Content)
	}
	return doc
}

// deleteFileChunks removes every vector for one relative path via
// query-then-delete, the portable contract when the store has no native
// predicate delete.
func (o *Orchestrator) deleteFileChunks(ctx context.Context, name, relPath string) error {
	rows, err := o.store.Query(ctx, name, fmt.Sprintf("relative_path == %q", relPath), []string{"id"}, 0)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row["id"]; id != "" {
			ids = append(ids, id)
		}
	}
	return o.store.Delete(ctx, name, ids)
}

func (o *Orchestrator) enumerate(root string) ([]fileEntry, error) {
	var files []fileEntry
	err := o.engine.Walk(root, o.extensions, func(absPath, relPath string) error {
		files = append(files, fileEntry{absPath: absPath, relPath: relPath})
		return nil
	})
	return files, err
}

func (o *Orchestrator) synchronizer(root string) *filesync.Synchronizer {
	return filesync.New(root, o.cfg.SnapshotDir, o.engine, o.extensions, o.logger)
}

func (o *Orchestrator) checkRoot(path string) (string, error) {
	root, err := collection.Canonical(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", types.ErrConfig, root)
	}
	return root, nil
}

// reporter forwards progress to the optional callback, keeping the
// percentage monotonically non-decreasing within one call.
type reporter struct {
	cb      types.ProgressFunc
	lastPct float64
}

func newReporter(cb types.ProgressFunc) *reporter {
	return &reporter{cb: cb}
}

func (r *reporter) report(phase string, current, total int) {
	if r.cb == nil {
		return
	}

	pct := 100.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100.0
	}
	if pct < r.lastPct {
		pct = r.lastPct
	}
	r.lastPct = pct

	r.cb(types.Progress{Phase: phase, Current: current, Total: total, Percentage: pct})
}

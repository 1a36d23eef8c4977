package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/internal/collection"
	"github.com/dshills/codeindexer/internal/embedder"
	"github.com/dshills/codeindexer/internal/splitter"
	"github.com/dshills/codeindexer/internal/vectordb"
	"github.com/dshills/codeindexer/pkg/types"
)

type harness struct {
	orch  *Orchestrator
	store *vectordb.MemoryStore
	root  string
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	cfg.SnapshotDir = t.TempDir()

	store := vectordb.NewMemoryStore()
	split := splitter.New(splitter.Options{ChunkSize: 500, ChunkOverlap: 50}, nil)
	orch, err := New(cfg, split, embedder.NewHashProvider(nil), store, nil, nil)
	require.NoError(t, err)

	return &harness{orch: orch, store: store, root: t.TempDir()}
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(h.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) collectionName(t *testing.T) string {
	t.Helper()
	name, err := collection.Name(h.root)
	require.NoError(t, err)
	return name
}

func (h *harness) allIDs(t *testing.T) []string {
	t.Helper()
	rows, err := h.store.Query(context.Background(), h.collectionName(t), "", []string{"id"}, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row["id"])
	}
	sort.Strings(ids)
	return ids
}

const goSample = `package sample

// Greet returns a greeting.
func Greet(name string) string {
	return "hello " + name
}

// Part returns a farewell.
func Part(name string) string {
	return "goodbye " + name
}
`

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestIndexCodebase_CountsAndDocuments(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "sample.go", goSample)
	h.write(t, "notes.txt", "plain text notes\n")

	stats, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.IndexedFiles)
	assert.Equal(t, 3, stats.TotalChunks, "two Go functions plus one text window")

	rows, err := h.store.Query(context.Background(), h.collectionName(t), `relative_path == "sample.go"`, []string{"id", "content"}, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestIndexCodebase_IsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "sample.go", goSample)

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)
	first := h.allIDs(t)
	require.NotEmpty(t, first)

	_, err = h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)
	second := h.allIDs(t)

	assert.Equal(t, first, second, "re-indexing must produce the identical id set")
}

func TestIndexCodebase_ProgressIsMonotone(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "a.go", goSample)
	h.write(t, "b.go", goSample)
	h.write(t, "c.txt", "text\n")

	last := -1.0
	var phases []string
	_, err := h.orch.IndexCodebase(context.Background(), h.root, func(p types.Progress) {
		assert.GreaterOrEqual(t, p.Percentage, last)
		assert.LessOrEqual(t, p.Percentage, 100.0)
		last = p.Percentage
		phases = append(phases, p.Phase)
	})
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	assert.Equal(t, "completed", phases[len(phases)-1])
	assert.Equal(t, 100.0, last)
}

func TestIndexCodebase_AbortSkipsSnapshot(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "sample.go", goSample)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.IndexCodebase(ctx, h.root, nil)
	assert.ErrorIs(t, err, types.ErrAborted)

	// An incremental run afterwards still sees everything as new.
	stats, err := h.orch.ReindexByChange(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
}

func TestReindexByChange_DetectsModification(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "x.txt", "version one\n")

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)
	oldIDs := h.allIDs(t)
	require.NotEmpty(t, oldIDs)

	h.write(t, "x.txt", "version two\n")

	stats, err := h.orch.ReindexByChange(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ReindexStats{Added: 0, Removed: 0, Modified: 1}, *stats)

	newIDs := h.allIDs(t)
	require.NotEmpty(t, newIDs)
	assert.NotEqual(t, oldIDs, newIDs, "modified content yields new document ids")

	rows, err := h.store.Query(context.Background(), h.collectionName(t), `relative_path == "x.txt"`, []string{"content"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0]["content"], "version two")
}

func TestReindexByChange_DetectsRemoval(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "keep.txt", "kept\n")
	h.write(t, "gone.txt", "going away\n")

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(h.root, "gone.txt")))

	stats, err := h.orch.ReindexByChange(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Modified)

	rows, err := h.store.Query(context.Background(), h.collectionName(t), `relative_path == "gone.txt"`, []string{"id"}, 0)
	require.NoError(t, err)
	assert.Empty(t, rows, "no document for a removed file may remain")
}

func TestReindexByChange_NoChanges(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "a.txt", "stable\n")

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)

	stats, err := h.orch.ReindexByChange(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ReindexStats{}, *stats)
}

func TestIndexCodebase_HonorsIgnorePatterns(t *testing.T) {
	h := newHarness(t, Config{IgnorePatterns: []string{"build/**"}})
	h.write(t, "build/out.js", "generated()\n")
	h.write(t, "src/app.js", "function app() { return 1 }\n")

	stats, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.IndexedFiles)

	rows, err := h.store.Query(context.Background(), h.collectionName(t), `relative_path == "build/out.js"`, []string{"id"}, 0)
	require.NoError(t, err)
	assert.Empty(t, rows, "ignored files are never indexed")
}

func TestIndexCodebase_SparseDocuments(t *testing.T) {
	h := newHarness(t, Config{EnableSparse: true})
	h.write(t, "sample.go", goSample)

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)

	schema, err := h.store.DescribeCollection(context.Background(), h.collectionName(t))
	require.NoError(t, err)
	assert.True(t, schema.HasSparse)
}

func TestIndexCodebase_SmallEmbedBatchStreams(t *testing.T) {
	h := newHarness(t, Config{EmbedBatch: 1})
	h.write(t, "sample.go", goSample)
	h.write(t, "more.go", goSample)

	stats, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalChunks)
}

func TestClearIndex(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, "sample.go", goSample)

	_, err := h.orch.IndexCodebase(context.Background(), h.root, nil)
	require.NoError(t, err)

	require.NoError(t, h.orch.ClearIndex(context.Background(), h.root))

	exists, err := h.store.HasCollection(context.Background(), h.collectionName(t))
	require.NoError(t, err)
	assert.False(t, exists)

	// After a clear, everything counts as added again.
	stats, err := h.orch.ReindexByChange(context.Background(), h.root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
}

func TestCheckRoot_RejectsBadPaths(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.IndexCodebase(context.Background(), filepath.Join(h.root, "missing"), nil)
	assert.ErrorIs(t, err, types.ErrConfig)

	file := filepath.Join(h.root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = h.orch.IndexCodebase(context.Background(), file, nil)
	assert.ErrorIs(t, err, types.ErrConfig)
}

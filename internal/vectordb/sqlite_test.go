package vectordb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/pkg/types"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	ok, err := store.HasCollection(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.CreateCollection(ctx, "c1", 4, true, "a codebase"))

	ok, err = store.HasCollection(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	schema, err := store.DescribeCollection(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, schema.Dimension)
	assert.True(t, schema.HasSparse)
	assert.Equal(t, "a codebase", schema.Description)

	err = store.CreateCollection(ctx, "c1", 4, true, "")
	assert.ErrorIs(t, err, ErrCollectionExists)

	require.NoError(t, store.DropCollection(ctx, "c1"))
	require.NoError(t, store.DropCollection(ctx, "c1"))

	_, err = store.DescribeCollection(ctx, "c1")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestSQLiteStore_InsertSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 3, false, ""))

	docs := []types.VectorDocument{
		testDoc("d1", "a.go", "alpha", []float32{1, 0, 0}),
		testDoc("d2", "b.go", "beta", []float32{0, 1, 0}),
	}
	require.NoError(t, store.Insert(ctx, "c", docs))

	hits, err := store.Search(ctx, "c", []float32{1, 0, 0}, SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "d1", hits[0].Document.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "alpha", hits[0].Document.Content)
	assert.Equal(t, []float32{1, 0, 0}, hits[0].Document.Vector)
}

func TestSQLiteStore_InsertIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2, false, ""))

	doc := testDoc("d1", "a.go", "x", []float32{1, 0})
	require.NoError(t, store.Insert(ctx, "c", []types.VectorDocument{doc}))
	require.NoError(t, store.Insert(ctx, "c", []types.VectorDocument{doc}))

	rows, err := store.Query(ctx, "c", "", []string{"id"}, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLiteStore_InsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 3, false, ""))

	err := store.Insert(ctx, "c", []types.VectorDocument{
		testDoc("d1", "a.go", "x", []float32{1, 0}),
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSQLiteStore_QueryThenDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2, false, ""))

	require.NoError(t, store.Insert(ctx, "c", []types.VectorDocument{
		testDoc("d1", "a.go", "one", []float32{1, 0}),
		testDoc("d2", "a.go", "two", []float32{0, 1}),
		testDoc("d3", "b.go", "three", []float32{1, 1}),
	}))

	rows, err := store.Query(ctx, "c", `relative_path == "a.go"`, []string{"id", "relative_path"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.go", rows[0]["relative_path"])

	require.NoError(t, store.Delete(ctx, "c", []string{rows[0]["id"], rows[1]["id"]}))

	rows, err = store.Query(ctx, "c", `relative_path == "a.go"`, []string{"id"}, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteStore_HybridSearchSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.CreateCollection(ctx, "c", 2, true, ""))

	d1 := testDoc("d1", "a.go", "parse file synchronizer", []float32{1, 0})
	d1.Sparse = EncodeSparse(d1.Content)
	require.NoError(t, store.Insert(ctx, "c", []types.VectorDocument{d1}))
	require.NoError(t, store.Close())

	// Reopen: schema and sparse payloads persist.
	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	hits, err := store.HybridSearch(ctx, "c", []float32{1, 0}, EncodeSparse("parse file"), HybridOptions{
		TopK:   5,
		Ranker: DefaultRanker(),
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].Document.ID)
}

func TestSQLiteStore_HybridRequiresSparseSchema(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2, false, ""))

	_, err := store.HybridSearch(ctx, "c", []float32{1, 0}, map[string]float64{"x": 1}, HybridOptions{TopK: 5})
	assert.ErrorIs(t, err, ErrSparseUnsupported)
}

package filesync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/internal/ignore"
)

func newTestSynchronizer(t *testing.T, root string) *Synchronizer {
	t.Helper()
	return New(root, t.TempDir(), ignore.New(), nil, nil)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDelta_FirstRunReportsAllAdded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "beta")

	s := newTestSynchronizer(t, root)
	delta, err := s.Delta(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, delta.Added)
	assert.Empty(t, delta.Removed)
	assert.Empty(t, delta.Modified)
}

func TestDelta_NoChangesIsEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	s := newTestSynchronizer(t, root)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	delta, err := s.Delta(context.Background())
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestDelta_DetectsModification(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.txt", "version one")

	s := newTestSynchronizer(t, root)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	before, err := s.Snapshot()
	require.NoError(t, err)
	h1 := before["x.txt"]
	require.NotEmpty(t, h1)

	writeFile(t, root, "x.txt", "version two")

	delta, err := s.Delta(context.Background())
	require.NoError(t, err)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Removed)
	assert.Equal(t, []string{"x.txt"}, delta.Modified)

	after, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, h1, after["x.txt"], "snapshot must record the new hash")
}

func TestDelta_DetectsRemoval(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "gone.txt", "data")
	writeFile(t, root, "kept.txt", "data")

	s := newTestSynchronizer(t, root)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))

	delta, err := s.Delta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.txt"}, delta.Removed)
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Modified)
}

func TestDelta_SoundnessSets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "1")
	writeFile(t, root, "b.txt", "2")

	s := newTestSynchronizer(t, root)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "b.txt", "2'")
	writeFile(t, root, "c.txt", "3")
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))

	delta, err := s.Delta(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"c.txt"}, delta.Added)
	assert.Equal(t, []string{"a.txt"}, delta.Removed)
	assert.Equal(t, []string{"b.txt"}, delta.Modified)

	for _, added := range delta.Added {
		assert.NotContains(t, delta.Removed, added, "added and removed must be disjoint")
	}
}

func TestDelta_HonorsIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "build/out.js", "generated")
	writeFile(t, root, "src/app.js", "source")

	s := New(root, t.TempDir(), ignore.New("build/**"), nil, nil)
	delta, err := s.Delta(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"src/app.js"}, delta.Added)
}

func TestDelta_ConcurrentDeltaRejected(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	s := New(root, snapDir, ignore.New(), nil, nil)

	// Simulate a concurrent run holding the advisory lock.
	lockPath := SnapshotPath(snapDir, root) + ".lock"
	require.NoError(t, os.MkdirAll(snapDir, 0o755))
	require.NoError(t, os.WriteFile(lockPath, nil, 0o644))

	_, err := s.Delta(context.Background())
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, os.Remove(lockPath))
	_, err = s.Delta(context.Background())
	require.NoError(t, err)
}

func TestSnapshotFile_LayoutAndNaming(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	s := New(root, snapDir, ignore.New(), nil, nil)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	path := SnapshotPath(snapDir, root)
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "code_chunks_"))
	assert.True(t, strings.HasSuffix(base, ".json"))
	assert.Len(t, base, len("code_chunks_")+8+len(".json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap struct {
		Version int               `json:"version"`
		Paths   map[string]string `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1, snap.Version)
	assert.Len(t, snap.Paths, 1)
	assert.Len(t, snap.Paths["a.txt"], 64, "sha256 hex")

	// No temp files left behind.
	entries, err := os.ReadDir(snapDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s survived rename", e.Name())
	}
}

func TestClear_RemovesSnapshot(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	s := New(root, snapDir, ignore.New(), nil, nil)
	_, err := s.Delta(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	_, err = os.Stat(SnapshotPath(snapDir, root))
	assert.True(t, os.IsNotExist(err))

	// Clearing again is fine.
	require.NoError(t, s.Clear())
}

package filesync

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/ignore"
)

// SnapshotVersion is the on-disk snapshot format version.
const SnapshotVersion = 1

// ErrLocked is returned when another delta is already running against the
// same codebase path.
var ErrLocked = errors.New("snapshot is locked by another synchronizer")

// Delta is the set of relative paths whose content changed since the last
// persisted snapshot.
type Delta struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether the delta contains no changes.
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// snapshotFile is the persisted JSON layout.
type snapshotFile struct {
	Version int               `json:"version"`
	Paths   map[string]string `json:"paths"`
}

// Synchronizer computes incremental add/modify/remove deltas for one
// codebase path by comparing on-disk content hashes against a persisted
// snapshot. The snapshot file is exclusively held during a delta via an
// advisory lock file.
type Synchronizer struct {
	root        string
	snapshotDir string
	engine      *ignore.Engine
	extensions  map[string]bool
	logger      *zap.Logger
}

// New creates a Synchronizer for the canonical codebase root. extensions
// holds lowercase dotted extensions admitted to the scan; nil admits all.
func New(root, snapshotDir string, engine *ignore.Engine, extensions map[string]bool, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		root:        root,
		snapshotDir: snapshotDir,
		engine:      engine,
		extensions:  extensions,
		logger:      logger,
	}
}

// SnapshotPath returns the snapshot file location for a canonical codebase
// root: <dir>/code_chunks_<first 8 hex of md5(root)>.json.
func SnapshotPath(snapshotDir, root string) string {
	sum := md5.Sum([]byte(filepath.ToSlash(root)))
	return filepath.Join(snapshotDir, fmt.Sprintf("code_chunks_%s.json", hex.EncodeToString(sum[:])[:8]))
}

// Delta scans the tree, compares content hashes against the persisted
// snapshot, atomically rewrites the snapshot, and returns the changes. The
// old snapshot stays authoritative if the process dies mid-write.
func (s *Synchronizer) Delta(ctx context.Context) (*Delta, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	previous, err := s.readSnapshot()
	if err != nil {
		return nil, err
	}

	delta := diff(previous, current)

	if err := s.writeSnapshot(current); err != nil {
		return nil, err
	}

	s.logger.Debug("snapshot delta computed",
		zap.String("root", s.root),
		zap.Int("added", len(delta.Added)),
		zap.Int("removed", len(delta.Removed)),
		zap.Int("modified", len(delta.Modified)))

	return delta, nil
}

// Snapshot returns the persisted path->hash map without scanning or writing.
// A missing snapshot yields an empty map.
func (s *Synchronizer) Snapshot() (map[string]string, error) {
	return s.readSnapshot()
}

// Clear removes the persisted snapshot. Clearing a missing snapshot is not
// an error.
func (s *Synchronizer) Clear() error {
	err := os.Remove(SnapshotPath(s.snapshotDir, s.root))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// lock takes the advisory lock file next to the snapshot. O_EXCL makes
// creation the atomic test-and-set.
func (s *Synchronizer) lock() (func(), error) {
	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	lockPath := SnapshotPath(s.snapshotDir, s.root) + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	_ = f.Close()

	return func() { _ = os.Remove(lockPath) }, nil
}

// scan enumerates files honoring the ignore engine and hashes their raw
// bytes.
func (s *Synchronizer) scan(ctx context.Context) (map[string]string, error) {
	current := make(map[string]string)

	err := s.engine.Walk(s.root, s.extensions, func(absPath, relPath string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		sum, err := hashFile(absPath)
		if err != nil {
			// A file deleted mid-scan is treated as absent.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		current[relPath] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}

	return current, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// diff compares snapshot maps. Result slices are sorted so deltas are
// deterministic across runs.
func diff(previous, current map[string]string) *Delta {
	delta := &Delta{}

	for path, sum := range current {
		prev, ok := previous[path]
		switch {
		case !ok:
			delta.Added = append(delta.Added, path)
		case prev != sum:
			delta.Modified = append(delta.Modified, path)
		}
	}

	for path := range previous {
		if _, ok := current[path]; !ok {
			delta.Removed = append(delta.Removed, path)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Modified)

	return delta
}

func (s *Synchronizer) readSnapshot() (map[string]string, error) {
	data, err := os.ReadFile(SnapshotPath(s.snapshotDir, s.root))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Paths == nil {
		snap.Paths = map[string]string{}
	}
	return snap.Paths, nil
}

// writeSnapshot persists the map with write-to-temp, fsync, rename
// semantics.
func (s *Synchronizer) writeSnapshot(paths map[string]string) error {
	target := SnapshotPath(s.snapshotDir, s.root)

	data, err := json.MarshalIndent(snapshotFile{Version: SnapshotVersion, Paths: paths}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.snapshotDir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Package collection derives collection names from codebase paths and
// manages collection lifecycle against the vector store.
package collection

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/embedder"
	"github.com/dshills/codeindexer/internal/vectordb"
)

// Prefix is the common collection-name prefix.
const Prefix = "code_chunks_"

// Canonical resolves a codebase path to its canonical absolute form:
// absolute, symlinks resolved when possible, cleaned, "/" separators.
func Canonical(codebasePath string) (string, error) {
	abs, err := filepath.Abs(codebasePath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", codebasePath, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// Name derives the collection name for a codebase path: the prefix plus the
// first 8 hex characters of md5 over the canonical path. Two distinct paths
// only collide with birthday-bound probability (~2^-13, about 1.2e-4, at a
// thousand codebases over the 32-bit prefix space), which is tolerated.
func Name(codebasePath string) (string, error) {
	canonical, err := Canonical(codebasePath)
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(filepath.ToSlash(canonical)))
	return Prefix + hex.EncodeToString(sum[:])[:8], nil
}

// Manager prepares and drops collections.
type Manager struct {
	store    vectordb.VectorStore
	embedder embedder.Embedder
	logger   *zap.Logger
}

// NewManager creates a Manager. A nil logger is replaced with a no-op
// logger.
func NewManager(store vectordb.VectorStore, emb embedder.Embedder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, embedder: emb, logger: logger}
}

// Prepare ensures the collection for a codebase path exists and returns its
// name. The embedder is probed for its dimension first, since some providers
// learn it lazily and the schema is anchored to it at creation time.
func (m *Manager) Prepare(ctx context.Context, codebasePath string, hasSparse bool) (string, error) {
	name, err := Name(codebasePath)
	if err != nil {
		return "", err
	}

	exists, err := m.store.HasCollection(ctx, name)
	if err != nil {
		return "", fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		return name, nil
	}

	dimension, err := m.embedder.EnsureDimension(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve embedding dimension: %w", err)
	}

	description := fmt.Sprintf("code chunks for %s", codebasePath)
	if err := m.store.CreateCollection(ctx, name, dimension, hasSparse, description); err != nil {
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}

	m.logger.Info("collection created",
		zap.String("collection", name),
		zap.Int("dimension", dimension),
		zap.Bool("sparse", hasSparse))

	return name, nil
}

// Drop removes the collection for a codebase path. Dropping a missing
// collection is not an error.
func (m *Manager) Drop(ctx context.Context, codebasePath string) error {
	name, err := Name(codebasePath)
	if err != nil {
		return err
	}

	if err := m.store.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}

	m.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

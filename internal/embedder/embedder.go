package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionUnknown  = errors.New("embedding dimension not yet known")
)

// Embedder generates dense vectors for text. EmbedBatch output order matches
// input order and the lengths are equal. Dimension may require a probe for
// providers that learn it lazily; EnsureDimension performs that probe.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension, or 0 if not yet known.
	Dimension() int

	// EnsureDimension returns the dimension, probing the provider first if
	// necessary.
	EnsureDimension(ctx context.Context) (int, error)

	// MaxBatchSize returns the provider's batch limit; 0 means unbounded.
	MaxBatchSize() int

	Close() error
}

// Cache provides in-memory LRU caching of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector; the copy keeps caller mutations
// out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ComputeHash returns the sha256 hex of text, the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateBatch rejects empty batches and empty members.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

// HashDimension is the vector length of the deterministic provider.
const HashDimension = 128

// HashProvider is a deterministic, offline Embedder: the vector is derived
// from repeated sha256 digests of the text and normalized to unit length.
// Identical texts always map to identical vectors, which makes it the
// provider of choice for tests and air-gapped runs.
type HashProvider struct {
	cache *Cache
}

// NewHashProvider creates the deterministic provider.
func NewHashProvider(cache *Cache) *HashProvider {
	return &HashProvider{cache: cache}
}

func (h *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := ComputeHash(text)
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			return v, nil
		}
	}

	vector := make([]float32, 0, HashDimension)
	digest := sha256.Sum256([]byte(text))
	for len(vector) < HashDimension {
		for _, b := range digest {
			if len(vector) == HashDimension {
				break
			}
			vector = append(vector, float32(b)/255.0-0.5)
		}
		digest = sha256.Sum256(digest[:])
	}

	normalize(vector)

	if h.cache != nil {
		h.cache.Set(key, vector)
	}
	return vector, nil
}

func (h *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (h *HashProvider) Dimension() int {
	return HashDimension
}

func (h *HashProvider) EnsureDimension(ctx context.Context) (int, error) {
	return HashDimension, nil
}

func (h *HashProvider) MaxBatchSize() int {
	return 0
}

func (h *HashProvider) Close() error {
	return nil
}

// normalize scales a vector to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

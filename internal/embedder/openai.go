package embedder

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// openAIMaxBatch is the API's input list limit.
	openAIMaxBatch = 100
)

// knownOpenAIDimensions maps models to their default output dimensions so
// most runs never need a probe.
var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider implements Embedder against the OpenAI-compatible
// embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	cache  *Cache
	logger *zap.Logger

	mu        sync.Mutex
	dimension int
}

// OpenAIConfig holds provider settings. BaseURL switches to any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrNoProviderEnabled)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		cache:     cache,
		logger:    logger,
		dimension: knownOpenAIDimensions[model],
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > openAIMaxBatch {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, openAIMaxBatch)
	}

	vectors := make([][]float32, len(texts))

	// Serve cache hits first; only misses go to the API.
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if o.cache != nil {
			if v, ok := o.cache.Get(ComputeHash(text)); ok {
				vectors[i] = v
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fetched, err := retryWithBackoff(ctx, defaultRetryPolicy(), o.logger, "openai embeddings", func() ([][]float32, error) {
			return o.callAPI(ctx, missTexts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}

		for j, v := range fetched {
			vectors[missIdx[j]] = v
			if o.cache != nil {
				o.cache.Set(ComputeHash(missTexts[j]), v)
			}
		}
	}

	o.recordDimension(vectors[0])
	return vectors, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(o.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count %d does not match input %d", len(resp.Data), len(texts))
	}

	// The API reports an index per datum; order by it rather than trusting
	// response order.
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

func (o *OpenAIProvider) recordDimension(v []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 && len(v) > 0 {
		o.dimension = len(v)
	}
}

func (o *OpenAIProvider) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dimension
}

// EnsureDimension probes the API with a short input when the model's
// dimension is not statically known.
func (o *OpenAIProvider) EnsureDimension(ctx context.Context) (int, error) {
	if dim := o.Dimension(); dim > 0 {
		return dim, nil
	}

	v, err := o.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	return len(v), nil
}

func (o *OpenAIProvider) MaxBatchSize() int {
	return openAIMaxBatch
}

func (o *OpenAIProvider) Close() error {
	return nil
}

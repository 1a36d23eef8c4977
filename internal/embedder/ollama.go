package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultOllamaHost is the local Ollama daemon address.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "nomic-embed-text"

	// ollamaMaxBatch bounds one /api/embed call.
	ollamaMaxBatch = 50
)

// OllamaProvider implements Embedder against a local Ollama daemon's
// /api/embed endpoint.
type OllamaProvider struct {
	host       string
	model      string
	httpClient *http.Client
	cache      *Cache
	logger     *zap.Logger

	mu        sync.Mutex
	dimension int
}

// OllamaConfig holds provider settings.
type OllamaConfig struct {
	Host   string
	Model  string
	Logger *zap.Logger
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(cfg OllamaConfig, cache *Cache) (*OllamaProvider, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaProvider{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache:  cache,
		logger: logger,
	}, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > ollamaMaxBatch {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, ollamaMaxBatch)
	}

	vectors := make([][]float32, len(texts))

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
		fetched, err := retryWithBackoff(ctx, defaultRetryPolicy(), o.logger, "ollama embeddings", func() ([][]float32, error) {
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

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": o.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count %d does not match input %d", len(apiResp.Embeddings), len(texts))
	}

	return apiResp.Embeddings, nil
}

func (o *OllamaProvider) recordDimension(v []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 && len(v) > 0 {
		o.dimension = len(v)
	}
}

func (o *OllamaProvider) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dimension
}

// EnsureDimension probes the daemon once; Ollama never reports a model's
// dimension up front.
func (o *OllamaProvider) EnsureDimension(ctx context.Context) (int, error) {
	if dim := o.Dimension(); dim > 0 {
		return dim, nil
	}

	v, err := o.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	return len(v), nil
}

func (o *OllamaProvider) MaxBatchSize() int {
	return ollamaMaxBatch
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

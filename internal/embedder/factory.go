package embedder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	CacheSize int
	Logger    *zap.Logger
}

// New creates an embedder from explicit configuration. An empty provider
// defaults to openai when an API key is present and hash otherwise.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		if cfg.APIKey != "" {
			provider = ProviderOpenAI
		} else {
			provider = ProviderHash
		}
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: cfg.Logger}, cache)
	case ProviderOllama:
		return NewOllamaProvider(OllamaConfig{Host: cfg.BaseURL, Model: cfg.Model, Logger: cfg.Logger}, cache)
	case ProviderHash:
		return NewHashProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrNoProviderEnabled, cfg.Provider)
	}
}

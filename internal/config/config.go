package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Consistency levels accepted by the vector store.
const (
	ConsistencyStrong     = "strong"
	ConsistencySession    = "session"
	ConsistencyBounded    = "bounded"
	ConsistencyEventually = "eventually"
)

// Config holds the indexer configuration.
type Config struct {
	EmbedBatch          int      `yaml:"embed_batch"`
	EnableSparse        bool     `yaml:"enable_sparse"`
	SupportedExtensions []string `yaml:"supported_extensions"`
	IgnorePatterns      []string `yaml:"ignore_patterns"`
	SnapshotDir         string   `yaml:"snapshot_dir"`
	ConsistencyLevel    string   `yaml:"consistency_level"`
	MaxParallelBatches  int      `yaml:"max_parallel_batches"`

	Splitter  SplitterConfig  `yaml:"splitter"`
	Ranker    RankerConfig    `yaml:"ranker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SplitterConfig holds window-fallback parameters in characters.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MaxNodeChars int `yaml:"max_node_chars"`
}

// RankerConfig selects the hybrid fusion strategy.
type RankerConfig struct {
	Type         string  `yaml:"type"` // rrf, weight
	KRRF         float64 `yaml:"k_rrf"`
	DenseWeight  float64 `yaml:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama, hash
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// DatabaseConfig holds vector store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, dev (default: dev)
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads a YAML config file, substituting ${VAR} environment
// references. A missing path yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var envVarRe = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarRe.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.EmbedBatch == 0 {
		c.EmbedBatch = 100
	}
	if c.ConsistencyLevel == "" {
		c.ConsistencyLevel = ConsistencyBounded
	}
	if c.Splitter.ChunkSize == 0 {
		c.Splitter.ChunkSize = 2500
	}
	if c.Splitter.ChunkOverlap == 0 {
		c.Splitter.ChunkOverlap = 300
	}
	if c.Ranker.Type == "" {
		c.Ranker.Type = "rrf"
	}
	if c.Ranker.KRRF == 0 {
		c.Ranker.KRRF = 100
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Database.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Database.Path = filepath.Join(home, ".codeindexer", "index.db")
		} else {
			c.Database.Path = "index.db"
		}
	}
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.EmbedBatch < 1 {
		return fmt.Errorf("embed_batch must be at least 1, got %d", c.EmbedBatch)
	}
	if c.Splitter.ChunkSize < 1 {
		return fmt.Errorf("splitter.chunk_size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter.chunk_overlap must be in [0, chunk_size), got %d", c.Splitter.ChunkOverlap)
	}

	switch c.Ranker.Type {
	case "rrf", "weight":
	default:
		return fmt.Errorf("ranker.type must be rrf or weight, got %q", c.Ranker.Type)
	}

	switch c.ConsistencyLevel {
	case ConsistencyStrong, ConsistencySession, ConsistencyBounded, ConsistencyEventually:
	default:
		return fmt.Errorf("consistency_level must be one of strong, session, bounded, eventually, got %q", c.ConsistencyLevel)
	}

	return nil
}

// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before mapping them onto
// config keys: MADMATT_RETRIEVAL_TOP_K -> retrieval.top_k.
const envPrefix = "MADMATT_"

// EmbeddingConfig configures the OpenAI-compatible embedding client.
type EmbeddingConfig struct {
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	APIKeyEnv string `koanf:"api_key_env"`
}

// SynthesizerConfig configures the chat model used to compose answers.
type SynthesizerConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKeyEnv   string  `koanf:"api_key_env"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// ChunkingConfig configures how documents are split before embedding.
type ChunkingConfig struct {
	MaxChunkSize int `koanf:"max_chunk_size"`
	Overlap      int `koanf:"overlap"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	BatchSize int `koanf:"batch_size"`
}

// RetrievalConfig configures the query pipeline. ScoreThreshold of zero
// disables similarity filtering.
type RetrievalConfig struct {
	TopK           int     `koanf:"top_k"`
	ScoreThreshold float32 `koanf:"score_threshold"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	APIKeyEnv string `koanf:"api_key_env"`
	UseTLS    bool   `koanf:"use_tls"`
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Provider  string        `koanf:"provider"`
	Namespace string        `koanf:"namespace"`
	Chromem   ChromemConfig `koanf:"chromem"`
	Qdrant    QdrantConfig  `koanf:"qdrant"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the root application configuration.
type Config struct {
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Synthesizer SynthesizerConfig `koanf:"synthesizer"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Store       StoreConfig       `koanf:"store"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// Load reads configuration from the YAML file at path, then overrides with
// MADMATT_-prefixed environment variables. A missing file is not an error;
// defaults and the environment still apply. An unreadable or invalid file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults and env
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// envTransform maps MADMATT_SECTION_FIELD_NAME to section.field_name. The
// first underscore after the prefix separates the section from the field,
// so compound field names keep their underscores.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

const (
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultSynthesizerModel = "gpt-4o-mini"
)

func applyDefaults(cfg *Config) {
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbeddingModel
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Synthesizer.Model == "" {
		cfg.Synthesizer.Model = defaultSynthesizerModel
	}
	if cfg.Synthesizer.APIKeyEnv == "" {
		cfg.Synthesizer.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Synthesizer.MaxTokens == 0 {
		cfg.Synthesizer.MaxTokens = 500
	}
	if cfg.Chunking.MaxChunkSize == 0 {
		cfg.Chunking.MaxChunkSize = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 64
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "chromem"
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = "default"
	}
	if cfg.Store.Chromem.Path == "" {
		cfg.Store.Chromem.Path = "~/.local/share/madmatt/chromem"
	}
	if cfg.Store.Qdrant.Host == "" {
		cfg.Store.Qdrant.Host = "localhost"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}
	if cfg.Store.Qdrant.APIKeyEnv == "" {
		cfg.Store.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Validate checks that the configuration is internally consistent. It does
// not check credentials; constructors that need them fail on their own.
func (c *Config) Validate() error {
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunking.max_chunk_size must be positive, got %d", c.Chunking.MaxChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, max_chunk_size), got %d", c.Chunking.Overlap)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [0, 1], got %v", c.Retrieval.ScoreThreshold)
	}
	switch c.Store.Provider {
	case "memory", "chromem", "qdrant":
	default:
		return fmt.Errorf("store.provider must be one of memory, chromem, qdrant; got %q", c.Store.Provider)
	}
	if !namespacePattern.MatchString(c.Store.Namespace) {
		return fmt.Errorf("store.namespace %q must match %s", c.Store.Namespace, namespacePattern)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	return nil
}

// EmbeddingAPIKey resolves the embedding API key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// SynthesizerAPIKey resolves the synthesizer API key from the environment.
func (c *Config) SynthesizerAPIKey() string {
	return os.Getenv(c.Synthesizer.APIKeyEnv)
}

// QdrantAPIKey resolves the Qdrant API key from the environment.
func (c *Config) QdrantAPIKey() string {
	return os.Getenv(c.Store.Qdrant.APIKeyEnv)
}

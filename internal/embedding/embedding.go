// Package embedding implements the Embedder contract on top of langchaingo,
// targeting OpenAI or any OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrMissingAPIKey indicates the configured API key environment variable
// resolved to an empty value. Construction fails fast so no partial
// operation is attempted with broken credentials.
var ErrMissingAPIKey = errors.New("embedding: missing API key")

// Config configures the embeddings client.
type Config struct {
	// BaseURL of the OpenAI-compatible endpoint. Empty means the OpenAI
	// default.
	BaseURL string
	// Model is the embedding model identifier, e.g. text-embedding-3-small.
	Model string
	// APIKey authenticates requests. Required.
	APIKey string
}

// Client wraps a langchaingo embedder behind the domain Embedder contract.
type Client struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

// New builds an embeddings client. The same client is used for both the
// ingestion and query sides so both flows embed with identical settings.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding: model is required")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: creating client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedding: creating embedder: %w", err)
	}
	return &Client{embedder: embedder, model: cfg.Model}, nil
}

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.model }

// EmbedDocuments embeds a batch of texts, one vector per text, order
// preserved.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding documents: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

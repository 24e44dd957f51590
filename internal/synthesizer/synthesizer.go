// Package synthesizer turns a question plus retrieved context passages into
// a grounded natural-language answer via a chat completion model.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config configures the answer model.
type Config struct {
	// BaseURL of the OpenAI-compatible endpoint. Empty means the OpenAI
	// default.
	BaseURL string
	// Model is the chat model identifier, e.g. gpt-4o-mini.
	Model string
	// APIKey authenticates requests. Required.
	APIKey string
	// Temperature for generation. Grounded answering wants 0.
	Temperature float64
	// MaxTokens bounds the answer length.
	MaxTokens int
}

// LLM implements the domain Synthesizer contract.
type LLM struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// New builds the synthesizer. Missing credentials fail construction.
func New(cfg Config) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("synthesizer: missing API key")
	}
	if cfg.Model == "" {
		return nil, errors.New("synthesizer: model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("synthesizer: creating client: %w", err)
	}
	return &LLM{model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Synthesize answers the question using only the supplied passages, ordered
// most relevant first. The passages are embedded verbatim in the prompt; the
// query pipeline substitutes an explicit no-context marker when retrieval
// came back empty, so the model is told rather than left to hallucinate.
func (l *LLM) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, l.model, buildPrompt(question, passages),
		llms.WithTemperature(l.temperature),
		llms.WithMaxTokens(l.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func buildPrompt(question string, passages []string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about a private document collection.\n")
	b.WriteString("Answer the question using only the context passages below. ")
	b.WriteString("If the context does not contain the answer, say that you don't know.\n\n")
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

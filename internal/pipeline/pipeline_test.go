package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// fakeEmbedder produces deterministic vectors from text so tests rank
// records without a real model. Every call is counted so tests can assert
// nothing external was touched.
type fakeEmbedder struct {
	docCalls   int
	queryCalls int
	failAfter  int // fail the Nth EmbedDocuments call, 0 means never
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.docCalls++
	if f.failAfter > 0 && f.docCalls >= f.failAfter {
		return nil, errors.New("embedder unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = textVector(t)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls++
	return textVector(text), nil
}

// textVector maps text to a 3-dimensional vector from rune statistics; equal
// texts always map to equal vectors.
func textVector(text string) []float32 {
	var letters, spaces, other float32
	for _, r := range text {
		switch {
		case r == ' ':
			spaces++
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			letters++
		default:
			other++
		}
	}
	return []float32{letters + 1, spaces + 1, other + 1}
}

// fakeSynth records what it was asked so tests can inspect the question and
// passages the pipeline produced.
type fakeSynth struct {
	calls     int
	questions []string
	passages  [][]string
	fail      bool
}

func (f *fakeSynth) Synthesize(_ context.Context, question string, passages []string) (string, error) {
	f.calls++
	f.questions = append(f.questions, question)
	f.passages = append(f.passages, passages)
	if f.fail {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("answer to %q from %d passages", question, len(passages)), nil
}

// failingStore wraps a store and fails the selected operations.
type failingStore struct {
	inner        domain.VectorStore
	failOnUpsert bool
	failOnQuery  bool
}

func (f *failingStore) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if f.failOnUpsert {
		return errors.New("store unavailable")
	}
	return f.inner.Upsert(ctx, namespace, records)
}

func (f *failingStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	if f.failOnQuery {
		return nil, errors.New("store unavailable")
	}
	return f.inner.Query(ctx, namespace, vector, topK)
}

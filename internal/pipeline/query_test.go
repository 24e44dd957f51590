package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattchw/mad-matt-ai/internal/domain"
	"github.com/mattchw/mad-matt-ai/internal/vectorstore/memory"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"line one\nline two", "line one line two"},
		{"crlf\r\nhere", "crlf here"},
		{"\n  \n", ""},
		{"already clean", "already clean"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestAnswerRejectsEmptyQuestionBeforeExternalCalls(t *testing.T) {
	emb := &fakeEmbedder{}
	synth := &fakeSynth{}
	q := NewQuerier(emb, memory.New(), synth, nil, QuerierConfig{})

	for _, question := range []string{"", "   ", "\n", "\r\n\t "} {
		_, err := q.Answer(context.Background(), question, "ns", 1)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery, "question %q", question)
	}
	assert.Zero(t, emb.queryCalls)
	assert.Zero(t, synth.calls)
}

func TestAnswerSingleDocumentScenario(t *testing.T) {
	// one short document ingested as one chunk; a query with topK=1 must hand
	// the synthesizer exactly that chunk's text
	ctx := context.Background()
	store := memory.New()
	emb := &fakeEmbedder{}
	synth := &fakeSynth{}

	vec, err := emb.EmbedDocuments(ctx, []string{Normalize("A. B. C.")})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "ns", []domain.VectorRecord{
		{ID: "r1", Vector: vec[0], Text: "A. B. C.", Metadata: map[string]string{domain.MetaDocumentID: "d1"}},
	}))

	q := NewQuerier(emb, store, synth, nil, QuerierConfig{})
	answer, err := q.Answer(ctx, "What is A?", "ns", 1)
	require.NoError(t, err)

	require.Len(t, answer.Context, 1)
	assert.Equal(t, "r1", answer.Context[0].ID)
	require.Len(t, synth.passages, 1)
	assert.Equal(t, []string{"A. B. C."}, synth.passages[0])
	assert.Equal(t, []string{"What is A?"}, synth.questions)
	assert.NotEmpty(t, answer.Text)
}

func TestAnswerRetrievalOrderIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	emb := &fakeEmbedder{}

	texts := []string{"the red fox", "a blue whale", "some green tree", "one gray rock"}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	records := make([]domain.VectorRecord, len(texts))
	for i, text := range texts {
		records[i] = domain.VectorRecord{ID: text, Vector: vectors[i], Text: text}
	}
	require.NoError(t, store.Upsert(ctx, "ns", records))

	q := NewQuerier(emb, store, &fakeSynth{}, nil, QuerierConfig{})

	first, err := q.Answer(ctx, "tell me about the fox", "ns", 3)
	require.NoError(t, err)
	second, err := q.Answer(ctx, "tell me about the fox", "ns", 3)
	require.NoError(t, err)

	require.Len(t, first.Context, 3)
	for i := range first.Context {
		assert.Equal(t, first.Context[i].ID, second.Context[i].ID)
		assert.Equal(t, first.Context[i].Score, second.Context[i].Score)
	}
}

func TestAnswerEmptyNamespaceUsesNoContextMarker(t *testing.T) {
	synth := &fakeSynth{}
	q := NewQuerier(&fakeEmbedder{}, memory.New(), synth, nil, QuerierConfig{})

	answer, err := q.Answer(context.Background(), "anything in here?", "empty-ns", 5)
	require.NoError(t, err)

	assert.Empty(t, answer.Context)
	require.Len(t, synth.passages, 1)
	assert.Equal(t, []string{NoContextMarker}, synth.passages[0])
	assert.NotEmpty(t, answer.Text)
}

func TestAnswerNormalizesQuestionBeforeSynthesis(t *testing.T) {
	synth := &fakeSynth{}
	q := NewQuerier(&fakeEmbedder{}, memory.New(), synth, nil, QuerierConfig{})

	_, err := q.Answer(context.Background(), "  first line\nsecond line  ", "ns", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first line second line"}, synth.questions)
}

func TestAnswerScoreThresholdFiltersWeakMatches(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// orthogonal vector scores 0 against the query and must be dropped
	require.NoError(t, store.Upsert(ctx, "ns", []domain.VectorRecord{
		{ID: "strong", Vector: []float32{1, 1, 1}, Text: "strong"},
		{ID: "weak", Vector: []float32{-1, 1, 0}, Text: "weak"},
	}))

	emb := &fakeEmbedder{}
	synth := &fakeSynth{}
	q := NewQuerier(emb, store, synth, nil, QuerierConfig{ScoreThreshold: 0.5})

	answer, err := q.Answer(ctx, "abc", "ns", 2)
	require.NoError(t, err)
	require.Len(t, answer.Context, 1)
	assert.Equal(t, "strong", answer.Context[0].ID)
}

func TestAnswerSynthesisFailureWrapsSynthesisError(t *testing.T) {
	q := NewQuerier(&fakeEmbedder{}, memory.New(), &fakeSynth{fail: true}, nil, QuerierConfig{})
	_, err := q.Answer(context.Background(), "a question", "ns", 1)
	assert.ErrorIs(t, err, domain.ErrSynthesis)
}

func TestAnswerRetrievalFailureWrapsRetrievalError(t *testing.T) {
	store := &failingStore{inner: memory.New(), failOnQuery: true}
	synth := &fakeSynth{}
	q := NewQuerier(&fakeEmbedder{}, store, synth, nil, QuerierConfig{})

	_, err := q.Answer(context.Background(), "a question", "ns", 1)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.Zero(t, synth.calls)
}

package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattchw/mad-matt-ai/internal/chunker"
	"github.com/mattchw/mad-matt-ai/internal/domain"
	"github.com/mattchw/mad-matt-ai/internal/vectorstore/memory"
)

func newChunker(t *testing.T, maxSize, overlap int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(maxSize, overlap)
	require.NoError(t, err)
	return c
}

func TestIngestWritesOneRecordPerChunk(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	emb := &fakeEmbedder{}
	ing := NewIngestor(newChunker(t, 100, 20), emb, store, nil, 8)

	docs := []domain.Document{
		{ID: "d1", Source: "a.md", Title: "A", Content: strings.Repeat("alpha beta gamma. ", 30)},
		{ID: "d2", Source: "b.md", Title: "B", Content: "tiny document"},
	}
	expected := 0
	for _, d := range docs {
		expected += len(newChunker(t, 100, 20).Split(d))
	}

	written, err := ing.Ingest(ctx, docs, "ns")
	require.NoError(t, err)
	assert.Equal(t, expected, written)

	got, err := store.Query(ctx, "ns", textVector("tiny document"), written)
	require.NoError(t, err)
	assert.Len(t, got, written)
}

func TestIngestRecordsTraceBackToSourceDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ing := NewIngestor(newChunker(t, 50, 10), &fakeEmbedder{}, store, nil, 4)

	doc := domain.Document{ID: "doc-42", Source: "notes/life.md", Title: "Life", Content: strings.Repeat("a sentence about life. ", 20)}
	written, err := ing.Ingest(ctx, []domain.Document{doc}, "ns")
	require.NoError(t, err)
	require.Greater(t, written, 1)

	got, err := store.Query(ctx, "ns", textVector("a sentence about life."), written)
	require.NoError(t, err)
	require.Len(t, got, written)

	ordinals := map[int]bool{}
	for _, r := range got {
		assert.Equal(t, "doc-42", r.Metadata[domain.MetaDocumentID])
		assert.Equal(t, "notes/life.md", r.Metadata[domain.MetaSource])
		assert.Equal(t, "Life", r.Metadata[domain.MetaTitle])
		ord, err := strconv.Atoi(r.Metadata[domain.MetaOrdinal])
		require.NoError(t, err)
		ordinals[ord] = true
	}
	for i := 0; i < written; i++ {
		assert.True(t, ordinals[i], "missing ordinal %d", i)
	}
}

func TestIngestBatchesPreserveRecordCount(t *testing.T) {
	// batch size is a throughput tunable; it must not change what is written
	ctx := context.Background()
	docs := []domain.Document{
		{ID: "d1", Source: "a.md", Content: strings.Repeat("one two three. ", 40)},
	}

	counts := map[int]int{}
	for _, batchSize := range []int{1, 3, 100} {
		store := memory.New()
		ing := NewIngestor(newChunker(t, 60, 12), &fakeEmbedder{}, store, nil, batchSize)
		written, err := ing.Ingest(ctx, docs, "ns")
		require.NoError(t, err)
		counts[batchSize] = written
	}
	assert.Equal(t, counts[1], counts[3])
	assert.Equal(t, counts[1], counts[100])
}

func TestIngestReRunAppendsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ing := NewIngestor(newChunker(t, 100, 20), &fakeEmbedder{}, store, nil, 0)

	docs := []domain.Document{{ID: "d1", Source: "a.md", Content: "the same document"}}
	first, err := ing.Ingest(ctx, docs, "ns")
	require.NoError(t, err)
	second, err := ing.Ingest(ctx, docs, "ns")
	require.NoError(t, err)

	got, err := store.Query(ctx, "ns", textVector("the same document"), 10)
	require.NoError(t, err)
	assert.Len(t, got, first+second)
}

func TestIngestEmbeddingFailureAbortsRemainingBatches(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	emb := &fakeEmbedder{failAfter: 2}
	ing := NewIngestor(newChunker(t, 40, 8), emb, store, nil, 2)

	docs := []domain.Document{
		{ID: "d1", Source: "a.md", Content: strings.Repeat("words and more words. ", 30)},
	}
	written, err := ing.Ingest(ctx, docs, "ns")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestion)

	// the first batch stays written; nothing is rolled back
	assert.Equal(t, 2, written)
	got, qerr := store.Query(ctx, "ns", textVector("words and more words."), 100)
	require.NoError(t, qerr)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, emb.docCalls)
}

func TestIngestStoreFailureWrapsIngestionError(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{inner: memory.New(), failOnUpsert: true}
	ing := NewIngestor(newChunker(t, 100, 20), &fakeEmbedder{}, store, nil, 0)

	_, err := ing.Ingest(ctx, []domain.Document{{ID: "d1", Source: "a.md", Content: "something"}}, "ns")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIngestion))
}

func TestIngestEmptyDocumentSetWritesNothing(t *testing.T) {
	ing := NewIngestor(newChunker(t, 100, 20), &fakeEmbedder{}, memory.New(), nil, 0)
	written, err := ing.Ingest(context.Background(), nil, "ns")
	require.NoError(t, err)
	assert.Zero(t, written)
}

// Package pipeline composes the chunker, embedder, vector store and answer
// synthesizer into the offline ingestion flow and the online query flow.
package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattchw/mad-matt-ai/internal/chunker"
	"github.com/mattchw/mad-matt-ai/internal/domain"
)

const defaultBatchSize = 64

// Ingestor populates a vector store namespace from a batch of documents.
type Ingestor struct {
	chunker   *chunker.Chunker
	embedder  domain.Embedder
	store     domain.VectorStore
	logger    *zap.Logger
	batchSize int
}

// NewIngestor wires the ingestion pipeline. batchSize bounds how many chunks
// are embedded and written per round trip; it trades memory for fewer calls
// and does not affect the produced records.
func NewIngestor(c *chunker.Chunker, embedder domain.Embedder, store domain.VectorStore, logger *zap.Logger, batchSize int) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Ingestor{
		chunker:   c,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Ingest chunks every document in order, embeds the chunks in batches and
// writes one vector record per chunk under the namespace. It returns the
// number of records written. A failing batch aborts the remaining ones;
// batches already written stay in the store (ingestion is append-only and
// not transactional across batches).
func (p *Ingestor) Ingest(ctx context.Context, docs []domain.Document, namespace string) (int, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, p.chunker.Split(doc)...)
	}
	p.logger.Info("ingesting documents",
		zap.String("namespace", namespace),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
	)

	written := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = Normalize(ch.Text)
		}
		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("%w: embedding chunks %d-%d: %v", domain.ErrIngestion, start, end, err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", domain.ErrIngestion, len(vectors), len(batch))
		}

		records := make([]domain.VectorRecord, len(batch))
		for i, ch := range batch {
			records[i] = domain.VectorRecord{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Text:   ch.Text,
				Metadata: map[string]string{
					domain.MetaDocumentID: ch.DocumentID,
					domain.MetaSource:     ch.Source,
					domain.MetaTitle:      ch.Title,
					domain.MetaOrdinal:    strconv.Itoa(ch.Ordinal),
				},
			}
		}
		if err := p.store.Upsert(ctx, namespace, records); err != nil {
			return written, fmt.Errorf("%w: writing chunks %d-%d: %v", domain.ErrIngestion, start, end, err)
		}
		written += len(records)
		p.logger.Debug("wrote batch",
			zap.String("namespace", namespace),
			zap.Int("written", written),
			zap.Int("total", len(chunks)),
		)
	}
	return written, nil
}

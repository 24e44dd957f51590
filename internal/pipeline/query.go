package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// NoContextMarker is the passage handed to the synthesizer when retrieval
// returns nothing, so the model is told explicitly instead of receiving an
// empty prompt section.
const NoContextMarker = "No relevant context was found in the document index."

const defaultTopK = 4

// QuerierConfig tunes the query pipeline.
type QuerierConfig struct {
	// TopK is the default number of records retrieved when the caller passes
	// a non-positive value.
	TopK int
	// ScoreThreshold, when positive, drops retrieved records scoring below
	// it. Zero keeps every record up to TopK.
	ScoreThreshold float32
}

// Querier answers a single question against a namespace.
type Querier struct {
	embedder domain.Embedder
	store    domain.VectorStore
	synth    domain.Synthesizer
	logger   *zap.Logger
	config   QuerierConfig
}

func NewQuerier(embedder domain.Embedder, store domain.VectorStore, synth domain.Synthesizer, logger *zap.Logger, cfg QuerierConfig) *Querier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &Querier{
		embedder: embedder,
		store:    store,
		synth:    synth,
		logger:   logger,
		config:   cfg,
	}
}

// Answer normalizes the question, embeds it, retrieves the topK nearest
// records from the namespace and conditions the synthesizer on them. Empty
// questions fail with ErrEmptyQuery before any external call. Retrieval
// failures wrap ErrRetrieval, synthesis failures wrap ErrSynthesis.
func (q *Querier) Answer(ctx context.Context, question, namespace string, topK int) (domain.Answer, error) {
	normalized := Normalize(question)
	if normalized == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = q.config.TopK
	}

	vector, err := q.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: embedding question: %v", domain.ErrRetrieval, err)
	}

	records, err := q.store.Query(ctx, namespace, vector, topK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: searching namespace %s: %v", domain.ErrRetrieval, namespace, err)
	}
	if q.config.ScoreThreshold > 0 {
		records = filterByScore(records, q.config.ScoreThreshold)
	}
	q.logger.Debug("retrieved context",
		zap.String("namespace", namespace),
		zap.Int("records", len(records)),
	)

	passages := make([]string, len(records))
	for i, r := range records {
		passages[i] = r.Text
	}
	if len(passages) == 0 {
		passages = []string{NoContextMarker}
	}

	text, err := q.synth.Synthesize(ctx, normalized, passages)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}
	return domain.Answer{Text: text, Context: records}, nil
}

func filterByScore(records []domain.ScoredRecord, threshold float32) []domain.ScoredRecord {
	kept := records[:0]
	for _, r := range records {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

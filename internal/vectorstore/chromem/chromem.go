// Package chromem provides a persistent vector store backed by chromem-go,
// an embeddable vector database with no external service to run.
package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromemgo "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// Config holds chromem storage settings.
type Config struct {
	// Path is the directory for persistent storage. A leading ~ is expanded.
	Path string
	// Compress enables gzip compression of stored data.
	Compress bool
}

// Store maps each namespace to one chromem collection. Embeddings are always
// supplied by the pipelines, so no embedding function is wired into the
// collections; queries go through QueryEmbedding.
type Store struct {
	db     *chromemgo.DB
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("chromem: expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("chromem: creating directory %s: %w", path, err)
	}
	db, err := chromemgo.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("chromem: opening database: %w", err)
	}
	logger.Info("chromem store opened",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
	)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	collection, err := s.db.GetOrCreateCollection(namespace, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem: collection %s: %w", namespace, err)
	}
	docs := make([]chromemgo.Document, len(records))
	for i, r := range records {
		docs[i] = chromemgo.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  r.Metadata,
			Embedding: r.Vector,
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("chromem: adding documents to %s: %w", namespace, err)
	}
	s.logger.Debug("upserted records",
		zap.String("namespace", namespace),
		zap.Int("count", len(records)),
	)
	return nil
}

func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("chromem: topK must be positive, got %d", topK)
	}
	collection := s.db.GetCollection(namespace, nil)
	if collection == nil {
		// unknown namespace reads as empty, not as an error
		return nil, nil
	}
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: querying %s: %w", namespace, err)
	}
	scored := make([]domain.ScoredRecord, len(results))
	for i, r := range results {
		scored[i] = domain.ScoredRecord{
			VectorRecord: domain.VectorRecord{
				ID:       r.ID,
				Vector:   r.Embedding,
				Text:     r.Content,
				Metadata: r.Metadata,
			},
			Score: r.Similarity,
		}
	}
	return scored, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Package memory provides an in-memory vector store using brute-force
// cosine similarity. It is used in tests and for small throwaway corpora.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// Store keeps records per namespace in insertion order. Ranking ties are
// broken by insertion order, which keeps retrieval deterministic for a fixed
// store state.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string][]domain.VectorRecord
}

func New() *Store {
	return &Store{namespaces: make(map[string][]domain.VectorRecord)}
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) == 0 {
			return errors.New("memory: record has empty vector")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[namespace] = append(s.namespaces[namespace], records...)
	return nil
}

func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, errors.New("memory: topK must be positive")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.namespaces[namespace]
	scored := make([]domain.ScoredRecord, len(records))
	for i, r := range records {
		scored[i] = domain.ScoredRecord{VectorRecord: r, Score: cosine(r.Vector, vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Package qdrant provides a vector store backed by a Qdrant server over its
// native gRPC transport.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	qdrantgo "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

const defaultMaxMessageSize = 32 * 1024 * 1024

// Config holds Qdrant connection settings. Port is the gRPC port (6334 by
// default), not the HTTP REST port.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store maps each namespace to one Qdrant collection with cosine distance.
// Collections are created on first write with the dimension of the records
// being written.
type Store struct {
	client *qdrantgo.Client
	logger *zap.Logger

	// collections caches namespaces known to exist
	collections sync.Map
}

func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrantgo.NewClient(&qdrantgo.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(defaultMaxMessageSize),
				grpc.MaxCallSendMsgSize(defaultMaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connecting to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	logger.Info("qdrant store connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("tls", cfg.UseTLS),
	)
	return &Store{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, namespace, len(records[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrantgo.PointStruct, len(records))
	for i, r := range records {
		payload := map[string]*qdrantgo.Value{
			"text": {Kind: &qdrantgo.Value_StringValue{StringValue: r.Text}},
			"id":   {Kind: &qdrantgo.Value_StringValue{StringValue: r.ID}},
		}
		for k, v := range r.Metadata {
			payload[k] = &qdrantgo.Value{Kind: &qdrantgo.Value_StringValue{StringValue: v}}
		}

		// Qdrant point IDs must be UUIDs or integers; the record ID is kept
		// in the payload for retrieval either way.
		pointID := r.ID
		if _, err := uuid.Parse(pointID); err != nil {
			pointID = uuid.NewString()
		}
		points[i] = &qdrantgo.PointStruct{
			Id:      qdrantgo.NewIDUUID(pointID),
			Vectors: qdrantgo.NewVectors(r.Vector...),
			Payload: payload,
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrantgo.UpsertPoints{
		CollectionName: namespace,
		Points:         points,
		Wait:           qdrantgo.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("qdrant: upserting %d points to %s: %w", len(points), namespace, err)
	}
	s.logger.Debug("upserted records",
		zap.String("namespace", namespace),
		zap.Int("count", len(records)),
	)
	return nil
}

func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("qdrant: topK must be positive, got %d", topK)
	}
	exists, err := s.collectionExists(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		// unknown namespace reads as empty, not as an error
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrantgo.QueryPoints{
		CollectionName: namespace,
		Query:          qdrantgo.NewQuery(vector...),
		Limit:          qdrantgo.PtrOf(uint64(topK)),
		WithPayload:    qdrantgo.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: querying %s: %w", namespace, err)
	}

	scored := make([]domain.ScoredRecord, len(points))
	for i, p := range points {
		record := domain.VectorRecord{Metadata: make(map[string]string)}
		for k, v := range p.Payload {
			sv, ok := v.Kind.(*qdrantgo.Value_StringValue)
			if !ok {
				continue
			}
			switch k {
			case "text":
				record.Text = sv.StringValue
			case "id":
				record.ID = sv.StringValue
			default:
				record.Metadata[k] = sv.StringValue
			}
		}
		scored[i] = domain.ScoredRecord{VectorRecord: record, Score: p.Score}
	}
	return scored, nil
}

func (s *Store) ensureCollection(ctx context.Context, namespace string, dimension int) error {
	if _, ok := s.collections.Load(namespace); ok {
		return nil
	}
	exists, err := s.collectionExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrantgo.CreateCollection{
			CollectionName: namespace,
			VectorsConfig: qdrantgo.NewVectorsConfig(&qdrantgo.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrantgo.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("qdrant: creating collection %s: %w", namespace, err)
		}
		s.logger.Info("created collection",
			zap.String("namespace", namespace),
			zap.Int("dimension", dimension),
		)
	}
	s.collections.Store(namespace, true)
	return nil
}

func (s *Store) collectionExists(ctx context.Context, namespace string) (bool, error) {
	if _, ok := s.collections.Load(namespace); ok {
		return true, nil
	}
	exists, err := s.client.CollectionExists(ctx, namespace)
	if err != nil {
		return false, fmt.Errorf("qdrant: checking collection %s: %w", namespace, err)
	}
	if exists {
		s.collections.Store(namespace, true)
	}
	return exists, nil
}

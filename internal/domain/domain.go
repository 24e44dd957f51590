// Package domain holds the core data model and the contracts between the
// ingestion and query pipelines and their external collaborators.
package domain

import "context"

// Metadata keys attached to every vector record so retrieved passages can be
// traced back to their source document.
const (
	MetaDocumentID = "document_id"
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaOrdinal    = "ordinal"
)

// Document is a single source file loaded for one ingestion run.
type Document struct {
	ID      string
	Source  string
	Title   string
	Content string
}

// Chunk is a bounded, possibly overlapping piece of a document. It is the
// unit of embedding and retrieval.
type Chunk struct {
	DocumentID string
	Source     string
	Title      string
	Text       string
	Ordinal    int
	Offset     int
}

// VectorRecord is a chunk's embedding together with its original text and
// metadata, as persisted in a vector store namespace.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// ScoredRecord is a retrieval result: a stored record plus its similarity
// score against the query vector.
type ScoredRecord struct {
	VectorRecord
	Score float32
}

// Answer is the result of one query pipeline invocation. Context holds the
// retrieved records the synthesizer was conditioned on, most similar first.
type Answer struct {
	Text    string
	Context []ScoredRecord
}

// Embedder maps text to fixed-dimension vectors. Both methods must apply to
// text that has already been normalized by the caller, so that indexed
// content and queries live in the same vector space.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vector records under a flat namespace and supports
// nearest-neighbour queries. Upsert is append-only from the pipelines' point
// of view; Query returns at most topK records ranked by descending
// similarity, with ties broken by insertion order.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]ScoredRecord, error)
}

// Synthesizer produces a natural-language answer for a question given the
// retrieved context passages, ordered by rank.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, passages []string) (string, error)
}

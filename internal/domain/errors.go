package domain

import "errors"

// Error taxonomy for the two pipelines. Pipeline methods wrap underlying
// collaborator failures with one of these sentinels so callers can map them
// to user-visible behaviour with errors.Is.
var (
	// ErrEmptyQuery is returned when a question is empty or whitespace-only
	// after normalization, before any external call is made.
	ErrEmptyQuery = errors.New("empty query")

	// ErrRetrieval wraps embedding or vector store failures on the query path.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrIngestion wraps embedding or vector store failures during ingestion.
	ErrIngestion = errors.New("ingestion failed")

	// ErrSynthesis wraps answer generation failures.
	ErrSynthesis = errors.New("answer synthesis failed")
)

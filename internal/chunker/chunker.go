// Package chunker splits documents into overlapping, size-bounded chunks.
package chunker

import (
	"errors"
	"strings"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// Chunker splits document text into rune-counted windows of at most
// maxChunkSize, where consecutive windows overlap by overlap runes. When a
// natural boundary (paragraph break, sentence end, whitespace) falls in the
// second half of a window, the cut is moved there to avoid mid-sentence
// splits.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

// New validates the chunking parameters. Overlap must be strictly smaller
// than the chunk size, and both must be positive.
func New(maxChunkSize, overlap int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		return nil, errors.New("chunker: max chunk size must be positive")
	}
	if overlap < 0 {
		return nil, errors.New("chunker: overlap must not be negative")
	}
	if overlap >= maxChunkSize {
		return nil, errors.New("chunker: overlap must be smaller than max chunk size")
	}
	return &Chunker{maxChunkSize: maxChunkSize, overlap: overlap}, nil
}

// Split is a pure function over the document: it emits chunks in document
// order, each at most maxChunkSize runes long. An empty document yields no
// chunks; a document shorter than maxChunkSize yields exactly one.
func (c *Chunker) Split(doc domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}
	text := []rune(doc.Content)

	var chunks []domain.Chunk
	start := 0
	ordinal := 0
	for {
		end := start + c.maxChunkSize
		if end >= len(text) {
			chunks = append(chunks, c.chunk(doc, text[start:], start, ordinal))
			break
		}
		if cut := boundaryCut(text[start:end]); cut > 0 {
			end = start + cut
		}
		chunks = append(chunks, c.chunk(doc, text[start:end], start, ordinal))
		next := end - c.overlap
		if next <= start {
			// boundary adjustment shrank the window below the overlap;
			// drop the overlap for this step so the scan always advances
			next = end
		}
		start = next
		ordinal++
	}
	return chunks
}

func (c *Chunker) chunk(doc domain.Document, window []rune, offset, ordinal int) domain.Chunk {
	return domain.Chunk{
		DocumentID: doc.ID,
		Source:     doc.Source,
		Title:      doc.Title,
		Text:       string(window),
		Ordinal:    ordinal,
		Offset:     offset,
	}
}

// boundaryCut finds a preferred cut position inside a full window, searching
// backwards for a paragraph break, then a sentence end, then any whitespace.
// Only cuts in the second half of the window are accepted so chunks never
// degenerate. Returns 0 when no acceptable boundary exists.
func boundaryCut(window []rune) int {
	minCut := len(window) / 2
	for i := len(window) - 2; i >= minCut; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i + 2
		}
	}
	for i := len(window) - 2; i >= minCut; i-- {
		if isSentenceEnd(window[i]) && isSpace(window[i+1]) {
			return i + 1
		}
	}
	for i := len(window) - 1; i >= minCut; i-- {
		if isSpace(window[i]) {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

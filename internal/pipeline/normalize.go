package pipeline

import "strings"

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize trims surrounding whitespace and collapses internal newlines to
// spaces. It is applied to every text handed to the embedder, on both the
// ingestion and query sides, so indexed content and questions share one
// vector space.
func Normalize(text string) string {
	return strings.TrimSpace(newlineReplacer.Replace(text))
}

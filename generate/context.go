package generate

import (
	"context"
	"strings"

	"github.com/Paranoid-AF/qgen/index"
)

// Retriever returns the knowledge base documents most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.Document, error)
}

// joinContext concatenates the retrieved documents' text, one per line.
func joinContext(docs []index.Document) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return strings.Join(texts, "\n")
}

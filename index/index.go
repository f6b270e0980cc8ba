// Package index builds and queries the knowledge base similarity index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/hnsw"
)

const indexBatchSize = 32

// Options controls index construction.
type Options struct {
	// CachePath, when set, is where document embeddings are reused from and saved to.
	CachePath string
}

// Index is an HNSW graph over knowledge base documents, keyed by document ID.
// It is read-only after Build.
type Index struct {
	embedder Embedder

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	docs  map[string]Document
	order []string // document IDs in knowledge base order
	dims  int
}

// Build embeds docs and inserts them into a new index.
// Any embedding failure aborts the build.
func Build(ctx context.Context, docs []Document, embedder Embedder, opts Options) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("index: embedder is required")
	}

	idx := &Index{
		embedder: embedder,
		graph:    hnsw.NewGraph[string](),
		docs:     make(map[string]Document, len(docs)),
		order:    make([]string, 0, len(docs)),
	}
	idx.graph.Distance = hnsw.CosineDistance

	cached := map[string][]float32{}
	if opts.CachePath != "" {
		var err error
		cached, err = loadCache(opts.CachePath, embedder.Model())
		if err != nil {
			slog.Warn("ignoring unreadable embedding cache", "path", opts.CachePath, "error", err)
			cached = map[string][]float32{}
		}
	}

	vectors := make(map[string][]float32, len(docs))
	var toEmbed []Document
	for _, doc := range docs {
		if _, dup := idx.docs[doc.ID]; dup {
			continue
		}
		idx.docs[doc.ID] = doc
		idx.order = append(idx.order, doc.ID)
		if vec, ok := cached[doc.ID]; ok {
			vectors[doc.ID] = vec
		} else {
			toEmbed = append(toEmbed, doc)
		}
	}

	for i := 0; i < len(toEmbed); i += indexBatchSize {
		end := min(i+indexBatchSize, len(toEmbed))
		batch := toEmbed[i:end]

		texts := make([]string, len(batch))
		for j, doc := range batch {
			texts[j] = doc.Text
		}
		embedded, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("embed documents: got %d vectors for %d documents", len(embedded), len(batch))
		}
		for j, doc := range batch {
			vectors[doc.ID] = embedded[j]
		}
	}

	dims := -1
	nodes := make([]hnsw.Node[string], 0, len(idx.order))
	for _, id := range idx.order {
		vec := vectors[id]
		if dims < 0 {
			dims = len(vec)
		}
		if len(vec) == 0 || len(vec) != dims {
			return nil, fmt.Errorf("index: document %.12s has embedding dimension %d, want %d", id, len(vec), dims)
		}
		nodes = append(nodes, hnsw.MakeNode(id, vec))
	}
	if len(nodes) > 0 {
		idx.graph.Add(nodes...)
		idx.dims = dims
	}

	slog.Info("knowledge index built",
		"documents", len(idx.order),
		"embedded", len(toEmbed),
		"cached", len(idx.order)-len(toEmbed),
	)

	if opts.CachePath != "" && len(toEmbed) > 0 {
		if err := idx.SaveCache(opts.CachePath); err != nil {
			slog.Warn("failed to save embedding cache", "path", opts.CachePath, "error", err)
		}
	}

	return idx, nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph.Len()
}

// Retrieve embeds the query and returns the k most similar documents, most similar first.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 || idx.Len() == 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != idx.dims {
		return nil, fmt.Errorf("query embedding dimension %d, index has %d", len(queryVec), idx.dims)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	neighbors := idx.graph.Search(queryVec, k)
	docs := make([]Document, 0, len(neighbors))
	for _, n := range neighbors {
		if doc, ok := idx.docs[n.Key]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

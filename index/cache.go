package index

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/google/renameio"
)

type cacheFile struct {
	Model   string       `json:"model"`
	Entries []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Hash      string    `json:"hash"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// SaveCache writes the indexed document embeddings to disk, replacing path atomically.
func (idx *Index) SaveCache(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]cacheEntry, 0, len(idx.order))
	for _, id := range idx.order {
		vec, ok := idx.graph.Lookup(id)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{
			Hash:      id,
			Source:    idx.docs[id].Source,
			Embedding: vec,
		})
	}

	data, err := json.Marshal(cacheFile{
		Model:   idx.embedder.Model(),
		Entries: entries,
	})
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}

// loadCache reads document embeddings saved by SaveCache.
// A missing file or a cache built with another model yields an empty map.
func loadCache(path string, model string) (map[string][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]float32{}, nil
		}
		return nil, err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	vectors := make(map[string][]float32, len(cf.Entries))
	if cf.Model != model {
		return vectors, nil
	}
	for _, e := range cf.Entries {
		if len(e.Embedding) > 0 {
			vectors[e.Hash] = e.Embedding
		}
	}
	return vectors, nil
}

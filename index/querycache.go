package index

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// QueryCache is an Embedder that remembers query vectors for a TTL.
// Keys are normalized query text, so whitespace-only differences share an entry.
type QueryCache struct {
	inner Embedder
	cache *ttlcache.Cache[string, []float32]
}

// NewQueryCache wraps inner with a TTL cache. capacity <= 0 means unbounded.
func NewQueryCache(inner Embedder, ttl time.Duration, capacity int) *QueryCache {
	opts := []ttlcache.Option[string, []float32]{
		ttlcache.WithTTL[string, []float32](ttl),
		ttlcache.WithDisableTouchOnHit[string, []float32](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []float32](uint64(capacity)))
	}
	c := ttlcache.New[string, []float32](opts...)
	go c.Start()
	return &QueryCache{inner: inner, cache: c}
}

// Model returns the wrapped embedder's model name.
func (q *QueryCache) Model() string { return q.inner.Model() }

// Embed returns the cached vector for text, embedding it on a miss.
func (q *QueryCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := NormalizeText(text)
	if item := q.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	vec, err := q.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	q.cache.Set(key, vec, ttlcache.DefaultTTL)
	return vec, nil
}

// EmbedBatch bypasses the cache; it is used for bulk document indexing.
func (q *QueryCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return q.inner.EmbedBatch(ctx, texts)
}

// Len returns the number of cached queries.
func (q *QueryCache) Len() int {
	return q.cache.Len()
}

// Close stops the cache expiration loop.
func (q *QueryCache) Close() {
	q.cache.Stop()
}

package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/hrygo/orioncx/plugin/ai/cache"
)

const (
	// DefaultEmbeddingCacheSize bounds the number of cached query embeddings.
	DefaultEmbeddingCacheSize = 1000
	// DefaultEmbeddingCacheTTL is how long a query embedding stays cached.
	DefaultEmbeddingCacheTTL = 30 * time.Minute
)

// CachedEmbedder memoizes query embeddings by trimmed query text.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.LRU[string, []float32]
}

// NewCachedEmbedder wraps next with an LRU cache.
func NewCachedEmbedder(next Embedder, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		next:  next,
		cache: cache.New[string, []float32](size, ttl),
	}
}

// Embedding returns the cached vector for text, computing it on a miss.
// Failures are not cached.
func (e *CachedEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}
	v, err := e.next.Embedding(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, v, 0)
	return v, nil
}

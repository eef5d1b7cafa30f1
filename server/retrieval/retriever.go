// Package retrieval looks up knowledge-base context for a user query and
// ingests documents into the knowledge base.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hrygo/orioncx/server/internal/observability"
	"github.com/hrygo/orioncx/store"
)

// DefaultTopK is the number of documents joined into the retrieved context.
const DefaultTopK = 3

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentSearcher finds the documents nearest to an embedding.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, opts *store.DocumentSearchOptions) ([]*store.DocumentWithDistance, error)
}

// Retriever returns knowledge-base context for a query.
type Retriever struct {
	embedder    Embedder
	searcher    DocumentSearcher
	maxDistance float64
	metrics     *observability.Metrics
}

// NewRetriever creates a retriever. maxDistance of zero keeps every hit.
func NewRetriever(embedder Embedder, searcher DocumentSearcher, maxDistance float64, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		embedder:    embedder,
		searcher:    searcher,
		maxDistance: maxDistance,
		metrics:     metrics,
	}
}

// RetrieveContext returns the content of the k nearest documents joined by a
// blank line. It returns "" when nothing matches or on any failure; errors are
// logged, never returned.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, k int) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}
	if k <= 0 {
		k = DefaultTopK
	}

	embedding, err := r.embedder.Embedding(ctx, query)
	if err != nil {
		slog.Warn("failed to embed retrieval query", "error", err)
		r.metrics.ObserveRetrieval("error")
		return ""
	}

	hits, err := r.searcher.SearchDocuments(ctx, &store.DocumentSearchOptions{
		Embedding:   embedding,
		Limit:       k,
		MaxDistance: r.maxDistance,
	})
	if err != nil {
		slog.Warn("failed to search documents", "error", err)
		r.metrics.ObserveRetrieval("error")
		return ""
	}

	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Document == nil || strings.TrimSpace(hit.Document.Content) == "" {
			continue
		}
		parts = append(parts, hit.Document.Content)
		if len(parts) == k {
			break
		}
	}

	if len(parts) == 0 {
		r.metrics.ObserveRetrieval("miss")
		return ""
	}
	r.metrics.ObserveRetrieval("hit")
	return strings.Join(parts, "\n\n")
}

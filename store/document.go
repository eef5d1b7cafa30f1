package store

import "context"

// Document is a knowledge-base entry used for retrieval.
type Document struct {
	ID        int32
	Name      string
	Content   string
	Embedding []float32
	Model     string
	CreatedTs int64
}

// DocumentSearchOptions configures a similarity search.
type DocumentSearchOptions struct {
	Embedding []float32
	Limit     int
	// MaxDistance drops results further than this L2 distance. Zero disables it.
	MaxDistance float64
}

// DocumentWithDistance is a search hit ordered by ascending L2 distance.
type DocumentWithDistance struct {
	Document *Document
	Distance float64
}

func (s *Store) CreateDocument(ctx context.Context, create *Document) (*Document, error) {
	return s.driver.CreateDocument(ctx, create)
}

func (s *Store) SearchDocuments(ctx context.Context, opts *DocumentSearchOptions) ([]*DocumentWithDistance, error) {
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	return s.driver.SearchDocuments(ctx, opts)
}

package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/orioncx/store"
)

// CreateDocument is not supported: documents need a vector column.
func (*DB) CreateDocument(context.Context, *store.Document) (*store.Document, error) {
	return nil, errors.Wrap(store.ErrVectorSearchUnsupported, "failed to create document")
}

// SearchDocuments is not supported on SQLite.
func (*DB) SearchDocuments(context.Context, *store.DocumentSearchOptions) ([]*store.DocumentWithDistance, error) {
	return nil, store.ErrVectorSearchUnsupported
}

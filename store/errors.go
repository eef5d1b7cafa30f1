package store

import "errors"

var (
	// ErrConflict is returned when a create collides with an existing key.
	ErrConflict = errors.New("store: duplicate key")
	// ErrNotFound is returned when an update targets a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrVectorSearchUnsupported is returned by drivers without vector support.
	ErrVectorSearchUnsupported = errors.New("store: vector search requires PostgreSQL with pgvector")
)

package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/orioncx/store"
)

func (d *DB) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	fields := []string{"name", "content", "embedding", "model", "created_ts"}
	args := []any{create.Name, create.Content, pgvector.NewVector(create.Embedding), create.Model, create.CreatedTs}

	stmt := `INSERT INTO document (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create document")
	}
	return create, nil
}

// SearchDocuments returns the documents closest to the query embedding by L2
// distance.
func (d *DB) SearchDocuments(ctx context.Context, opts *store.DocumentSearchOptions) ([]*store.DocumentWithDistance, error) {
	if len(opts.Embedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	where, args := []string{"1 = 1"}, []any{pgvector.NewVector(opts.Embedding)}
	if opts.MaxDistance > 0 {
		where, args = append(where, "embedding <-> $1 <= "+placeholder(len(args)+1)), append(args, opts.MaxDistance)
	}
	args = append(args, opts.Limit)

	query := `
		SELECT id, name, content, model, created_ts, embedding <-> $1 AS distance
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <-> $1
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search documents")
	}
	defer rows.Close()

	results := []*store.DocumentWithDistance{}
	for rows.Next() {
		doc := &store.Document{}
		var distance float64
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &doc.Model, &doc.CreatedTs, &distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		results = append(results, &store.DocumentWithDistance{Document: doc, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate documents")
	}
	return results, nil
}

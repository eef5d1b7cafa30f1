package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/orioncx/store"
)

const conversationColumns = `id, user_id, COALESCE(summary, ''), COALESCE(extracted_data::text, ''), status, language, COALESCE(rag_context, ''), model, context_window, max_out_tokens, created_ts, updated_ts`

func scanConversation(row interface{ Scan(...any) error }) (*store.Conversation, error) {
	c := &store.Conversation{}
	err := row.Scan(&c.ID, &c.UserID, &c.Summary, &c.ExtractedData, &c.Status, &c.Language, &c.RAGContext, &c.Model, &c.ContextWindow, &c.MaxOutTokens, &c.CreatedTs, &c.UpdatedTs)
	return c, err
}

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation, messages []*store.Message) (*store.Conversation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	fields := []string{"id", "user_id", "summary", "extracted_data", "status", "language", "rag_context", "model", "context_window", "max_out_tokens", "created_ts", "updated_ts"}
	args := []any{create.ID, create.UserID, nullIfEmpty(create.Summary), nullIfEmpty(create.ExtractedData), create.Status, create.Language, nullIfEmpty(create.RAGContext), create.Model, create.ContextWindow, create.MaxOutTokens, create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrap(store.ErrConflict, "failed to create conversation")
		}
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	if err := appendMessages(ctx, tx, create.ID, messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `SELECT ` + conversationColumns + ` FROM conversation WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conversations")
	}
	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation, messages []*store.Message) (*store.Conversation, error) {
	set, args := []string{}, []any{}

	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, nullIfEmpty(*update.Summary))
	}
	if update.ExtractedData != nil {
		set, args = append(set, "extracted_data = "+placeholder(len(args)+1)), append(args, nullIfEmpty(*update.ExtractedData))
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.Language != nil {
		set, args = append(set, "language = "+placeholder(len(args)+1)), append(args, *update.Language)
	}
	if update.RAGContext != nil {
		set, args = append(set, "rag_context = "+placeholder(len(args)+1)), append(args, nullIfEmpty(*update.RAGContext))
	}
	if update.Model != nil {
		set, args = append(set, "model = "+placeholder(len(args)+1)), append(args, *update.Model)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	args = append(args, update.ID)
	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + conversationColumns
	result, err := scanConversation(tx.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrap(store.ErrNotFound, "failed to update conversation")
		}
		return nil, errors.Wrap(err, "failed to update conversation")
	}

	if err := appendMessages(ctx, tx, update.ID, messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return result, nil
}

// appendMessages inserts messages after the current last position. Messages
// already stored are skipped so a retried write does not duplicate them.
func appendMessages(ctx context.Context, tx *sql.Tx, conversationID string, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM message WHERE conversation_id = `+placeholder(1), conversationID).Scan(&next); err != nil {
		return errors.Wrap(err, "failed to read message position")
	}

	fields := []string{"id", "conversation_id", "position", "role", "content", "created_ts"}
	stmt := `INSERT INTO message (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(fields)) + `) ON CONFLICT (id) DO NOTHING`
	for _, m := range messages {
		res, err := tx.ExecContext(ctx, stmt, m.ID, conversationID, next, m.Role, m.Content, m.CreatedTs)
		if err != nil {
			return errors.Wrap(err, "failed to create message")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		m.ConversationID = conversationID
		m.Position = next
		next++
	}
	return nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	query := `SELECT id, conversation_id, position, role, content, created_ts FROM message WHERE conversation_id = ` + placeholder(1) + ` ORDER BY position ASC`
	rows, err := d.db.QueryContext(ctx, query, find.ConversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Position, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate messages")
	}
	return list, nil
}

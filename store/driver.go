package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Conversation model related methods. Messages passed to create and
	// update are appended in the same transaction; re-sending an already
	// stored message is a no-op.
	CreateConversation(ctx context.Context, create *Conversation, messages []*Message) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation, messages []*Message) (*Conversation, error)

	// Message model related methods.
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)

	// Document model related methods.
	CreateDocument(ctx context.Context, create *Document) (*Document, error)
	SearchDocuments(ctx context.Context, opts *DocumentSearchOptions) ([]*DocumentWithDistance, error)
}

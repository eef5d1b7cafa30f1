package store

import "context"

type Conversation struct {
	ID            string
	UserID        string
	Summary       string
	ExtractedData string // JSON text, empty when unset
	Status        string
	Language      string
	RAGContext    string
	Model         string
	ContextWindow int
	MaxOutTokens  int
	CreatedTs     int64
	UpdatedTs     int64
}

type FindConversation struct {
	ID *string
}

type UpdateConversation struct {
	ID            string
	Summary       *string
	ExtractedData *string
	Status        *string
	Language      *string
	RAGContext    *string
	Model         *string
	UpdatedTs     *int64
}

type Message struct {
	ID             string
	ConversationID string
	// Position is assigned by the driver and orders the history.
	Position  int
	Role      string
	Content   string
	CreatedTs int64
}

type FindMessage struct {
	ConversationID string
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation, messages []*Message) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create, messages)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the conversation with id, or nil when absent.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	list, err := s.ListConversations(ctx, &FindConversation{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation, messages []*Message) (*Conversation, error) {
	return s.driver.UpdateConversation(ctx, update, messages)
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

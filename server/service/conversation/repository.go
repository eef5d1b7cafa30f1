package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/store"
)

// MaxCreateAttempts bounds identity collision retries on create.
const MaxCreateAttempts = 3

// ErrCorruptConversation is returned when stored rows cannot be rebuilt into
// a conversation. It carries no domain kind, so use cases report it as an
// internal error.
var ErrCorruptConversation = errors.New("stored conversation is corrupt")

// Store is the subset of store operations used by the repositories.
type Store interface {
	CreateUser(ctx context.Context, create *store.User) (*store.User, error)
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	CreateConversation(ctx context.Context, create *store.Conversation, messages []*store.Message) (*store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, update *store.UpdateConversation, messages []*store.Message) (*store.Conversation, error)
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
}

// Repository loads and saves conversations.
type Repository interface {
	// GetByID returns a NOT_FOUND error when the conversation does not exist.
	GetByID(ctx context.Context, id string) (*aiconv.Conversation, error)
	// Create persists a new conversation and its pending messages. On an
	// identity collision the conversation gets a fresh id and the write is
	// retried.
	Create(ctx context.Context, c *aiconv.Conversation) error
	// Update persists the conversation state and its pending messages.
	Update(ctx context.Context, c *aiconv.Conversation) error
}

// UserRepository loads and creates users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*store.User, error)
	CreateAnonymous(ctx context.Context) (*store.User, error)
}

type repository struct {
	store Store
	opts  []aiconv.Option
}

// NewRepository creates a repository. opts are applied to every restored
// conversation, typically the clock and transition policy.
func NewRepository(s Store, opts ...aiconv.Option) Repository {
	return &repository{store: s, opts: opts}
}

func (r *repository) GetByID(ctx context.Context, id string) (*aiconv.Conversation, error) {
	row, err := r.store.GetConversation(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation")
	}
	if row == nil {
		return nil, apperrors.NotFound("CONVERSATION_NOT_FOUND", "conversation not found").
			WithDetail("conversation_id", id)
	}

	rows, err := r.store.ListMessages(ctx, &store.FindMessage{ConversationID: id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	messages := make([]*aiconv.Message, 0, len(rows))
	for _, m := range rows {
		msg, err := aiconv.RestoreMessage(m.ID, aiconv.Role(m.Role), m.Content, time.Unix(m.CreatedTs, 0))
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptConversation, "conversation %s: message %s: %v", id, m.ID, err)
		}
		messages = append(messages, msg)
	}

	var extracted json.RawMessage
	if row.ExtractedData != "" {
		extracted = json.RawMessage(row.ExtractedData)
	}
	c, err := aiconv.Restore(aiconv.Snapshot{
		ID:            row.ID,
		UserID:        row.UserID,
		Messages:      messages,
		Summary:       row.Summary,
		ExtractedData: extracted,
		Status:        aiconv.Status(row.Status),
		Language:      row.Language,
		RAGContext:    row.RAGContext,
		Model:         row.Model,
		ContextWindow: row.ContextWindow,
		MaxOutTokens:  row.MaxOutTokens,
		CreatedAt:     time.Unix(row.CreatedTs, 0),
		UpdatedAt:     time.Unix(row.UpdatedTs, 0),
	}, r.opts...)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptConversation, "conversation %s: %v", id, err)
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c *aiconv.Conversation) error {
	var lastErr error
	for attempt := 0; attempt < MaxCreateAttempts; attempt++ {
		snap := c.Snapshot()
		_, err := r.store.CreateConversation(ctx, &store.Conversation{
			ID:            snap.ID,
			UserID:        snap.UserID,
			Summary:       snap.Summary,
			ExtractedData: string(snap.ExtractedData),
			Status:        string(snap.Status),
			Language:      snap.Language,
			RAGContext:    snap.RAGContext,
			Model:         snap.Model,
			ContextWindow: snap.ContextWindow,
			MaxOutTokens:  snap.MaxOutTokens,
			CreatedTs:     snap.CreatedAt.Unix(),
			UpdatedTs:     snap.UpdatedAt.Unix(),
		}, messageRows(snap.ID, c.PendingMessages()))
		if err == nil {
			c.CommitMessages()
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return errors.Wrap(err, "failed to create conversation")
		}
		lastErr = err
		c.RegenerateID()
	}
	return errors.Wrapf(lastErr, "failed to create conversation after %d attempts", MaxCreateAttempts)
}

func (r *repository) Update(ctx context.Context, c *aiconv.Conversation) error {
	snap := c.Snapshot()
	status := string(snap.Status)
	extracted := string(snap.ExtractedData)
	updatedTs := snap.UpdatedAt.Unix()

	_, err := r.store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:            snap.ID,
		Summary:       &snap.Summary,
		ExtractedData: &extracted,
		Status:        &status,
		Language:      &snap.Language,
		RAGContext:    &snap.RAGContext,
		Model:         &snap.Model,
		UpdatedTs:     &updatedTs,
	}, messageRows(snap.ID, c.PendingMessages()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("CONVERSATION_NOT_FOUND", "conversation not found").
				WithDetail("conversation_id", snap.ID)
		}
		return errors.Wrap(err, "failed to update conversation")
	}
	c.CommitMessages()
	return nil
}

func messageRows(conversationID string, messages []*aiconv.Message) []*store.Message {
	rows := make([]*store.Message, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, &store.Message{
			ID:             m.ID(),
			ConversationID: conversationID,
			Role:           string(m.Role()),
			Content:        m.Content(),
			CreatedTs:      m.CreatedAt().Unix(),
		})
	}
	return rows
}

type userRepository struct {
	store Store
	now   func() time.Time
}

// NewUserRepository creates a user repository.
func NewUserRepository(s Store) UserRepository {
	return &userRepository{store: s, now: time.Now}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*store.User, error) {
	user, err := r.store.GetUser(ctx, &store.FindUser{ID: &id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	if user == nil {
		return nil, apperrors.NotFound("USER_NOT_FOUND", "user not found").WithDetail("user_id", id)
	}
	return user, nil
}

// CreateAnonymous creates a user named "Anonymous_" plus a short random
// suffix, retrying on a name or id collision.
func (r *userRepository) CreateAnonymous(ctx context.Context) (*store.User, error) {
	var lastErr error
	for attempt := 0; attempt < MaxCreateAttempts; attempt++ {
		ts := r.now().Unix()
		user, err := r.store.CreateUser(ctx, &store.User{
			ID:        uuid.NewString(),
			Username:  anonymousName(),
			CreatedTs: ts,
			UpdatedTs: ts,
		})
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, errors.Wrap(err, "failed to create anonymous user")
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "failed to create anonymous user after %d attempts", MaxCreateAttempts)
}

func anonymousName() string {
	return "Anonymous_" + shortuuid.New()[:8]
}

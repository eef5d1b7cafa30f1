package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	"github.com/hrygo/orioncx/internal/profile"
	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/store"
	"github.com/hrygo/orioncx/store/db/sqlite"
)

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Driver: "sqlite", DSN: ":memory:"}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// collidingStore fails the first n conversation creates with a conflict.
type collidingStore struct {
	*store.Store
	collisions int
	seenIDs    []string
}

func (s *collidingStore) CreateConversation(ctx context.Context, create *store.Conversation, messages []*store.Message) (*store.Conversation, error) {
	s.seenIDs = append(s.seenIDs, create.ID)
	if s.collisions > 0 {
		s.collisions--
		return nil, store.ErrConflict
	}
	return s.Store.CreateConversation(ctx, create, messages)
}

func newStoredConversation(t *testing.T, users UserRepository) *aiconv.Conversation {
	t.Helper()
	user, err := users.CreateAnonymous(context.Background())
	require.NoError(t, err)

	c, err := aiconv.New(user.ID, aiconv.WithLanguage("en"))
	require.NoError(t, err)
	sys, err := aiconv.NewMessage(aiconv.RoleSystem, "You are Orion.")
	require.NoError(t, err)
	require.NoError(t, c.UpdateSystemPrompt(sys))
	require.NoError(t, c.AddMessage(sys))
	greeting, err := aiconv.NewMessage(aiconv.RoleAssistant, "Hi, how can I help?")
	require.NoError(t, err)
	require.NoError(t, c.AddMessage(greeting))
	return c
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewRepository(s)
	users := NewUserRepository(s)

	c := newStoredConversation(t, users)
	require.NoError(t, repo.Create(ctx, c))
	assert.Zero(t, c.PendingCount())

	loaded, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, c.UserID(), loaded.UserID())
	assert.Equal(t, "en", loaded.Language())
	assert.Equal(t, aiconv.StatusActive, loaded.Status())
	require.Equal(t, 2, loaded.MessageCount())
	require.NotNil(t, loaded.SystemPrompt())
	assert.Equal(t, "You are Orion.", loaded.SystemPrompt().Content())
	assert.Zero(t, loaded.PendingCount())

	user, err := aiconv.NewMessage(aiconv.RoleUser, "Where is my order?")
	require.NoError(t, err)
	require.NoError(t, loaded.AddMessage(user))
	require.NoError(t, loaded.UpdateSummary("Customer asked about an order."))
	require.NoError(t, loaded.UpdateExtractedData(map[string]any{"order_id": "A-1"}))
	require.NoError(t, loaded.SetStatus(aiconv.StatusCompleted))
	require.NoError(t, repo.Update(ctx, loaded))
	assert.Zero(t, loaded.PendingCount())

	again, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, again.MessageCount())
	assert.Equal(t, "Where is my order?", again.LastMessage().Content())
	assert.Equal(t, "Customer asked about an order.", again.Summary())
	assert.Equal(t, aiconv.StatusCompleted, again.Status())
	assert.Equal(t, map[string]any{"order_id": "A-1"}, again.ExtractedData())
}

func TestRepository_GetByIDMissing(t *testing.T) {
	repo := NewRepository(newSQLiteStore(t))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRepository_GetByIDCorruptRows(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		row      store.Conversation
		messages []*store.Message
	}{
		{
			name: "zero context window",
			row:  store.Conversation{ContextWindow: 0, MaxOutTokens: 0},
		},
		{
			name: "invalid extracted data",
			row:  store.Conversation{ContextWindow: 100, MaxOutTokens: 10, ExtractedData: "{not json"},
		},
		{
			name:     "empty message content",
			row:      store.Conversation{ContextWindow: 100, MaxOutTokens: 10},
			messages: []*store.Message{{ID: "m1", Role: "user", Content: "", CreatedTs: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSQLiteStore(t)
			_, err := s.CreateUser(ctx, &store.User{ID: "u1", Username: "Anonymous_u1"})
			require.NoError(t, err)

			row := tt.row
			row.ID, row.UserID, row.Status, row.Language, row.Model = "c1", "u1", "ACTIVE", "es", "gpt-4o"
			_, err = s.CreateConversation(ctx, &row, tt.messages)
			require.NoError(t, err)

			_, err = NewRepository(s).GetByID(ctx, "c1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptConversation)
			_, isDomain := apperrors.As(err)
			assert.False(t, isDomain)
		})
	}
}

func TestRepository_UpdateMissing(t *testing.T) {
	repo := NewRepository(newSQLiteStore(t))
	c, err := aiconv.New("u1")
	require.NoError(t, err)

	err = repo.Update(context.Background(), c)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRepository_CreateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	s := &collidingStore{Store: newSQLiteStore(t), collisions: 2}
	repo := NewRepository(s)

	c := newStoredConversation(t, NewUserRepository(s))
	original := c.ID()
	require.NoError(t, repo.Create(ctx, c))

	require.Len(t, s.seenIDs, 3)
	assert.Equal(t, original, s.seenIDs[0])
	assert.NotEqual(t, original, c.ID())
	assert.Equal(t, c.ID(), s.seenIDs[2])

	loaded, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.MessageCount())
}

func TestRepository_CreateGivesUpAfterMaxAttempts(t *testing.T) {
	s := &collidingStore{Store: newSQLiteStore(t), collisions: MaxCreateAttempts}
	repo := NewRepository(s)

	c := newStoredConversation(t, NewUserRepository(s))
	err := repo.Create(context.Background(), c)

	require.ErrorIs(t, err, store.ErrConflict)
	assert.Len(t, s.seenIDs, MaxCreateAttempts)
	assert.Equal(t, 2, c.PendingCount(), "pending messages stay staged after a failed write")
}

func TestRepository_RestoreAppliesOptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewRepository(s,
		aiconv.WithClock(func() time.Time { return fixed }),
		aiconv.WithTransitionPolicy(aiconv.StrictTransitions))

	c := newStoredConversation(t, NewUserRepository(s))
	require.NoError(t, repo.Create(ctx, c))

	loaded, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)

	require.NoError(t, loaded.SetStatus(aiconv.StatusArchived))
	assert.Equal(t, fixed, loaded.UpdatedAt())
	assert.True(t, apperrors.Is(loaded.SetStatus(aiconv.StatusCompleted), apperrors.KindValidation))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newSQLiteStore(t))

	user, err := users.CreateAnonymous(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^Anonymous_.{8}$`, user.Username)

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)

	_, err = users.GetByID(ctx, "nobody")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

package conversation

import (
	"context"

	"github.com/stretchr/testify/mock"

	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/store"
)

// MockRepository is a mock for Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*aiconv.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiconv.Conversation), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, c *aiconv.Conversation) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil {
		c.CommitMessages()
	}
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, c *aiconv.Conversation) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil {
		c.CommitMessages()
	}
	return args.Error(0)
}

// MockUserRepository is a mock for UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*store.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserRepository) CreateAnonymous(ctx context.Context) (*store.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

// MockModel is a mock for ModelClient. Replies are returned in order.
type MockModel struct {
	mock.Mock
	// Prompts records the messages sent on every GenerateReply call.
	Prompts [][]aiconv.LLMMessage
}

func (m *MockModel) GenerateReply(ctx context.Context, model string, messages []aiconv.LLMMessage) (*aiconv.Message, error) {
	m.Prompts = append(m.Prompts, messages)
	args := m.Called(ctx, model, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiconv.Message), args.Error(1)
}

func (m *MockModel) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	args := m.Called(ctx, audio, filename)
	return args.String(0), args.Error(1)
}

// MockRetriever is a mock for ContextRetriever.
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) RetrieveContext(ctx context.Context, query string, k int) string {
	args := m.Called(ctx, query, k)
	return args.String(0)
}

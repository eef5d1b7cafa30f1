package conversation

import (
	"context"

	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
)

// Service runs the conversation use cases behind the HTTP surface.
type Service interface {
	// StartConversation creates a conversation for an existing or new
	// anonymous user and generates the greeting.
	StartConversation(ctx context.Context, req *StartRequest) (*aiconv.Conversation, error)

	// ProcessMessage appends a user message and the assistant reply.
	ProcessMessage(ctx context.Context, id, content string) (*aiconv.Conversation, error)

	// ProcessAudio transcribes audio, then behaves like ProcessMessage.
	ProcessAudio(ctx context.Context, id string, audio []byte, filename string) (*aiconv.Conversation, error)

	// EndConversation summarizes the conversation, extracts structured data
	// and moves it to the requested status. Nothing is persisted on failure.
	EndConversation(ctx context.Context, id string, status aiconv.Status) (*aiconv.Conversation, error)

	// GetConversation returns the stored conversation.
	GetConversation(ctx context.Context, id string) (*aiconv.Conversation, error)
}

// StartRequest is the input of StartConversation.
type StartRequest struct {
	// UserID selects an existing user. Empty creates an anonymous user.
	UserID string
	// Language is an ISO 639-1 code. Empty uses the configured default.
	Language string
}

// ModelClient generates replies and transcriptions.
type ModelClient interface {
	GenerateReply(ctx context.Context, model string, messages []aiconv.LLMMessage) (*aiconv.Message, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ContextRetriever looks up knowledge-base context. It returns "" when
// nothing relevant exists or the lookup failed.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, k int) string
}

// Prompts provides the system prompt templates.
type Prompts interface {
	Text(name string) (string, error)
}

// ExtractionDecoder turns the extraction reply into the stored value.
type ExtractionDecoder interface {
	Decode(reply string) (any, error)
}

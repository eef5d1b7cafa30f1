package v1

import (
	"time"

	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
)

// StartConversationRequest is the body of POST /api/v1/conversations/start.
type StartConversationRequest struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

// SendMessageRequest is the body of POST /api/v1/conversations/:id/message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// CreateSummaryRequest is the body of POST /api/v1/conversations/:id/summary.
type CreateSummaryRequest struct {
	ConversationStatus string `json:"conversation_status"`
}

// MessageResponse presents one message.
type MessageResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationResponse presents a conversation. System prompts are internal
// and never returned.
type ConversationResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Status    string             `json:"status"`
	Language  string             `json:"language"`
	Summary   string             `json:"summary,omitempty"`
	Messages  []*MessageResponse `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func convertConversationToResponse(c *aiconv.Conversation) *ConversationResponse {
	resp := &ConversationResponse{
		ID:        c.ID(),
		UserID:    c.UserID(),
		Status:    string(c.Status()),
		Language:  c.Language(),
		Summary:   c.Summary(),
		Messages:  []*MessageResponse{},
		CreatedAt: c.CreatedAt().UTC(),
		UpdatedAt: c.UpdatedAt().UTC(),
	}
	for _, m := range c.Messages() {
		if m.IsSystem() {
			continue
		}
		resp.Messages = append(resp.Messages, &MessageResponse{
			ID:        m.ID(),
			Content:   m.Content(),
			Role:      string(m.Role()),
			CreatedAt: m.CreatedAt().UTC(),
		})
	}
	return resp
}

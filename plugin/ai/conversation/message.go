// Package conversation holds the conversation aggregate: messages, lifecycle
// status, system prompt, language and the token-budgeted window assembler.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/hrygo/orioncx/internal/errors"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single conversation turn. Its content never changes after
// construction.
type Message struct {
	id        string
	role      Role
	content   string
	createdAt time.Time
}

// LLMMessage is the wire shape sent to the model.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with a fresh identity.
func NewMessage(role Role, content string) (*Message, error) {
	return RestoreMessage(uuid.NewString(), role, content, time.Now())
}

// RestoreMessage rebuilds a message loaded from storage.
func RestoreMessage(id string, role Role, content string, createdAt time.Time) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validation("INVALID_CONTENT", "message content cannot be empty").
			WithDetail("field", "content")
	}
	if !role.Valid() {
		return nil, apperrors.Validation("INVALID_ROLE", "unknown message role").
			WithDetail("received_role", string(role))
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Message{id: id, role: role, content: content, createdAt: createdAt}, nil
}

func (m *Message) ID() string { return m.id }
func (m *Message) Role() Role { return m.role }
func (m *Message) Content() string { return m.content }
func (m *Message) CreatedAt() time.Time { return m.createdAt }

func (m *Message) IsSystem() bool { return m.role == RoleSystem }
func (m *Message) IsUser() bool { return m.role == RoleUser }
func (m *Message) IsAssistant() bool { return m.role == RoleAssistant }

// ToLLM serializes the message for the model-call collaborator.
func (m *Message) ToLLM() LLMMessage {
	return LLMMessage{Role: string(m.role), Content: m.content}
}

package conversation

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	apperrors "github.com/hrygo/orioncx/internal/errors"
)

// Defaults for newly created conversations.
const (
	DefaultLanguage      = "es"
	DefaultModel         = "gpt-4o"
	DefaultContextWindow = 128000
	DefaultMaxOutTokens  = 16384
)

// Conversation is the aggregate for one support interaction.
// It is owned by a single request at a time and is not safe for concurrent use.
type Conversation struct {
	id     string
	userID string

	messages []*Message
	pending  []*Message

	systemPrompt  *Message
	summary       string
	extractedData any
	extractedRaw  json.RawMessage
	status        Status
	language      string
	ragContext    string

	model         string
	contextWindow int
	maxOutTokens  int

	createdAt time.Time
	updatedAt time.Time

	now    func() time.Time
	policy TransitionPolicy
}

type options struct {
	id            string
	language      string
	model         string
	contextWindow int
	maxOutTokens  int
	now           func() time.Time
	policy        TransitionPolicy
}

// Option configures a Conversation.
type Option func(*options)

// WithID sets the conversation identity instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithLanguage sets the initial two-letter language code.
func WithLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithContextWindow sets the total context size and the output reservation.
func WithContextWindow(contextWindow, maxOutTokens int) Option {
	return func(o *options) {
		o.contextWindow = contextWindow
		o.maxOutTokens = maxOutTokens
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTransitionPolicy guards SetStatus with the given policy.
func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(o *options) { o.policy = p }
}

func buildOptions(opts []Option) options {
	o := options{
		language:      DefaultLanguage,
		model:         DefaultModel,
		contextWindow: DefaultContextWindow,
		maxOutTokens:  DefaultMaxOutTokens,
		now:           time.Now,
		policy:        Unguarded,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.policy == nil {
		o.policy = Unguarded
	}
	return o
}

// New creates an ACTIVE conversation owned by userID.
func New(userID string, opts ...Option) (*Conversation, error) {
	o := buildOptions(opts)

	if userID == "" {
		return nil, apperrors.Validation("INVALID_USER", "conversation requires a user")
	}
	if err := validateBudget(o.contextWindow, o.maxOutTokens); err != nil {
		return nil, err
	}
	lang, err := normalizeLanguage(o.language)
	if err != nil {
		return nil, err
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	now := o.now()
	return &Conversation{
		id:            o.id,
		userID:        userID,
		status:        StatusActive,
		language:      lang,
		model:         o.model,
		contextWindow: o.contextWindow,
		maxOutTokens:  o.maxOutTokens,
		createdAt:     now,
		updatedAt:     now,
		now:           o.now,
		policy:        o.policy,
	}, nil
}

// Snapshot is the persisted state of a conversation.
type Snapshot struct {
	ID            string
	UserID        string
	Messages      []*Message
	Summary       string
	ExtractedData json.RawMessage
	Status        Status
	Language      string
	RAGContext    string
	Model         string
	ContextWindow int
	MaxOutTokens  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Restore rebuilds a conversation from storage. The first stored system
// message becomes the current system prompt; nothing is pending.
func Restore(s Snapshot, opts ...Option) (*Conversation, error) {
	o := buildOptions(opts)

	if err := validateBudget(s.ContextWindow, s.MaxOutTokens); err != nil {
		return nil, err
	}
	status := s.Status
	if status == "" {
		status = StatusActive
	}
	c := &Conversation{
		id:            s.ID,
		userID:        s.UserID,
		messages:      append([]*Message(nil), s.Messages...),
		summary:       s.Summary,
		status:        status,
		language:      strings.ToLower(s.Language),
		ragContext:    s.RAGContext,
		model:         s.Model,
		contextWindow: s.ContextWindow,
		maxOutTokens:  s.MaxOutTokens,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
		now:           o.now,
		policy:        o.policy,
	}
	if len(s.ExtractedData) > 0 && string(s.ExtractedData) != "null" {
		var v any
		if err := json.Unmarshal(s.ExtractedData, &v); err != nil {
			return nil, apperrors.Validation("INVALID_EXTRACTED_DATA", "stored extracted data is not valid JSON")
		}
		c.extractedData = v
		c.extractedRaw = append(json.RawMessage(nil), s.ExtractedData...)
	}
	for _, m := range c.messages {
		if m.IsSystem() {
			c.systemPrompt = m
			break
		}
	}
	return c, nil
}

// Snapshot returns the state to persist. Messages are copied.
func (c *Conversation) Snapshot() Snapshot {
	var extracted json.RawMessage
	if c.extractedRaw != nil {
		extracted = append(json.RawMessage(nil), c.extractedRaw...)
	}
	return Snapshot{
		ID:            c.id,
		UserID:        c.userID,
		Messages:      c.Messages(),
		Summary:       c.summary,
		ExtractedData: extracted,
		Status:        c.status,
		Language:      c.language,
		RAGContext:    c.ragContext,
		Model:         c.model,
		ContextWindow: c.contextWindow,
		MaxOutTokens:  c.maxOutTokens,
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
}

func (c *Conversation) ID() string { return c.id }
func (c *Conversation) UserID() string { return c.userID }
func (c *Conversation) Summary() string { return c.summary }
func (c *Conversation) Status() Status { return c.status }
func (c *Conversation) Language() string { return c.language }
func (c *Conversation) RAGContext() string { return c.ragContext }
func (c *Conversation) SystemPrompt() *Message { return c.systemPrompt }
func (c *Conversation) Model() string { return c.model }
func (c *Conversation) ContextWindow() int { return c.contextWindow }
func (c *Conversation) MaxOutTokens() int { return c.maxOutTokens }
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }
func (c *Conversation) HasExtractedData() bool { return c.extractedRaw != nil }
func (c *Conversation) ExtractedData() any { return c.extractedData }
func (c *Conversation) AvailableTokens() int { return c.contextWindow - c.maxOutTokens }
func (c *Conversation) MessageCount() int { return len(c.messages) }
func (c *Conversation) PendingCount() int { return len(c.pending) }

// Messages returns a copy of the full chronological history.
func (c *Conversation) Messages() []*Message {
	return append([]*Message(nil), c.messages...)
}

// LastMessage returns the most recent message, or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

func (c *Conversation) touch() {
	c.updatedAt = c.now()
}

// AddMessage appends m to the history and stages it for persistence.
func (c *Conversation) AddMessage(m *Message) error {
	if m == nil {
		return apperrors.Validation("INVALID_MESSAGE", "message cannot be nil")
	}
	c.messages = append(c.messages, m)
	c.pending = append(c.pending, m)
	c.touch()
	return nil
}

// PendingMessages returns a copy of the messages not yet written durably.
func (c *Conversation) PendingMessages() []*Message {
	return append([]*Message(nil), c.pending...)
}

// CommitMessages clears the pending set. Call it only after a successful write.
func (c *Conversation) CommitMessages() {
	c.pending = nil
}

// Clear empties history and the pending set.
func (c *Conversation) Clear() {
	c.messages = nil
	c.pending = nil
	c.touch()
}

// UpdateSummary stores a trimmed, non-empty summary.
func (c *Conversation) UpdateSummary(summary string) error {
	trimmed := strings.TrimSpace(summary)
	if trimmed == "" {
		return apperrors.Validation("INVALID_SUMMARY", "the summary cannot be empty").
			WithDetail("field", "summary").
			WithDetail("expected", "non-empty string")
	}
	c.summary = trimmed
	c.touch()
	return nil
}

// UpdateExtractedData stores the JSON encoding of data. The conversation keeps
// its own decoded copy, so later changes to data are not observed. nil and
// unencodable values are rejected and leave the conversation unchanged.
func (c *Conversation) UpdateExtractedData(data any) error {
	if data == nil {
		return apperrors.Validation("INVALID_EXTRACTED_DATA", "extracted data cannot be null")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return apperrors.Validation("INVALID_EXTRACTED_DATA", "extracted data must be JSON serializable").
			WithDetail("error", err.Error())
	}
	if string(raw) == "null" {
		return apperrors.Validation("INVALID_EXTRACTED_DATA", "extracted data cannot be null")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return apperrors.Validation("INVALID_EXTRACTED_DATA", "extracted data must be JSON serializable").
			WithDetail("error", err.Error())
	}
	c.extractedData = decoded
	c.extractedRaw = raw
	c.touch()
	return nil
}

// SetStatus changes the lifecycle status. Setting the current status is a no-op.
func (c *Conversation) SetStatus(s Status) error {
	if s == c.status {
		return nil
	}
	if _, err := ParseStatus(string(s)); err != nil {
		return err
	}
	if !c.policy.Allow(c.status, s) {
		return apperrors.Validation("INVALID_STATUS_TRANSITION", "status transition not allowed").
			WithDetail("from", string(c.status)).
			WithDetail("to", string(s))
	}
	c.status = s
	c.touch()
	return nil
}

// UpdateSystemPrompt replaces the current system prompt reference. The
// history is not modified.
func (c *Conversation) UpdateSystemPrompt(m *Message) error {
	if m == nil || strings.TrimSpace(m.Content()) == "" {
		return apperrors.Validation("INVALID_SYSTEM_PROMPT", "system prompt cannot be empty")
	}
	if !m.IsSystem() {
		return apperrors.Validation("INVALID_SYSTEM_PROMPT_ROLE", "system prompt must have role 'system'").
			WithDetail("received_role", string(m.Role()))
	}
	c.systemPrompt = m
	c.touch()
	return nil
}

// UpdateLanguage sets a two-letter language code. The comparison with the
// current code is case-insensitive and an unchanged code is a no-op.
func (c *Conversation) UpdateLanguage(lang string) error {
	if strings.EqualFold(c.language, lang) {
		return nil
	}
	normalized, err := normalizeLanguage(lang)
	if err != nil {
		return err
	}
	c.language = normalized
	c.touch()
	return nil
}

// UpdateRAGContext sets the retrieved context injected into the system prompt.
// Setting the current text is a no-op.
func (c *Conversation) UpdateRAGContext(text string) {
	if text == c.ragContext {
		return
	}
	c.ragContext = text
	c.touch()
}

func normalizeLanguage(lang string) (string, error) {
	if len([]rune(lang)) != 2 || !isAlpha(lang) {
		return "", apperrors.Validation("INVALID_LANGUAGE_FORMAT", "language must be a two-letter ISO code").
			WithDetail("received", lang)
	}
	return strings.ToLower(lang), nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func validateBudget(contextWindow, maxOutTokens int) error {
	if contextWindow <= 0 || maxOutTokens < 0 || contextWindow-maxOutTokens < 0 {
		return apperrors.Validation("INVALID_TOKEN_BUDGET", "context window must be at least the output reservation").
			WithDetail("context_window", contextWindow).
			WithDetail("max_out_tokens", maxOutTokens)
	}
	return nil
}

// RegenerateID assigns a fresh identity. Used when a create races on an
// existing id.
func (c *Conversation) RegenerateID() string {
	c.id = uuid.NewString()
	return c.id
}

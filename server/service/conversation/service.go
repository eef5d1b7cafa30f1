// Package conversation orchestrates the support conversation use cases:
// starting a conversation, answering text and audio messages, and ending a
// conversation with a summary and structured extraction.
package conversation

import (
	"context"
	"log/slog"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/plugin/ai/prompt"
	"github.com/hrygo/orioncx/server/internal/observability"
)

// Config holds the per-conversation defaults.
type Config struct {
	Language      string
	Model         string
	ContextWindow int
	MaxOutTokens  int
	TopK          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Language:      aiconv.DefaultLanguage,
		Model:         aiconv.DefaultModel,
		ContextWindow: aiconv.DefaultContextWindow,
		MaxOutTokens:  aiconv.DefaultMaxOutTokens,
		TopK:          3,
	}
}

// Deps groups the collaborators of the service.
type Deps struct {
	Conversations Repository
	Users         UserRepository
	Model         ModelClient
	Retriever     ContextRetriever
	Prompts       Prompts
	Assembler     *aiconv.Assembler
	Decoder       ExtractionDecoder
	Metrics       *observability.Metrics
	// Options are applied to new conversations, typically the clock and
	// transition policy.
	Options []aiconv.Option
}

type service struct {
	Deps
	config Config
}

// NewService creates the conversation service.
func NewService(deps Deps, config Config) Service {
	def := DefaultConfig()
	if config.Language == "" {
		config.Language = def.Language
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.ContextWindow == 0 && config.MaxOutTokens == 0 {
		config.ContextWindow, config.MaxOutTokens = def.ContextWindow, def.MaxOutTokens
	}
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if deps.Assembler == nil {
		deps.Assembler = aiconv.NewAssembler(nil, nil)
	}
	return &service{Deps: deps, config: config}
}

func (s *service) StartConversation(ctx context.Context, req *StartRequest) (c *aiconv.Conversation, err error) {
	ctx, rc := observability.Ensure(ctx, "start_conversation")
	defer func() { s.finish(rc, "start", err) }()

	if req == nil {
		req = &StartRequest{}
	}

	var userID string
	if req.UserID != "" {
		user, err := s.Users.GetByID(ctx, req.UserID)
		if err != nil {
			return nil, orchestrationError("failed to load user", err)
		}
		userID = user.ID
	} else {
		user, err := s.Users.CreateAnonymous(ctx)
		if err != nil {
			return nil, apperrors.Internal("failed to create anonymous user", err)
		}
		userID = user.ID
	}

	opts := append([]aiconv.Option{
		aiconv.WithLanguage(s.config.Language),
		aiconv.WithModel(s.config.Model),
		aiconv.WithContextWindow(s.config.ContextWindow, s.config.MaxOutTokens),
	}, s.Options...)
	c, err = aiconv.New(userID, opts...)
	if err != nil {
		return nil, err
	}
	rc.ConversationID = c.ID()

	if req.Language != "" {
		if err := c.UpdateLanguage(req.Language); err != nil {
			return nil, err
		}
	}

	systemPrompt, err := s.systemMessage(prompt.SupportAgent)
	if err != nil {
		return nil, apperrors.Internal("failed to load the support prompt", err)
	}
	if err := c.UpdateSystemPrompt(systemPrompt); err != nil {
		return nil, err
	}
	if err := c.AddMessage(systemPrompt); err != nil {
		return nil, err
	}

	if err := s.reply(ctx, c); err != nil {
		return nil, apperrors.Internal("failed to generate the greeting", err)
	}
	if err := s.Conversations.Create(ctx, c); err != nil {
		return nil, apperrors.Internal("failed to create the conversation", err)
	}
	rc.ConversationID = c.ID()
	rc.Info("conversation started",
		slog.String("user_id", userID),
		slog.String("language", c.Language()))
	return c, nil
}

func (s *service) ProcessMessage(ctx context.Context, id, content string) (c *aiconv.Conversation, err error) {
	ctx, rc := observability.Ensure(ctx, "process_message")
	rc.ConversationID = id
	defer func() { s.finish(rc, "message", err) }()

	msg, err := aiconv.NewMessage(aiconv.RoleUser, content)
	if err != nil {
		return nil, err
	}
	c, err = s.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, orchestrationError("failed to load the conversation", err)
	}
	if err := s.answer(ctx, c, msg); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) ProcessAudio(ctx context.Context, id string, audio []byte, filename string) (c *aiconv.Conversation, err error) {
	ctx, rc := observability.Ensure(ctx, "process_audio")
	rc.ConversationID = id
	defer func() { s.finish(rc, "audio", err) }()

	if len(audio) == 0 {
		return nil, apperrors.Validation("INVALID_AUDIO", "audio file is empty")
	}
	c, err = s.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, orchestrationError("failed to load the conversation", err)
	}

	text, err := s.Model.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, orchestrationError("failed to transcribe audio", err)
	}
	msg, err := aiconv.NewMessage(aiconv.RoleUser, text)
	if err != nil {
		return nil, apperrors.BadRequest("EMPTY_TRANSCRIPTION", "no speech was recognized in the audio")
	}
	rc.Debug("audio transcribed", slog.Int("chars", len(text)))

	if err := s.answer(ctx, c, msg); err != nil {
		return nil, err
	}
	return c, nil
}

// answer appends msg, refreshes the retrieved context, appends the reply and
// persists the conversation.
func (s *service) answer(ctx context.Context, c *aiconv.Conversation, msg *aiconv.Message) error {
	if err := c.AddMessage(msg); err != nil {
		return err
	}
	if s.Retriever != nil {
		if rag := s.Retriever.RetrieveContext(ctx, msg.Content(), s.config.TopK); rag != "" {
			c.UpdateRAGContext(rag)
		}
	}
	if err := s.reply(ctx, c); err != nil {
		return apperrors.Internal("failed to generate a reply", err)
	}
	if err := s.Conversations.Update(ctx, c); err != nil {
		return orchestrationError("failed to save the conversation", err)
	}
	return nil
}

func (s *service) EndConversation(ctx context.Context, id string, status aiconv.Status) (c *aiconv.Conversation, err error) {
	ctx, rc := observability.Ensure(ctx, "end_conversation")
	rc.ConversationID = id
	defer func() { s.finish(rc, "summary", err) }()

	c, err = s.Conversations.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal("failed to end the conversation", err)
	}

	if err := s.summarize(ctx, c, status); err != nil {
		return nil, apperrors.Internal("failed to end the conversation", err)
	}
	return c, nil
}

// summarize runs the summary and extraction passes on c and persists it once.
func (s *service) summarize(ctx context.Context, c *aiconv.Conversation, status aiconv.Status) error {
	summaryPrompt, err := s.systemMessage(prompt.Summary)
	if err != nil {
		return err
	}
	if err := c.UpdateSystemPrompt(summaryPrompt); err != nil {
		return err
	}
	summary, err := s.generate(ctx, c)
	if err != nil {
		return err
	}
	if err := c.UpdateSummary(summary.Content()); err != nil {
		return err
	}

	extractionPrompt, err := s.systemMessage(prompt.Extraction)
	if err != nil {
		return err
	}
	if err := c.UpdateSystemPrompt(extractionPrompt); err != nil {
		return err
	}
	extracted, err := s.generate(ctx, c)
	if err != nil {
		return err
	}
	data, err := s.Decoder.Decode(extracted.Content())
	if err != nil {
		return err
	}
	if err := c.UpdateExtractedData(data); err != nil {
		return err
	}

	if err := c.SetStatus(status); err != nil {
		return err
	}
	return s.Conversations.Update(ctx, c)
}

func (s *service) GetConversation(ctx context.Context, id string) (*aiconv.Conversation, error) {
	c, err := s.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, orchestrationError("failed to load the conversation", err)
	}
	return c, nil
}

// reply generates the next assistant message over c's memory and appends it.
func (s *service) reply(ctx context.Context, c *aiconv.Conversation) error {
	msg, err := s.generate(ctx, c)
	if err != nil {
		return err
	}
	return c.AddMessage(msg)
}

func (s *service) generate(ctx context.Context, c *aiconv.Conversation) (*aiconv.Message, error) {
	window := s.Assembler.Assemble(c)
	s.Metrics.ObserveWindow(window.TotalTokens, window.Dropped, window.Overflow)
	if rc, ok := observability.FromContext(ctx); ok {
		rc.Debug("prompt assembled",
			slog.Int(observability.LogFieldTokens, window.TotalTokens),
			slog.Int("included", window.Included),
			slog.Int("dropped", window.Dropped),
			slog.Bool("overflow", window.Overflow))
	}
	return s.Model.GenerateReply(ctx, c.Model(), window.Messages)
}

func (s *service) systemMessage(name string) (*aiconv.Message, error) {
	text, err := s.Prompts.Text(name)
	if err != nil {
		return nil, err
	}
	return aiconv.NewMessage(aiconv.RoleSystem, text)
}

func (s *service) finish(rc *observability.RequestContext, useCase string, err error) {
	if err == nil {
		s.Metrics.ObserveUseCase(useCase, "ok")
		rc.Debug("use case completed", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
		return
	}
	s.Metrics.ObserveUseCase(useCase, string(apperrors.KindOf(err, apperrors.KindInternal)))
	rc.Error("use case failed", err, slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
}

// orchestrationError keeps client-facing errors and wraps everything else.
func orchestrationError(msg string, err error) error {
	switch apperrors.KindOf(err, apperrors.KindInternal) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindBadRequest:
		return err
	}
	return apperrors.Internal(msg, err)
}

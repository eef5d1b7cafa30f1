// Package ai wraps the OpenAI-compatible model provider used for replies,
// audio transcription and embeddings.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	"github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/server/internal/observability"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL            string
	APIKey             string
	ChatModel          string
	EmbeddingModel     string
	TranscriptionModel string
	Temperature        float32
	MaxAttempts        int // tries per call, the first one included
	Timeout            time.Duration
	// BackoffBase is the first retry delay; it doubles on every attempt.
	BackoffBase time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://api.openai.com/v1",
		ChatModel:          conversation.DefaultModel,
		EmbeddingModel:     "text-embedding-3-small",
		TranscriptionModel: openai.Whisper1,
		Temperature:        0.7,
		MaxAttempts:        3,
		Timeout:            60 * time.Second,
		BackoffBase:        time.Second,
	}
}

// Provider provides chat replies, transcription and embeddings.
type Provider struct {
	client  *openai.Client
	config  *Config
	metrics *observability.Metrics
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config, metrics *observability.Metrics) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = def.TranscriptionModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		metrics: metrics,
	}, nil
}

// GenerateReply sends messages to the chat model and returns the assistant
// reply. An empty model selects the configured chat model.
func (p *Provider) GenerateReply(ctx context.Context, model string, messages []conversation.LLMMessage) (*conversation.Message, error) {
	if model == "" {
		model = p.config.ChatModel
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: p.config.Temperature,
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	var content string
	err := p.doWithRetry(ctx, "chat", func(ctx context.Context) error {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errEmptyResponse
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	reply, err := conversation.NewMessage(conversation.RoleAssistant, content)
	if err != nil {
		return nil, apperrors.Generic("model returned an empty reply", err)
	}
	return reply, nil
}

// Transcribe converts audio into text. filename carries the format hint
// (for example "audio.webm").
func (p *Provider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", apperrors.Validation("INVALID_AUDIO", "audio file is empty")
	}
	if filename == "" {
		filename = "audio.webm"
	}

	var text string
	err := p.doWithRetry(ctx, "transcribe", func(ctx context.Context) error {
		resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    p.config.TranscriptionModel,
			FilePath: filename,
			Reader:   bytes.NewReader(audio),
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Embedding generates an embedding vector for the given text.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := p.doWithRetry(ctx, "embedding", func(ctx context.Context) error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errEmptyResponse
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks the provider configuration by testing API connectivity.
func (p *Provider) Validate(ctx context.Context) error {
	if p.config.APIKey == "" {
		return fmt.Errorf("API key is required, set ORIONCX_OPENAI_API_KEY")
	}
	if _, err := p.Embedding(ctx, "test"); err != nil {
		return fmt.Errorf("embedding validation failed: %w", err)
	}

	slog.Info("AI provider validated successfully",
		"chat_model", p.config.ChatModel,
		"embedding_model", p.config.EmbeddingModel)
	return nil
}

var errEmptyResponse = errors.New("empty response from model provider")

// doWithRetry runs fn with exponential backoff. Only transient failures are
// retried; the returned error is always classified.
func (p *Provider) doWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		err := p.attempt(ctx, fn)
		if err == nil {
			p.metrics.ObserveModelCall(op, "ok", time.Since(start))
			return nil
		}

		classified, retry := classify(err)
		lastErr = classified
		if !retry || ctx.Err() != nil || attempt == p.config.MaxAttempts-1 {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * p.config.BackoffBase
		slog.Debug("AI request failed, retrying",
			"operation", op,
			"attempt", attempt+1,
			"wait_time", waitTime,
			"error", err)
		p.metrics.ObserveRetry(op)

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			p.metrics.ObserveModelCall(op, "canceled", time.Since(start))
			return apperrors.Connection("request canceled while waiting to retry", ctx.Err())
		}
	}

	p.metrics.ObserveModelCall(op, "error", time.Since(start))
	return lastErr
}

func (p *Provider) attempt(ctx context.Context, fn func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

// classify maps a provider error to a domain error and reports whether it is
// worth retrying.
func classify(err error) (*apperrors.Error, bool) {
	if e, ok := apperrors.As(err); ok {
		return e, false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Unauthorized("model provider rejected the credentials", err), false
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimitExceeded("model provider rate limit exceeded", err), true
	case status == http.StatusRequestTimeout:
		return apperrors.Connection("model provider timed out", err), true
	case status >= http.StatusInternalServerError:
		return apperrors.Generic(fmt.Sprintf("model provider returned status %d", status), err), true
	case status != 0:
		return apperrors.Generic(fmt.Sprintf("model provider rejected the request with status %d", status), err), false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Connection("model provider timed out", err), true
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Connection("request canceled", err), false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Connection("could not reach the model provider", err), true
	}
	if errors.Is(err, errEmptyResponse) {
		return apperrors.Generic("model provider returned no choices", err), false
	}
	return apperrors.Generic("unexpected model provider error", err), false
}

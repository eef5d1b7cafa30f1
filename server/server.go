// Package server wires the conversation engine into an HTTP server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hrygo/orioncx/internal/profile"
	aiconv "github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/plugin/ai/extraction"
	"github.com/hrygo/orioncx/plugin/ai/prompt"
	"github.com/hrygo/orioncx/plugin/ai/tokenizer"
	"github.com/hrygo/orioncx/server/ai"
	"github.com/hrygo/orioncx/server/internal/observability"
	"github.com/hrygo/orioncx/server/middleware"
	"github.com/hrygo/orioncx/server/retrieval"
	apiv1 "github.com/hrygo/orioncx/server/router/api/v1"
	convsvc "github.com/hrygo/orioncx/server/service/conversation"
	"github.com/hrygo/orioncx/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	registry   *prometheus.Registry
}

// NewServer builds the HTTP server and its collaborators from profile.
func NewServer(_ context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile:  profile,
		Store:    store,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(s.registry)

	service, err := NewConversationService(profile, store, metrics)
	if err != nil {
		return nil, err
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = apiv1.HTTPErrorHandler
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(middleware.RequestContext(slog.Default(), metrics))
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	apiv1.RegisterMetrics(echoServer, s.registry)

	var apiMiddlewares []echo.MiddlewareFunc
	if profile.RateLimit > 0 {
		apiMiddlewares = append(apiMiddlewares, middleware.NewRateLimiter(profile.RateLimit, profile.RateBurst).Middleware())
	}
	apiv1.NewAPIV1Service(profile, service).RegisterRoutes(echoServer, apiMiddlewares...)

	return s, nil
}

// NewConversationService assembles the conversation use cases from profile.
func NewConversationService(profile *profile.Profile, store *store.Store, metrics *observability.Metrics) (convsvc.Service, error) {
	provider, err := ai.NewProvider(ProviderConfig(profile), metrics)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AI provider")
	}

	prompts, err := prompt.Default()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load prompt templates")
	}

	mode, err := extraction.ParseMode(profile.ExtractionMode)
	if err != nil {
		return nil, err
	}
	decoder, err := extraction.NewDecoder(mode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile extraction schema")
	}

	var policy aiconv.TransitionPolicy = aiconv.Unguarded
	if profile.StrictStatusTransitions {
		policy = aiconv.StrictTransitions
	}

	// SQLite has no vector search; skip retrieval instead of failing every lookup.
	var retriever convsvc.ContextRetriever
	if profile.Driver == "postgres" {
		embedder := retrieval.NewCachedEmbedder(provider, retrieval.DefaultEmbeddingCacheSize, retrieval.DefaultEmbeddingCacheTTL)
		retriever = retrieval.NewRetriever(embedder, store, 0, metrics)
	}

	return convsvc.NewService(convsvc.Deps{
		Conversations: convsvc.NewRepository(store, aiconv.WithTransitionPolicy(policy)),
		Users:         convsvc.NewUserRepository(store),
		Model:         provider,
		Retriever:     retriever,
		Prompts:       prompts,
		Assembler:     aiconv.NewAssembler(tokenizer.New(), prompts),
		Decoder:       decoder,
		Metrics:       metrics,
		Options:       []aiconv.Option{aiconv.WithTransitionPolicy(policy)},
	}, convsvc.Config{
		Language:      profile.DefaultLanguage,
		Model:         profile.ChatModel,
		ContextWindow: profile.ContextWindow,
		MaxOutTokens:  profile.MaxOutTokens,
		TopK:          profile.RetrievalTopK,
	}), nil
}

// ProviderConfig maps the profile onto the AI provider configuration.
func ProviderConfig(profile *profile.Profile) *ai.Config {
	cfg := ai.DefaultConfig()
	cfg.APIKey = profile.OpenAIAPIKey
	if profile.OpenAIBaseURL != "" {
		cfg.BaseURL = profile.OpenAIBaseURL
	}
	if profile.ChatModel != "" {
		cfg.ChatModel = profile.ChatModel
	}
	if profile.EmbeddingModel != "" {
		cfg.EmbeddingModel = profile.EmbeddingModel
	}
	if profile.TranscriptionModel != "" {
		cfg.TranscriptionModel = profile.TranscriptionModel
	}
	if profile.MaxAttempts > 0 {
		cfg.MaxAttempts = profile.MaxAttempts
	}
	return cfg
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address and serves until Shutdown.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("server stopped properly")
}

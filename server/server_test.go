package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orioncx/internal/profile"
	"github.com/hrygo/orioncx/store"
	"github.com/hrygo/orioncx/store/db/sqlite"
)

func newTestServer(t *testing.T, p *profile.Profile) *Server {
	t.Helper()
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	srv, err := NewServer(context.Background(), p, s)
	require.NoError(t, err)
	return srv
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: ":memory:", OpenAIAPIKey: "k"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONVERSATION_NOT_FOUND")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "orioncx_http_requests_total"))
}

func TestServerRateLimit(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: ":memory:", RateLimit: 0.001, RateBurst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestProviderConfig(t *testing.T) {
	cfg := ProviderConfig(&profile.Profile{OpenAIAPIKey: "k", ChatModel: "gpt-4o-mini", MaxAttempts: 5})
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
}

func TestNewConversationServiceRejectsBadExtractionMode(t *testing.T) {
	p := &profile.Profile{Driver: "sqlite", DSN: ":memory:", ExtractionMode: "xml"}
	_, err := NewConversationService(p, nil, nil)
	assert.Error(t, err)
}

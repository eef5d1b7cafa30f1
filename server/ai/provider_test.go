package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hrygo/orioncx/internal/errors"
	"github.com/hrygo/orioncx/plugin/ai/conversation"
	"github.com/hrygo/orioncx/server/internal/observability"
)

type fakeOpenAI struct {
	*httptest.Server
	calls atomic.Int32
	// failures is the number of leading requests answered with failStatus.
	failures   int32
	failStatus int
}

func newFakeOpenAI(t *testing.T, failures int32, failStatus int) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{failures: failures, failStatus: failStatus}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOpenAI) serve(w http.ResponseWriter, r *http.Request) {
	n := f.calls.Add(1)
	if n <= f.failures {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.failStatus)
		fmt.Fprintf(w, `{"error":{"message":"status %d","type":"test_error"}}`, f.failStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply := fmt.Sprintf("echo %d messages via %s", len(req.Messages), req.Model)
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
		_ = r.ParseMultipartForm(1 << 20)
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(file)
		fmt.Fprintf(w, `{"text":"  transcribed %d bytes  "}`, len(body))
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,0.5]}],"model":"text-embedding-3-small"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestProvider(t *testing.T, baseURL string) (*Provider, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	p, err := NewProvider(&Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		MaxAttempts: 3,
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
	}, metrics)
	require.NoError(t, err)
	return p, metrics
}

func TestGenerateReply(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, metrics := newTestProvider(t, srv.URL)

	reply, err := p.GenerateReply(context.Background(), "", []conversation.LLMMessage{
		{Role: "system", Content: "You are Orion."},
		{Role: "user", Content: "hola"},
	})
	require.NoError(t, err)

	assert.True(t, reply.IsAssistant())
	assert.Equal(t, "echo 2 messages via "+conversation.DefaultModel, reply.Content())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelCallsTotal.WithLabelValues("chat", "ok")))
}

func TestGenerateReply_ModelOverride(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, _ := newTestProvider(t, srv.URL)

	reply, err := p.GenerateReply(context.Background(), "gpt-4o-mini", []conversation.LLMMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "echo 1 messages via gpt-4o-mini", reply.Content())
}

func TestGenerateReply_Retries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		wantErr   apperrors.Kind
		wantCalls int32
	}{
		{name: "unauthorized is not retried", failures: 5, status: http.StatusUnauthorized, wantErr: apperrors.KindUnauthorized, wantCalls: 1},
		{name: "bad request is not retried", failures: 5, status: http.StatusBadRequest, wantErr: apperrors.KindGeneric, wantCalls: 1},
		{name: "rate limit recovers", failures: 2, status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "server error recovers", failures: 1, status: http.StatusInternalServerError, wantCalls: 2},
		{name: "rate limit exhausts retries", failures: 5, status: http.StatusTooManyRequests, wantErr: apperrors.KindRateLimitExceeded, wantCalls: 3},
		{name: "server error exhausts retries", failures: 5, status: http.StatusBadGateway, wantErr: apperrors.KindGeneric, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeOpenAI(t, tt.failures, tt.status)
			p, _ := newTestProvider(t, srv.URL)

			reply, err := p.GenerateReply(context.Background(), "", []conversation.LLMMessage{{Role: "user", Content: "hi"}})
			assert.Equal(t, tt.wantCalls, srv.calls.Load())
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, reply.Content())
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestGenerateReply_MaxAttemptsCountsFirstCall(t *testing.T) {
	for _, attempts := range []int{1, 2, 4} {
		srv := newFakeOpenAI(t, 10, http.StatusServiceUnavailable)
		p, err := NewProvider(&Config{
			BaseURL:     srv.URL,
			APIKey:      "test-key",
			MaxAttempts: attempts,
			Timeout:     5 * time.Second,
			BackoffBase: time.Millisecond,
		}, nil)
		require.NoError(t, err)

		_, err = p.GenerateReply(context.Background(), "", []conversation.LLMMessage{{Role: "user", Content: "hi"}})
		require.Error(t, err)
		assert.Equal(t, int32(attempts), srv.calls.Load())
	}
}

func TestGenerateReply_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, metrics := newTestProvider(t, url)
	_, err := p.GenerateReply(context.Background(), "", []conversation.LLMMessage{{Role: "user", Content: "hi"}})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConnection), "got %v", err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ModelCallRetries.WithLabelValues("chat")))
}

func TestGenerateReply_CanceledContext(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, _ := newTestProvider(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GenerateReply(ctx, "", []conversation.LLMMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConnection))
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestTranscribe(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, _ := newTestProvider(t, srv.URL)

	text, err := p.Transcribe(context.Background(), []byte("fake-audio"), "voice.webm")
	require.NoError(t, err)
	assert.Equal(t, "transcribed 10 bytes", text)

	_, err = p.Transcribe(context.Background(), nil, "voice.webm")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestEmbedding(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, _ := newTestProvider(t, srv.URL)

	vec, err := p.Embedding(context.Background(), "shipping policy")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, vec)
}

func TestValidate(t *testing.T) {
	srv := newFakeOpenAI(t, 0, 0)
	p, _ := newTestProvider(t, srv.URL)
	assert.NoError(t, p.Validate(context.Background()))

	noKey, err := NewProvider(&Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Error(t, noKey.Validate(context.Background()))
}

func TestClassify(t *testing.T) {
	domain := apperrors.Validation("X", "already classified")
	got, retry := classify(domain)
	assert.Same(t, domain, got)
	assert.False(t, retry)

	got, retry = classify(context.DeadlineExceeded)
	assert.Equal(t, apperrors.KindConnection, got.Kind)
	assert.True(t, retry)

	got, retry = classify(errEmptyResponse)
	assert.Equal(t, apperrors.KindGeneric, got.Kind)
	assert.False(t, retry)
}

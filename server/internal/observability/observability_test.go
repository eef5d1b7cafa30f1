package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rc := NewRequestContextWithID(logger, "req-1", "summarize")
	rc.ConversationID = "conv-1"
	rc.Error("failed to summarize", errors.New("boom"), slog.Int(LogFieldTokens, 42))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "summarize", entry[LogFieldOperation])
	assert.Equal(t, "conv-1", entry[LogFieldConversationID])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 42, entry[LogFieldTokens])
}

func TestEnsure(t *testing.T) {
	ctx, rc := Ensure(context.Background(), "start")
	assert.NotEmpty(t, rc.RequestID)

	again, same := Ensure(ctx, "other")
	assert.Same(t, rc, same)
	assert.Equal(t, "start", same.Operation)
	_, ok := FromContext(again)
	assert.True(t, ok)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveModelCall("chat", "ok", 20*time.Millisecond)
	m.ObserveModelCall("chat", "error", time.Second)
	m.ObserveRetry("chat")
	m.ObserveWindow(120, 3, true)
	m.ObserveUseCase("summarize", "ok")
	m.ObserveRetrieval("miss")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("chat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCallRetries.WithLabelValues("chat")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DroppedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PromptOverflows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalResults.WithLabelValues("miss")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveUseCase("x", "y") })
}

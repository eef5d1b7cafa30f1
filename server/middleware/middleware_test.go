package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orioncx/server/internal/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited independently")
}

func TestRateLimiter_BoundsTrackedClients(t *testing.T) {
	rl := newRateLimiter(0.001, 1, 3, time.Now)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("10.0.0."+strconv.Itoa(i)))
	}
	assert.Equal(t, 3, rl.Clients())

	assert.False(t, rl.Allow("10.0.0.9"), "recent clients keep their bucket")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimiter(1, 1, 100, func() time.Time { return now })

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Clients())

	now = now.Add(DefaultClientIdleTTL / 2)
	rl.Allow("a")

	now = now.Add(DefaultClientIdleTTL/2 + time.Second)
	rl.Allow("a")
	rl.Allow("c")
	assert.Equal(t, 2, rl.Clients(), "b was idle past the TTL")
}

func TestRateLimiter_Middleware(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiter(0.001, 1).Middleware())
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestRequestContext(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	e := echo.New()
	e.Use(RequestContext(nil, metrics))

	var seen *observability.RequestContext
	e.GET("/conversations/:id", func(c echo.Context) error {
		rc, ok := observability.FromContext(c.Request().Context())
		require.True(t, ok)
		seen = rc
		return c.NoContent(http.StatusOK)
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, "req-42", seen.RequestID)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/conversations/:id", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/fail", "400")))
}

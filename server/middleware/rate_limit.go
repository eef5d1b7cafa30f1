package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/orioncx/plugin/ai/cache"
)

const (
	// DefaultMaxClients bounds the number of tracked client limiters.
	DefaultMaxClients = 10000
	// DefaultClientIdleTTL is how long an idle client's limiter is kept.
	DefaultClientIdleTTL = 10 * time.Minute
)

// RateLimiter provides per-client rate limiting. Limiters of idle clients are
// evicted, so memory stays bounded by the number of active clients.
type RateLimiter struct {
	mu     sync.Mutex
	limits *cache.LRU[string, *rate.Limiter]
	idle   time.Duration
	rate   rate.Limit
	burst  int
}

// NewRateLimiter creates a limiter allowing perSecond requests per client
// with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return newRateLimiter(perSecond, burst, DefaultMaxClients, time.Now)
}

func newRateLimiter(perSecond float64, burst, maxClients int, now func() time.Time) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	// A limiter idle for longer than its refill time is full again, so
	// dropping it does not change what the client is allowed.
	idle := DefaultClientIdleTTL
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &RateLimiter{
		limits: cache.New[string, *rate.Limiter](maxClients, idle).WithClock(now),
		idle:   idle,
		rate:   rate.Limit(perSecond),
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key and refreshes its
// idle deadline.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limits.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
	}
	rl.limits.Set(key, limiter, rl.idle)
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Clients returns the number of tracked client limiters.
func (rl *RateLimiter) Clients() int {
	return rl.limits.Len()
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/orioncx/server/internal/observability"
)

// RequestContext attaches an observability.RequestContext to every request,
// echoes the request id and records HTTP metrics.
func RequestContext(logger *slog.Logger, metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rc := observability.NewRequestContextWithID(logger, req.Header.Get(echo.HeaderXRequestID), "")
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), rc)))
			c.Response().Header().Set(echo.HeaderXRequestID, rc.RequestID)

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			status := c.Response().Status
			metrics.ObserveHTTP(c.Path(), strconv.Itoa(status), time.Since(start))
			rc.Debug("request served",
				slog.String("method", req.Method),
				slog.String("route", c.Path()),
				slog.Int("status", status),
				slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
			return nil
		}
	}
}

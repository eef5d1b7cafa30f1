package v1

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterMetrics exposes gatherer in the Prometheus text format.
// GET /metrics
func RegisterMetrics(echoServer *echo.Echo, gatherer prometheus.Gatherer) {
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	echoServer.GET("/metrics", echo.WrapHandler(handler))
}

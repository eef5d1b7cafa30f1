package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the conversation backend.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ModelCallsTotal   *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec
	ModelCallRetries  *prometheus.CounterVec

	UseCaseTotal *prometheus.CounterVec

	PromptTokens     prometheus.Histogram
	DroppedMessages  prometheus.Counter
	PromptOverflows  prometheus.Counter
	RetrievalResults *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orioncx_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orioncx_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ModelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orioncx_model_calls_total",
				Help: "Total number of model provider calls",
			},
			[]string{"operation", "status"},
		),
		ModelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orioncx_model_call_duration_seconds",
				Help:    "Duration of model provider calls in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		ModelCallRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orioncx_model_call_retries_total",
				Help: "Total number of retried model provider calls",
			},
			[]string{"operation"},
		),
		UseCaseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orioncx_use_case_total",
				Help: "Total number of use case executions",
			},
			[]string{"use_case", "result"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orioncx_prompt_tokens",
				Help:    "Tokens in assembled prompts",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			},
		),
		DroppedMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "orioncx_prompt_dropped_messages_total",
				Help: "History messages left out of assembled prompts",
			},
		),
		PromptOverflows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "orioncx_prompt_overflows_total",
				Help: "Prompts whose system prompt alone exceeded the budget",
			},
		),
		RetrievalResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orioncx_retrieval_results_total",
				Help: "Retrieval lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Nop returns metrics registered on a private registry. Useful in tests and
// when metrics are disabled.
func Nop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveModelCall records a model provider call.
func (m *Metrics) ObserveModelCall(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelCallsTotal.WithLabelValues(operation, status).Inc()
	m.ModelCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRetry records a retried model provider call.
func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.ModelCallRetries.WithLabelValues(operation).Inc()
}

// ObserveWindow records the outcome of one prompt assembly.
func (m *Metrics) ObserveWindow(tokens, dropped int, overflow bool) {
	if m == nil {
		return
	}
	m.PromptTokens.Observe(float64(tokens))
	m.DroppedMessages.Add(float64(dropped))
	if overflow {
		m.PromptOverflows.Inc()
	}
}

// ObserveUseCase records a use case execution.
func (m *Metrics) ObserveUseCase(useCase, result string) {
	if m == nil {
		return
	}
	m.UseCaseTotal.WithLabelValues(useCase, result).Inc()
}

// ObserveRetrieval records a retrieval lookup outcome: hit, miss or error.
func (m *Metrics) ObserveRetrieval(outcome string) {
	if m == nil {
		return
	}
	m.RetrievalResults.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records a served HTTP request.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal tracks processed turns by channel and outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total conversation turns processed",
		},
		[]string{"channel", "action"},
	)

	// TurnDuration tracks end-to-end turn handling latency.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "End-to-end turn handling duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"channel"},
	)

	// IntentsTotal tracks classified intents.
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_total",
			Help: "Total classified intents",
		},
		[]string{"intent"},
	)

	// EscalationsTotal tracks escalations by trigger.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Total conversations handed off to a human",
		},
		[]string{"reason"},
	)

	// PolicyTransitions tracks dialogue state machine transitions.
	PolicyTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_transitions_total",
			Help: "Dialogue policy state transitions",
		},
		[]string{"from", "to"},
	)

	// SentimentScore observes per-turn sentiment.
	SentimentScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turn_sentiment",
			Help:    "Per-turn sentiment score",
			Buckets: []float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1},
		},
	)

	// LLMRequestDuration tracks LLM generation latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// IntegrationInvocations tracks tool dispatches by outcome.
	IntegrationInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_invocations_total",
			Help: "Integration invocations by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	// StoreRetries tracks session store retry attempts.
	StoreRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Session store operations retried after transient errors",
		},
	)

	// ConversationsOpen tracks currently open conversations.
	ConversationsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_open",
			Help: "Number of open conversations",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for one processed turn.
func RecordTurn(channel, action, intent string, sentiment, duration float64) {
	TurnsTotal.WithLabelValues(channel, action).Inc()
	TurnDuration.WithLabelValues(channel).Observe(duration)
	IntentsTotal.WithLabelValues(intent).Inc()
	SentimentScore.Observe(sentiment)
}

// RecordLLMRequest records metrics for an LLM completion.
func RecordLLMRequest(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

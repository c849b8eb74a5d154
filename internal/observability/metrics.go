package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AIRequestsTotal counts model calls by provider, operation and outcome.
	AIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fableweaver_ai_requests_total",
		Help: "Total number of AI provider requests",
	}, []string{"provider", "operation", "outcome"})

	// AIRequestLatency records model call latency.
	AIRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fableweaver_ai_request_latency_seconds",
		Help:    "AI provider request latency in seconds",
		Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"provider", "operation"})

	// ChatRepliesTotal counts character replies in group chats by kind (reply, fallback, skipped).
	ChatRepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fableweaver_group_chat_replies_total",
		Help: "Total number of character replies produced in group chats",
	}, []string{"kind"})

	// ChapterParseStrategy counts which parsing path recovered a generated chapter.
	ChapterParseStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fableweaver_chapter_parse_strategy_total",
		Help: "Generated chapter payloads by the parse strategy that succeeded",
	}, []string{"strategy"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fableweaver_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fableweaver_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveAI records the outcome and latency of a single provider call.
func ObserveAI(provider, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	AIRequestLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

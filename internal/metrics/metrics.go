package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Ladder submission ============

// RungsSubmitted counts ladder rungs sent to the exchange by outcome ("ok" or "failed").
var RungsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ladder",
		Subsystem: "submit",
		Name:      "rungs_total",
		Help:      "Ladder rungs submitted to the exchange, by outcome",
	},
	[]string{"pair", "result"},
)

// BatchLatency is the round trip of one AddOrderBatch / AddOrder call.
var BatchLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ladder",
		Subsystem: "submit",
		Name:      "batch_latency_seconds",
		Help:      "Time to submit one order batch",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"pair"},
)

// LaddersGenerated counts generated ladders (previews and submissions).
var LaddersGenerated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ladder",
		Subsystem: "core",
		Name:      "generated_total",
		Help:      "Ladders generated, by direction",
	},
	[]string{"direction"},
)

// SessionRecomputes counts session recomputations in the state manager.
var SessionRecomputes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ladder",
		Subsystem: "session",
		Name:      "recomputes_total",
		Help:      "Session recomputations, by triggering event",
	},
	[]string{"event"},
)

// ============ HTTP relay ============

// HTTPRequests counts relay requests by route template and status code.
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ladder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled by the relay",
	},
	[]string{"route", "method", "code"},
)

// HTTPDuration is the handler latency by route template.
var HTTPDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ladder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

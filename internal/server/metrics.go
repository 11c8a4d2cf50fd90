package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longkey1/lome/internal/lome/service"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	messagesSent     prometheus.Counter
	streamsStarted   prometheus.Counter
	streamsCompleted prometheus.Counter
	streamsFailed    prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lome",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lome",
			Name:      "messages_sent_total",
			Help:      "Messages persisted through the API.",
		}),
		streamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lome",
			Name:      "streams_started_total",
			Help:      "Assistant reply streams started.",
		}),
		streamsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lome",
			Name:      "streams_completed_total",
			Help:      "Assistant reply streams that completed and were persisted.",
		}),
		streamsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lome",
			Name:      "streams_failed_total",
			Help:      "Assistant reply streams that failed or were cancelled.",
		}),
	}
	m.registry.MustRegister(m.requests, m.messagesSent, m.streamsStarted, m.streamsCompleted, m.streamsFailed)
	return m
}

// Hooks returns service hooks that update the stream counters.
func (m *Metrics) Hooks() service.Hooks {
	return service.Hooks{
		MessageSent:     m.messagesSent.Inc,
		StreamStarted:   m.streamsStarted.Inc,
		StreamCompleted: m.streamsCompleted.Inc,
		StreamFailed:    m.streamsFailed.Inc,
	}
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one Server. Each Server gets its own
// registry so tests can run servers side by side.
type Metrics struct {
	registry       *prometheus.Registry
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	clients        prometheus.Gauge
	messages       prometheus.Counter
	rejectedImages prometheus.Counter
	rateLimited    *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

// NewMetrics registers the chat server collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmark",
			Name:      "renders_total",
			Help:      "Markdown renders by outcome.",
		}, []string{"outcome"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatmark",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering one message.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatmark",
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmark",
			Name:      "messages_stored_total",
			Help:      "Chat messages accepted and stored.",
		}),
		rejectedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmark",
			Name:      "images_rejected_total",
			Help:      "Image attachments dropped during validation.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmark",
			Name:      "rate_limited_total",
			Help:      "Requests and chat messages refused by the rate limiter.",
		}, []string{"surface"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmark",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.renders,
		m.renderDuration,
		m.clients,
		m.messages,
		m.rejectedImages,
		m.rateLimited,
		m.requests,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRender(start time.Time, html string) {
	m.renderDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if html == "" {
		outcome = "empty"
	}
	m.renders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRequest(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesdesk_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesdesk_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	AIGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesdesk_ai_generations_total",
		Help: "AI tool generations by tool and outcome (ok, provider_error, parse_error).",
	}, []string{"tool", "outcome"})

	AIGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesdesk_ai_generation_duration_seconds",
		Help:    "Time spent waiting on the model provider.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	}, []string{"tool"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesdesk_events_published_total",
		Help: "Change events published to websocket subscribers by entity.",
	}, []string{"entity"})

	InboxSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salesdesk_inbox_messages_synced_total",
		Help: "Inbound emails stored in email history.",
	})
)

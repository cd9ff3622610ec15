package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	QueriesTotal     *prometheus.CounterVec
	StreamEvents     *prometheus.CounterVec
	RateLimitDenials prometheus.Counter
	PlatformErrors   *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	InFlightQueries  prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Handled queries by outcome.",
		}, []string{"outcome"}),
		StreamEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Decoded engine stream events by type.",
		}, []string{"type"}),
		RateLimitDenials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Requests denied by the per-user rate limit.",
		}),
		PlatformErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_errors_total",
			Help:      "Failed platform API calls by operation.",
		}, []string{"call"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of one query from acceptance to final message.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		InFlightQueries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_queries",
			Help:      "Queries currently driving an engine subprocess.",
		}),
	}
}

func (m *Metrics) ObserveQueryDuration(d time.Duration) {
	m.QueryDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

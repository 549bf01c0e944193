package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/table-points/services"
)

const namespace = "table_points"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	changes     *prometheus.CounterVec
	pointsMoved *prometheus.CounterVec
	drift       prometheus.Gauge
	reconciles  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Committed table and points changes by event",
		}, []string{"event"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points moved through the ledger by transaction type",
		}, []string{"type"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drift_tables",
			Help:      "Tables whose balance disagreed with the ledger at the last reconciliation",
		}),
		reconciles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Completed ledger reconciliation runs",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.changes, m.pointsMoved, m.drift, m.reconciles,
	)
	return m
}

// Middleware records count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.duration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnChange(_ context.Context, ev services.ChangeEvent) {
	m.changes.WithLabelValues(ev.Type).Inc()
	if ev.Transaction != nil {
		m.pointsMoved.WithLabelValues(ev.Transaction.Type).Add(float64(ev.Transaction.Points))
	}
}

func (m *Metrics) ObserveReconcile(report services.ReconcileReport) {
	m.reconciles.Inc()
	m.drift.Set(float64(len(report.Drifts)))
}

// TrackLiveClients exports the current number of websocket viewers.
func (m *Metrics) TrackLiveClients(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_clients",
		Help:      "Connected leaderboard websocket clients",
	}, func() float64 { return float64(count()) }))
}

package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scanledger/scanledger/constants"
)

// Metrics exposes pipeline counters on a private prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	duration       prometheus.Histogram
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	workers        prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanledger_sessions_total",
			Help: "Processing sessions finished, by status.",
		}, []string{"status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanledger_active_sessions",
			Help: "Processing sessions currently in flight.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanledger_session_seconds",
			Help:    "Wall-clock duration of processing sessions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanledger_cache_hits_total",
			Help: "Optimizer cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanledger_cache_misses_total",
			Help: "Optimizer cache misses.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanledger_workers",
			Help: "Current worker pool size.",
		}),
	}
	reg.MustRegister(m.sessionsTotal, m.activeSessions, m.duration, m.cacheHits, m.cacheMisses, m.workers)
	return m
}

func (m *Metrics) SessionStarted() {
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded(status constants.SessionStatus, d time.Duration) {
	m.activeSessions.Dec()
	m.sessionsTotal.WithLabelValues(string(status)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) CacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) SetWorkers(n int) { m.workers.Set(float64(n)) }

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes the bridge's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsTotal counts conversation sessions by bridge mode and
	// terminal status ("completed" or "failed").
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sessions_total",
		Help: "Conversation sessions by bridge mode and terminal status.",
	}, []string{"mode", "status"})

	// SessionDuration tracks end-to-end session duration by bridge mode.
	SessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_session_duration_seconds",
		Help:    "End-to-end conversation session duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// UpstreamRetries counts retries of transient upstream failures.
	UpstreamRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_upstream_retries_total",
		Help: "Retries issued for transient upstream failures.",
	})

	// ActiveStreams tracks currently open event streams.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_active_streams",
		Help: "Currently open event streams.",
	})
)

// ObserveSession records one finished session.
func ObserveSession(mode, status string, duration time.Duration) {
	SessionsTotal.WithLabelValues(mode, status).Inc()
	SessionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Handler exposes the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

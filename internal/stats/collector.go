package stats

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector counts backend calls for /api/stats and /metrics.
type Collector struct {
	successCount atomic.Int64
	failureCount atomic.Int64
	startedAt    time.Time

	calls    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCollector registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		startedAt: time.Now(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontend",
			Name:      "upstream_calls_total",
			Help:      "Backend calls made by /api/data, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "frontend",
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of backend calls made by /api/data.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(c.calls, c.duration)

	// Pre-create both series so they are exported as zero.
	c.calls.WithLabelValues(OutcomeSuccess)
	c.calls.WithLabelValues(OutcomeFailure)

	return c
}

// Observe records one backend call.
func (c *Collector) Observe(success bool, latency time.Duration) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
		c.successCount.Add(1)
	} else {
		c.failureCount.Add(1)
	}

	c.calls.WithLabelValues(outcome).Inc()
	c.duration.Observe(latency.Seconds())
}

func (c *Collector) Snapshot() (success, failure int64, uptime time.Duration) {
	return c.successCount.Load(), c.failureCount.Load(), time.Since(c.startedAt)
}

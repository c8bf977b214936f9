// Package metrics exposes tracker activity as Prometheus metrics.
package metrics

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recoledger/internal/tracker"
)

const namespace = "recoledger"

// Collector implements tracker.Observer on a private registry, so several
// instances can coexist in one process (tests, embedded use).
type Collector struct {
	registry *prometheus.Registry

	hookEvents       *prometheus.CounterVec
	recomputeFiles   *prometheus.CounterVec
	recomputeRuns    prometheus.Counter
	recomputeTime    prometheus.Histogram
	remainingRecords prometheus.Gauge
	lastRunUnixTime  prometheus.Gauge
}

// NewCollector creates a Collector with Go runtime and process collectors registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		hookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_events_total",
			Help:      "File events received by hook and outcome",
		}, []string{"hook", "outcome"}),
		recomputeFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_files_total",
			Help:      "Ledger records handled by the recompute pass, by outcome",
		}, []string{"outcome"}),
		recomputeRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_runs_total",
			Help:      "Completed recompute passes",
		}),
		recomputeTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Duration of recompute passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
		remainingRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recompute_remaining_records",
			Help:      "Changed-file records left pending after the last recompute pass",
		}),
		lastRunUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recompute_last_run_timestamp_seconds",
			Help:      "Unix time the last recompute pass finished",
		}),
	}
}

func (c *Collector) HookEvent(hook, outcome string) {
	c.hookEvents.WithLabelValues(hook, outcome).Inc()
}

func (c *Collector) RecomputeFile(outcome string) {
	c.recomputeFiles.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecomputeRun(duration time.Duration, remaining int64) {
	c.recomputeRuns.Inc()
	c.recomputeTime.Observe(duration.Seconds())
	c.remainingRecords.Set(float64(remaining))
	c.lastRunUnixTime.SetToCurrentTime()
}

// pendingTimeout bounds the ledger count taken on each scrape.
const pendingTimeout = 2 * time.Second

// WatchPending exports the live ledger size, counted on every scrape.
// A failed count is reported as NaN.
func (c *Collector) WatchPending(count func(ctx context.Context) (int64, error)) {
	factory := promauto.With(c.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_pending_records",
		Help:      "Changed-file records currently pending",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), pendingTimeout)
		defer cancel()
		n, err := count(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	})
}

// WatchBreaker exports the state of a circuit breaker as a gauge: 0 closed, 1 half-open, 2 open.
func (c *Collector) WatchBreaker(name string, state func() string) {
	factory := promauto.With(c.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "breaker_state",
		Help:        "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		ConstLabels: prometheus.Labels{"breaker": name},
	}, func() float64 {
		switch state() {
		case "half-open":
			return 1
		case "open":
			return 2
		default:
			return 0
		}
	})
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

var _ tracker.Observer = (*Collector)(nil)

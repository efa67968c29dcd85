package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes used as the "outcome" label.
const (
	OutcomeDone       = "done"
	OutcomeSkipped    = "skipped"
	OutcomeFetchError = "fetch_error"
	OutcomeTimeout    = "timeout"
)

// Metrics holds the pool's Prometheus collectors.
type Metrics struct {
	picked     prometheus.Counter
	finished   *prometheus.CounterVec
	inFlight   prometheus.Gauge
	duration   prometheus.Histogram
	pickErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		picked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "crawlgraph",
			Subsystem: "worker",
			Name:      "tasks_picked_total",
			Help:      "Number of tasks claimed from the store.",
		}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawlgraph",
			Subsystem: "worker",
			Name:      "tasks_finished_total",
			Help:      "Number of tasks finished, by outcome.",
		}, []string{"outcome"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawlgraph",
			Subsystem: "worker",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks being processed.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crawlgraph",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Time from claim to settlement of a task.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		pickErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "crawlgraph",
			Subsystem: "worker",
			Name:      "pick_errors_total",
			Help:      "Number of failed task claims.",
		}),
	}
}

// Package metrics records lifecycle operations as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "surrealodm"

// Outcomes reported for an operation.
const (
	Success = "success"
	Aborted = "aborted"
	Noop    = "noop"
	Error   = "error"
)

type Recorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Lifecycle operations by model type, operation and outcome.",
		}, []string{"model", "operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of lifecycle operations by model type and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "operation"}),
	}

	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.operations, r.durations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one finished operation.
func (r *Recorder) Observe(model, operation, outcome string, d time.Duration) {
	r.operations.WithLabelValues(model, operation, outcome).Inc()
	r.durations.WithLabelValues(model, operation).Observe(d.Seconds())
}

// Operations exposes the counter, mainly for assertions.
func (r *Recorder) Operations() *prometheus.CounterVec {
	return r.operations
}

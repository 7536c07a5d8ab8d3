// Package metrics exports rewind service metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/store"
)

// Operation status label values.
const (
	StatusOK       = "ok"
	StatusPartial  = "partial"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
	StatusInvalid  = "invalid"
	StatusError    = "error"
)

var _ history.Recorder = (*Metrics)(nil)

// Metrics records service operations on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// operations counts service calls.
	// Labels: op (create, save, history, state_at, changes, undo, verify, delete), status
	operations *prometheus.CounterVec

	// duration measures service call latency in seconds.
	// Labels: op, status
	duration *prometheus.HistogramVec

	// partialUndos counts structural fields in partial undos.
	// Labels: field
	partialUndos *prometheus.CounterVec
}

// New creates Metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewind",
			Subsystem: "history",
			Name:      "operations_total",
			Help:      "Total history service operations by status",
		}, []string{"op", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rewind",
			Subsystem: "history",
			Name:      "operation_duration_seconds",
			Help:      "History service operation latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op", "status"}),
		partialUndos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewind",
			Subsystem: "history",
			Name:      "partial_undo_fields_total",
			Help:      "Array or nested fields not guaranteed to be reverted by a selective undo",
		}, []string{"field"}),
	}
}

// ObserveOperation implements history.Recorder.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	status := Status(err)
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op, status).Observe(elapsed.Seconds())
}

// PartialUndo implements history.Recorder.
func (m *Metrics) PartialUndo(field string) {
	m.partialUndos.WithLabelValues(field).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Status classifies err into a status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, history.ErrPartialUndo):
		return StatusPartial
	case errors.Is(err, history.ErrVersionNotFound), errors.Is(err, store.ErrRecordNotFound):
		return StatusNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return StatusConflict
	case errors.Is(err, history.ErrNoActor):
		return StatusInvalid
	default:
		return StatusError
	}
}

// Package metrics provides Prometheus metrics collection for the
// field engine. Collector implements ports.Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	// Validation metrics
	ValidationsTotal *prometheus.CounterVec
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec

	// Listener metrics
	Notifications *prometheus.CounterVec

	// Field population
	FieldsActive prometheus.Gauge

	// Declarative schema metrics
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formgate",
				Name:      "validations_total",
				Help:      "Total number of completed validation passes",
			},
			[]string{"field", "result"},
		),
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formgate",
				Name:      "checks_total",
				Help:      "Total number of evaluated checks",
			},
			[]string{"result", "mode"},
		),
		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "formgate",
				Name:      "check_duration_seconds",
				Help:      "Check evaluation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"mode"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "formgate",
				Name:      "listener_notifications_total",
				Help:      "Total number of delivered parameter notifications",
			},
			[]string{"param"},
		),
		FieldsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "formgate",
				Name:      "fields_active",
				Help:      "Number of live fields",
			},
		),
		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "formgate",
				Name:      "schema_reloads_total",
				Help:      "Total number of successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "formgate",
				Name:      "schema_reload_errors_total",
				Help:      "Total number of schema reload errors",
			},
		),
	}
}

// ValidationCompleted implements ports.Metrics.
func (c *Collector) ValidationCompleted(field string, passed bool) {
	c.ValidationsTotal.WithLabelValues(field, result(passed)).Inc()
}

// CheckEvaluated implements ports.Metrics.
func (c *Collector) CheckEvaluated(_ string, passed, async bool, elapsed time.Duration) {
	m := mode(async)
	c.ChecksTotal.WithLabelValues(result(passed), m).Inc()
	c.CheckDuration.WithLabelValues(m).Observe(elapsed.Seconds())
}

// ListenersNotified implements ports.Metrics.
func (c *Collector) ListenersNotified(param string) {
	c.Notifications.WithLabelValues(param).Inc()
}

// FieldCreated implements ports.Metrics.
func (c *Collector) FieldCreated() {
	c.FieldsActive.Inc()
}

// FieldDeleted implements ports.Metrics.
func (c *Collector) FieldDeleted() {
	c.FieldsActive.Dec()
}

// SchemaReloaded implements ports.Metrics.
func (c *Collector) SchemaReloaded(ok bool) {
	if ok {
		c.SchemaReloads.Inc()
		return
	}
	c.SchemaReloadErrors.Inc()
}

func result(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

func mode(async bool) string {
	if async {
		return "async"
	}
	return "sync"
}

// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Metrics records engine activity. The core packages call these hooks;
// the Prometheus implementation lives in adapters/metrics.
type Metrics interface {
	// ValidationCompleted records one finished validation pass.
	ValidationCompleted(field string, passed bool)

	// CheckEvaluated records one rule or required check.
	CheckEvaluated(field string, passed, async bool, elapsed time.Duration)

	// ListenersNotified records one delivered parameter notification.
	ListenersNotified(param string)

	// FieldCreated and FieldDeleted track the live field population.
	FieldCreated()
	FieldDeleted()

	// SchemaReloaded records a declarative config reload attempt.
	SchemaReloaded(ok bool)
}

// NopMetrics discards all recordings.
type NopMetrics struct{}

func (NopMetrics) ValidationCompleted(string, bool)                 {}
func (NopMetrics) CheckEvaluated(string, bool, bool, time.Duration) {}
func (NopMetrics) ListenersNotified(string)                         {}
func (NopMetrics) FieldCreated()                                    {}
func (NopMetrics) FieldDeleted()                                    {}
func (NopMetrics) SchemaReloaded(bool)                              {}

package metrics

import (
	"time"
)

// Collector records pipeline events. Implementations export to a metrics backend.
type Collector interface {
	// Consumed messages, outcome is one of "ok", "retried", "dead_lettered"
	RecordMessage(stage, topic, outcome string)
	RecordRetry(stage, topic string)
	RecordDeadLetter(stage, topic string)

	// Ledger posting, outcome is "completed", "duplicate" or a reason code
	RecordPost(outcome string, duration time.Duration)

	// Guarded status writes
	RecordStatusWrite(status string, applied bool)

	// Publisher circuit breaker
	RecordBreakerState(name string, state BreakerState)
}

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordMessage(stage, topic, outcome string) {}
func (NoOpCollector) RecordRetry(stage, topic string) {}
func (NoOpCollector) RecordDeadLetter(stage, topic string) {}
func (NoOpCollector) RecordPost(outcome string, duration time.Duration) {}
func (NoOpCollector) RecordStatusWrite(status string, applied bool) {}
func (NoOpCollector) RecordBreakerState(name string, state BreakerState) {}

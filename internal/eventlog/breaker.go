package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrPublisherUnavailable is returned while the publisher circuit is open.
var ErrPublisherUnavailable = errors.New("eventlog: publisher unavailable")

// BreakerPublisher fails fast once the broker keeps rejecting publishes.
type BreakerPublisher struct {
	next events.Publisher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(name string, next events.Publisher, cfg config.BreakerConfig, logger *logging.Logger, mc metrics.Collector) *BreakerPublisher {
	if mc == nil {
		mc = metrics.NoOpCollector{}
	}
	logger = logger.Named("breaker")
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.BreakerState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.BreakerClosed
			case gobreaker.StateHalfOpen:
				state = metrics.BreakerHalfOpen
			case gobreaker.StateOpen:
				state = metrics.BreakerOpen
			}
			mc.RecordBreakerState(name, state)
		},
	}

	return &BreakerPublisher{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, topic, key, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	return err
}

// State exposes the breaker state for health reporting.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

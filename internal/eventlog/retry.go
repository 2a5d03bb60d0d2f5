package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/metrics"
	"go.uber.org/zap"
)

// DeadLetter is the record published when a message exhausts its retries.
type DeadLetter struct {
	TxnID     string          `json:"txnId"`
	Topic     string          `json:"topic"`
	Partition int             `json:"partition"`
	MessageID string          `json:"messageId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RawText   string          `json:"rawPayload,omitempty"`
	Error     string          `json:"error"`
	Attempts  int             `json:"attempts"`
	FailedAt  time.Time       `json:"failedAt"`
}

// Retrier wraps a handler with bounded retries and a dead-letter fallback so
// the business handler itself never has to deal with redelivery.
type Retrier struct {
	stage       string
	policy      config.RetryConfig
	deadLetters events.Publisher
	dlqTopic    func(topic string) string
	logger      *logging.Logger
	metrics     metrics.Collector

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewRetrier(stage string, policy config.RetryConfig, deadLetters events.Publisher, dlqTopic func(string) string, logger *logging.Logger, mc metrics.Collector) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if mc == nil {
		mc = metrics.NoOpCollector{}
	}
	return &Retrier{
		stage:       stage,
		policy:      policy,
		deadLetters: deadLetters,
		dlqTopic:    dlqTopic,
		logger:      logger.Named("retry"),
		metrics:     mc,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

// Wrap returns a handler that retries h and dead-letters the message once
// attempts run out. It only returns an error when the dead-letter publish fails.
func (r *Retrier) Wrap(h Handler) Handler {
	return func(ctx context.Context, msg Message) error {
		var err error
		attempt := 0
		for attempt < r.policy.MaxAttempts {
			attempt++
			if err = h(ctx, msg); err == nil {
				r.metrics.RecordMessage(r.stage, msg.Topic, "ok")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsPermanent(err) || attempt == r.policy.MaxAttempts {
				break
			}

			r.metrics.RecordRetry(r.stage, msg.Topic)
			r.logger.Warn("handler failed, retrying",
				zap.String("topic", msg.Topic),
				zap.String("key", msg.Key),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if serr := r.sleep(ctx, r.delay(attempt)); serr != nil {
				// shutting down: leave the entry pending so it is redelivered
				return serr
			}
		}

		return r.deadLetter(ctx, msg, err, attempt)
	}
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := r.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.policy.MaxDelay > 0 && d >= r.policy.MaxDelay {
			return r.policy.MaxDelay
		}
	}
	return d
}

func (r *Retrier) deadLetter(ctx context.Context, msg Message, cause error, attempts int) error {
	record := DeadLetter{
		TxnID:     msg.Key,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		MessageID: msg.ID,
		Error:     cause.Error(),
		Attempts:  attempts,
		FailedAt:  r.now().UTC(),
	}
	if json.Valid(msg.Payload) {
		record.Payload = json.RawMessage(msg.Payload)
	} else {
		record.RawText = string(msg.Payload)
	}

	r.metrics.RecordMessage(r.stage, msg.Topic, "dead_lettered")
	r.metrics.RecordDeadLetter(r.stage, msg.Topic)
	r.logger.Error("message dead-lettered",
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
		zap.String("id", msg.ID),
		zap.Int("attempts", attempts),
		zap.Bool("permanent", IsPermanent(cause)),
		zap.Error(cause),
	)

	if r.deadLetters == nil {
		return nil
	}
	return r.deadLetters.Publish(ctx, r.dlqTopic(msg.Topic), msg.Key, record)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

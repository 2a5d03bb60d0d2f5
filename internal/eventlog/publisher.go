package eventlog

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
)

// Publisher appends events to partitioned Redis streams.
type Publisher struct {
	client     *redis.Client
	prefix     string
	partitions int
	maxLen     int64
}

func NewPublisher(client *redis.Client, cfg config.EventLogConfig) *Publisher {
	return &Publisher{
		client:     client,
		prefix:     cfg.StreamPrefix,
		partitions: cfg.Partitions,
		maxLen:     cfg.MaxLen,
	}
}

// Publish encodes event and appends it to the partition owning key.
func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := events.Encode(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	stream := StreamName(p.prefix, topic, Partition(key, p.partitions))
	if err := p.client.XAdd(ctx, p.args(stream, key, payload)).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

func (p *Publisher) args(stream, key string, payload []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: []interface{}{fieldKey, key, fieldPayload, string(payload)},
	}
}

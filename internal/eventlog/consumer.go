package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pendingID = "0"
	newID     = ">"

	readErrorPause = time.Second
)

// Consumer reads topic partitions through a Redis consumer group. Each
// partition stream gets one worker that handles one message at a time and
// acknowledges it only after the handler returns.
type Consumer struct {
	client     *redis.Client
	group      string
	name       string
	prefix     string
	partitions int
	block      time.Duration
	startID    string
	logger     *logging.Logger
}

func NewConsumer(client *redis.Client, cfg config.EventLogConfig, logger *logging.Logger) *Consumer {
	startID := cfg.StartID
	if startID == "" {
		startID = "$"
	}
	return &Consumer{
		client:     client,
		group:      cfg.ConsumerGroup,
		name:       cfg.ConsumerName,
		prefix:     cfg.StreamPrefix,
		partitions: cfg.Partitions,
		block:      cfg.BlockTimeout,
		startID:    startID,
		logger:     logger.Named("consumer"),
	}
}

type worker struct {
	topic     string
	partition int
	stream    string
	// lastID is "0" while draining entries delivered before a restart, then ">"
	lastID string
}

// Run blocks until ctx is cancelled, dispatching every message of topics to handler.
// Only group creation failures are returned; per-message failures are logged.
func (c *Consumer) Run(ctx context.Context, topics []string, handler Handler) error {
	var workers []*worker
	for _, topic := range topics {
		for p := 0; p < c.partitions; p++ {
			w := &worker{
				topic:     topic,
				partition: p,
				stream:    StreamName(c.prefix, topic, p),
				lastID:    pendingID,
			}
			if err := c.ensureGroup(ctx, w.stream); err != nil {
				return err
			}
			workers = append(workers, w)
		}
	}

	c.logger.Info("consumer started",
		zap.String("group", c.group),
		zap.String("consumer", c.name),
		zap.Strings("topics", topics),
		zap.Int("partitions", c.partitions),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			for ctx.Err() == nil {
				if err := c.poll(ctx, w, handler); err != nil {
					c.logger.Error("read failed",
						zap.String("stream", w.stream),
						zap.Error(err),
					)
					pause(ctx, readErrorPause)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) ensureGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.group, c.startID).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.group, stream, err)
	}
	return nil
}

// poll reads at most one entry for w and processes it.
func (c *Consumer) poll(ctx context.Context, w *worker, handler Handler) error {
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{w.stream, w.lastID},
		Count:    1,
		Block:    c.block,
	}
	if w.lastID != newID {
		// pending entries are returned immediately, blocking only applies to ">"
		args.Block = -1
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	var entries []redis.XMessage
	for _, s := range streams {
		entries = append(entries, s.Messages...)
	}

	if len(entries) == 0 {
		if w.lastID != newID {
			c.logger.Debug("pending entries drained", zap.String("stream", w.stream))
			w.lastID = newID
		}
		return nil
	}

	for _, entry := range entries {
		c.process(ctx, w, entry, handler)
		if w.lastID != newID {
			w.lastID = entry.ID
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, w *worker, entry redis.XMessage, handler Handler) {
	msg := Message{
		Topic:     w.topic,
		Partition: w.partition,
		Stream:    w.stream,
		ID:        entry.ID,
	}
	if key, ok := entry.Values[fieldKey].(string); ok {
		msg.Key = key
	}
	if payload, ok := entry.Values[fieldPayload].(string); ok {
		msg.Payload = []byte(payload)
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.Error("message dropped after handler error",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.String("id", msg.ID),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
	}
	if ctx.Err() != nil {
		// interrupted by shutdown, the entry stays pending for the next start
		return
	}

	if err := c.client.XAck(ctx, w.stream, c.group, entry.ID).Err(); err != nil {
		c.logger.Warn("ack failed, entry will be redelivered",
			zap.String("stream", w.stream),
			zap.String("id", entry.ID),
			zap.Error(err),
		)
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

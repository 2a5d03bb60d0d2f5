package eventlog

import (
	"context"
	"sync"
)

type published struct {
	topic string
	key   string
	event any
}

// recordingPublisher captures publishes and fails the first failN calls.
type recordingPublisher struct {
	mu     sync.Mutex
	failN  int
	err    error
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failN > 0 {
		p.failN--
		return p.err
	}
	p.events = append(p.events, published{topic: topic, key: key, event: event})
	return nil
}

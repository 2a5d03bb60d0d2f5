package eventlog

import (
	"context"
	"errors"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
)

// Message is one entry read from a topic partition.
type Message struct {
	Topic     string
	Partition int
	Stream    string
	ID        string
	Key       string
	Payload   []byte
}

// Handler processes one message. A returned error is logged by the consumer
// and the message is acknowledged anyway, unless the consumer is stopping.
type Handler func(ctx context.Context, msg Message) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. a payload that cannot be decoded.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

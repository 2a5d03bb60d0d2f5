// Package events defines the payloads exchanged between pipeline stages, one
// per edge of the transaction state machine.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
)

// Publisher emits an event on a topic, keyed by transaction id.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Received struct {
	TxnID       string                 `json:"txnId"`
	Type        models.TransactionType `json:"type"`
	PayerID     string                 `json:"payerId"`
	PayeeID     string                 `json:"payeeId"`
	Amount      decimal.Decimal        `json:"amount"`
	Channel     models.Channel         `json:"channel"`
	RequestedAt time.Time              `json:"requestedAt"`
}

// Validated carries the same fields as Received once the business rules pass.
type Validated Received

type Rejected struct {
	TxnID      string            `json:"txnId"`
	ReasonCode models.ReasonCode `json:"reasonCode"`
	ReasonText string            `json:"reasonText"`
}

type Completed struct {
	TxnID string `json:"txnId"`
}

type Failed struct {
	TxnID      string            `json:"txnId"`
	ReasonCode models.ReasonCode `json:"reasonCode"`
	ReasonText string            `json:"reasonText"`
}

// Outcome is the union of fields any status-carrying event may hold. Consumers
// that subscribe to several topics decode into it and take the status from the topic.
type Outcome struct {
	TxnID      string            `json:"txnId"`
	PayerID    string            `json:"payerId,omitempty"`
	ReasonCode models.ReasonCode `json:"reasonCode,omitempty"`
	ReasonText string            `json:"reasonText,omitempty"`
}

// Encode marshals an event payload.
func Encode(event any) ([]byte, error) {
	return json.Marshal(event)
}

// Decode unmarshals a payload and rejects one without a transaction id.
func Decode(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	var probe struct {
		TxnID string `json:"txnId"`
	}
	_ = json.Unmarshal(payload, &probe)
	if probe.TxnID == "" {
		return fmt.Errorf("decode event: missing txnId")
	}
	return nil
}

// Topics resolves topic names and their status meaning from configuration.
type Topics struct {
	cfg config.TopicConfig
}

func NewTopics(cfg config.TopicConfig) Topics {
	return Topics{cfg: cfg}
}

func (t Topics) Received() string { return t.cfg.Received }
func (t Topics) Validated() string { return t.cfg.Validated }
func (t Topics) Rejected() string { return t.cfg.Rejected }
func (t Topics) Completed() string { return t.cfg.Completed }
func (t Topics) Failed() string { return t.cfg.Failed }

// DeadLetter returns the dead-letter topic for topic.
func (t Topics) DeadLetter(topic string) string {
	return topic + t.cfg.DLQSuffix
}

// Terminal lists the topics that carry a terminal status.
func (t Topics) Terminal() []string {
	return []string{t.cfg.Completed, t.cfg.Failed, t.cfg.Rejected}
}

// StatusUpdates lists every topic that advances a stored transaction status.
func (t Topics) StatusUpdates() []string {
	return []string{t.cfg.Validated, t.cfg.Rejected, t.cfg.Completed, t.cfg.Failed}
}

// StatusFor maps a topic to the status its events announce.
func (t Topics) StatusFor(topic string) (models.Status, bool) {
	switch topic {
	case t.cfg.Validated:
		return models.StatusValidated, true
	case t.cfg.Rejected:
		return models.StatusRejected, true
	case t.cfg.Completed:
		return models.StatusCompleted, true
	case t.cfg.Failed:
		return models.StatusFailed, true
	}
	return "", false
}

package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ValidatorService applies the business rules to received transactions, records
// the decision in txn_events and announces it downstream.
type ValidatorService struct {
	db        *sql.DB
	publisher events.Publisher
	topics    events.Topics
	maxAmount decimal.Decimal
	logger    *logging.Logger
}

func NewValidatorService(db *sql.DB, publisher events.Publisher, topics events.Topics, cfg config.ValidationConfig, logger *logging.Logger) *ValidatorService {
	return &ValidatorService{
		db:        db,
		publisher: publisher,
		topics:    topics,
		maxAmount: cfg.MaxAmount,
		logger:    logger.Named("validator"),
	}
}

// Handle consumes one received event. The audit row is written before the
// publish; replays produce a second audit row and a second publish.
func (s *ValidatorService) Handle(ctx context.Context, msg eventlog.Message) error {
	var tx events.Received
	if err := events.Decode(msg.Payload, &tx); err != nil {
		return eventlog.Permanent(err)
	}

	log := s.logger.With(zap.String("txn_id", tx.TxnID), zap.Int("partition", msg.Partition))
	log.Info("validating transaction")

	result := ValidateTransaction(tx, s.maxAmount)
	if result.Valid {
		snapshot := models.Metadata{
			"txnId":   tx.TxnID,
			"type":    tx.Type,
			"payerId": tx.PayerID,
			"payeeId": tx.PayeeID,
			"amount":  tx.Amount.String(),
			"channel": tx.Channel,
		}
		if err := s.saveEvent(ctx, tx.TxnID, models.StatusValidated, snapshot); err != nil {
			return err
		}
		if err := s.publisher.Publish(ctx, s.topics.Validated(), tx.TxnID, events.Validated(tx)); err != nil {
			return fmt.Errorf("publish validated: %w", err)
		}
		log.Info("transaction validated")
		return nil
	}

	reason := models.Metadata{
		"txnId":      tx.TxnID,
		"reasonCode": result.ReasonCode,
		"reasonText": result.ReasonText,
	}
	if err := s.saveEvent(ctx, tx.TxnID, models.StatusRejected, reason); err != nil {
		return err
	}
	rejected := events.Rejected{TxnID: tx.TxnID, ReasonCode: result.ReasonCode, ReasonText: result.ReasonText}
	if err := s.publisher.Publish(ctx, s.topics.Rejected(), tx.TxnID, rejected); err != nil {
		return fmt.Errorf("publish rejected: %w", err)
	}
	log.Info("transaction rejected", zap.String("reason_code", string(result.ReasonCode)))
	return nil
}

func (s *ValidatorService) saveEvent(ctx context.Context, txnID string, eventType models.Status, payload models.Metadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO txn_events (txn_id, event_type, payload_json, created_at)
		VALUES ($1, $2, $3, NOW())`,
		txnID, string(eventType), payload)
	if err != nil {
		return fmt.Errorf("save %s event: %w", eventType, err)
	}
	return nil
}

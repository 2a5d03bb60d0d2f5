package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"go.uber.org/zap"
)

const unknownUser = "UNKNOWN"

// BuildMessage renders the user-facing text for a terminal status.
func BuildMessage(status models.Status, txnID string, reasonCode models.ReasonCode) string {
	if status == models.StatusCompleted {
		return fmt.Sprintf("Transaction %s COMPLETED successfully.", txnID)
	}
	if reasonCode == "" {
		reasonCode = models.ReasonSystemError
	}
	return fmt.Sprintf("Transaction %s %s: %s.", txnID, status, reasonCode)
}

// NotificationService records one notification per transaction and status.
type NotificationService struct {
	db     *sql.DB
	topics events.Topics
	logger *logging.Logger
}

func NewNotificationService(db *sql.DB, topics events.Topics, logger *logging.Logger) *NotificationService {
	return &NotificationService{
		db:     db,
		topics: topics,
		logger: logger.Named("notifier"),
	}
}

// Notify inserts the notification and reports whether a row was written. A
// second notification for the same transaction and status is dropped.
func (s *NotificationService) Notify(ctx context.Context, txnID, userID string, status models.Status, message string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (txn_id, user_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (txn_id, status) DO NOTHING`,
		txnID, userID, message, string(status))
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Handle consumes one completed, failed or rejected event.
func (s *NotificationService) Handle(ctx context.Context, msg eventlog.Message) error {
	status, ok := s.topics.StatusFor(msg.Topic)
	if !ok || !status.IsTerminal() {
		return eventlog.Permanent(fmt.Errorf("topic %s carries no terminal status", msg.Topic))
	}

	var outcome events.Outcome
	if err := events.Decode(msg.Payload, &outcome); err != nil {
		return eventlog.Permanent(err)
	}

	userID := outcome.PayerID
	if userID == "" {
		userID = unknownUser
	}

	inserted, err := s.Notify(ctx, outcome.TxnID, userID, status, BuildMessage(status, outcome.TxnID, outcome.ReasonCode))
	if err != nil {
		return err
	}

	log := s.logger.With(zap.String("txn_id", outcome.TxnID), zap.String("status", string(status)))
	if !inserted {
		log.Info("notification already recorded")
		return nil
	}
	log.Info("notification saved")
	return nil
}

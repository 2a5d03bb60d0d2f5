package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InitiateRequest is the body of a transaction creation request.
type InitiateRequest struct {
	Type    models.TransactionType `json:"type" validate:"required,oneof=P2P P2M"`
	PayerID string                 `json:"payerId" validate:"required,max=64"`
	PayeeID string                 `json:"payeeId" validate:"required,max=64"`
	Amount  decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Channel models.Channel         `json:"channel" validate:"required,oneof=APP USSD"`
}

// IntakeService creates transactions and starts them down the pipeline.
type IntakeService struct {
	db        *sql.DB
	publisher events.Publisher
	topics    events.Topics
	logger    *logging.Logger

	newID func() string
	now   func() time.Time
}

func NewIntakeService(db *sql.DB, publisher events.Publisher, topics events.Topics, logger *logging.Logger) *IntakeService {
	return &IntakeService{
		db:        db,
		publisher: publisher,
		topics:    topics,
		logger:    logger.Named("intake"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Initiate persists a RECEIVED transaction and emits its received event. The
// request must already have passed shape validation.
func (s *IntakeService) Initiate(ctx context.Context, req InitiateRequest) (*models.Transaction, error) {
	requestedAt := s.now().UTC()
	tx := &models.Transaction{
		TxnID:       s.newID(),
		Type:        req.Type,
		PayerID:     req.PayerID,
		PayeeID:     req.PayeeID,
		Amount:      req.Amount,
		Channel:     req.Channel,
		Status:      models.StatusReceived,
		RequestedAt: requestedAt,
		UpdatedAt:   requestedAt,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (txn_id, type, payer_id, payee_id, amount, channel, status, requested_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		tx.TxnID, string(tx.Type), tx.PayerID, tx.PayeeID, tx.Amount, string(tx.Channel), string(tx.Status), tx.RequestedAt)
	if err != nil {
		return nil, fmt.Errorf("store transaction: %w", err)
	}

	received := events.Received{
		TxnID:       tx.TxnID,
		Type:        tx.Type,
		PayerID:     tx.PayerID,
		PayeeID:     tx.PayeeID,
		Amount:      tx.Amount,
		Channel:     tx.Channel,
		RequestedAt: tx.RequestedAt,
	}
	if err := s.publisher.Publish(ctx, s.topics.Received(), tx.TxnID, received); err != nil {
		return nil, fmt.Errorf("publish received: %w", err)
	}

	s.logger.Info("transaction initiated",
		zap.String("txn_id", tx.TxnID),
		zap.String("type", string(tx.Type)),
		zap.String("channel", string(tx.Channel)),
	)
	return tx, nil
}

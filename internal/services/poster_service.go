package services

import (
	"context"
	"fmt"

	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"go.uber.org/zap"
)

// PosterService turns validated events into completed or failed events.
type PosterService struct {
	ledger    Poster
	publisher events.Publisher
	topics    events.Topics
	logger    *logging.Logger
}

func NewPosterService(ledger Poster, publisher events.Publisher, topics events.Topics, logger *logging.Logger) *PosterService {
	return &PosterService{
		ledger:    ledger,
		publisher: publisher,
		topics:    topics,
		logger:    logger.Named("poster"),
	}
}

// Handle posts one validated transaction. A transaction the ledger has
// already decided is announced again with its recorded outcome, so a crash
// between commit and publish is repaired by redelivery.
func (s *PosterService) Handle(ctx context.Context, msg eventlog.Message) error {
	var tx events.Validated
	if err := events.Decode(msg.Payload, &tx); err != nil {
		return eventlog.Permanent(err)
	}

	log := s.logger.With(zap.String("txn_id", tx.TxnID), zap.Int("partition", msg.Partition))
	log.Info("posting transaction",
		zap.String("payer_id", tx.PayerID),
		zap.String("payee_id", tx.PayeeID),
		zap.Stringer("amount", tx.Amount),
	)

	result := s.ledger.Post(ctx, tx.TxnID, tx.PayerID, tx.PayeeID, tx.Amount)
	if err := ctx.Err(); err != nil {
		// shutting down mid-post: leave the entry for redelivery
		return err
	}

	if result.Success {
		if err := s.publisher.Publish(ctx, s.topics.Completed(), tx.TxnID, events.Completed{TxnID: tx.TxnID}); err != nil {
			return fmt.Errorf("publish completed: %w", err)
		}
		log.Info("transaction completed", zap.Bool("duplicate", result.Duplicate))
		return nil
	}

	failed := events.Failed{TxnID: tx.TxnID, ReasonCode: result.ReasonCode, ReasonText: result.ReasonText}
	if err := s.publisher.Publish(ctx, s.topics.Failed(), tx.TxnID, failed); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	log.Info("transaction failed",
		zap.String("reason_code", string(result.ReasonCode)),
		zap.Bool("duplicate", result.Duplicate),
	)
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/metrics"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"go.uber.org/zap"
)

// ErrStatusNotReady means an event overtook the event that has to be applied
// before it. It is retryable.
var ErrStatusNotReady = errors.New("status update arrived ahead of its predecessor")

// StatusService projects pipeline outcomes onto the intake transaction record.
// Every write is conditional on the stored status being a valid predecessor of
// the target, so stale or duplicate events can never move a status backwards.
type StatusService struct {
	db      *sql.DB
	topics  events.Topics
	logger  *logging.Logger
	metrics metrics.Collector
}

func NewStatusService(db *sql.DB, topics events.Topics, logger *logging.Logger, mc metrics.Collector) *StatusService {
	if mc == nil {
		mc = metrics.NoOpCollector{}
	}
	logger = logger.Named("status")
	logger.Info("status transition table loaded", zap.Int("version", models.TransitionTableVersion))
	return &StatusService{
		db:      db,
		topics:  topics,
		logger:  logger,
		metrics: mc,
	}
}

// Apply advances txnID to target. It reports false when the stored status does
// not allow the transition, which covers unknown ids, replays and stale events.
func (s *StatusService) Apply(ctx context.Context, txnID string, target models.Status, reasonCode models.ReasonCode, reasonText string) (bool, error) {
	predecessors := models.Predecessors(target)
	if len(predecessors) == 0 {
		return false, fmt.Errorf("%w: nothing transitions to %s", models.ErrInvalidTransition, target)
	}
	allowed := make([]string, len(predecessors))
	for i, p := range predecessors {
		allowed[i] = string(p)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, reason_code = $2, reason_text = $3, updated_at = NOW()
		WHERE txn_id = $4 AND status = ANY($5)`,
		string(target), nullString(string(reasonCode)), nullString(reasonText), txnID, pq.Array(allowed))
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	applied := n > 0
	s.metrics.RecordStatusWrite(string(target), applied)
	return applied, nil
}

// Handle consumes one validated, rejected, completed or failed event.
func (s *StatusService) Handle(ctx context.Context, msg eventlog.Message) error {
	status, ok := s.topics.StatusFor(msg.Topic)
	if !ok {
		return eventlog.Permanent(fmt.Errorf("topic %s carries no status", msg.Topic))
	}

	var outcome events.Outcome
	if err := events.Decode(msg.Payload, &outcome); err != nil {
		return eventlog.Permanent(err)
	}

	applied, err := s.Apply(ctx, outcome.TxnID, status, outcome.ReasonCode, outcome.ReasonText)
	if err != nil {
		return err
	}

	log := s.logger.With(zap.String("txn_id", outcome.TxnID), zap.String("status", string(status)))
	if applied {
		log.Info("status updated")
		return nil
	}

	// topics are read independently, so completed can overtake validated
	stored, found, err := s.storedStatus(ctx, outcome.TxnID)
	if err != nil {
		return err
	}
	if found && stored.CanReach(status) {
		return fmt.Errorf("%w: %s is stored, %s must wait", ErrStatusNotReady, stored, status)
	}

	log.Warn("status write dropped", zap.String("stored", string(stored)), zap.Bool("found", found))
	return nil
}

func (s *StatusService) storedStatus(ctx context.Context, txnID string) (models.Status, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE txn_id = $1`, txnID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read stored status: %w", err)
	}
	return models.Status(status), true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

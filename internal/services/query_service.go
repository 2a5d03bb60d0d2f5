package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var ErrTransactionNotFound = errors.New("transaction not found")

// ListFilter narrows the transaction listing. Zero values mean no filter.
type ListFilter struct {
	Status models.Status
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type TransactionPage struct {
	Data       []models.Transaction `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// TransactionDetail joins a transaction with the rows other stages wrote for it.
type TransactionDetail struct {
	Transaction   models.Transaction    `json:"transaction"`
	LedgerEntries []models.LedgerEntry  `json:"ledgerEntries"`
	Notifications []models.Notification `json:"notifications"`
}

// QueryService reads every stage store. It never writes.
type QueryService struct {
	intake       *sql.DB
	validation   *sql.DB
	posting      *sql.DB
	notification *sql.DB
	logger       *logging.Logger
}

func NewQueryService(intake, validation, posting, notification *sql.DB, logger *logging.Logger) *QueryService {
	return &QueryService{
		intake:       intake,
		validation:   validation,
		posting:      posting,
		notification: notification,
		logger:       logger.Named("query"),
	}
}

const transactionColumns = `txn_id, type, payer_id, payee_id, amount, channel, status, reason_code, reason_text, requested_at, updated_at`

func (s *QueryService) List(ctx context.Context, filter ListFilter) (*TransactionPage, error) {
	filter.normalize()

	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("requested_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("requested_at <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.intake.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	pageArgs := append(append([]any{}, args...), filter.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(pageArgs)-1, len(pageArgs))

	rows, err := s.intake.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	data := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		data = append(data, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &TransactionPage{
		Data: data,
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + filter.Limit - 1) / filter.Limit,
		},
	}, nil
}

// Get loads a transaction and, in parallel, its ledger entries and notifications.
func (s *QueryService) Get(ctx context.Context, txnID string) (*TransactionDetail, error) {
	row := s.intake.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE txn_id = $1", txnID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &TransactionDetail{Transaction: *tx}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := s.ledgerEntries(gctx, txnID)
		detail.LedgerEntries = entries
		return err
	})
	g.Go(func() error {
		notifications, err := s.notifications(gctx, txnID)
		detail.Notifications = notifications
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// Events returns the validation audit timeline of a transaction, oldest first.
func (s *QueryService) Events(ctx context.Context, txnID string) ([]models.TxnEvent, error) {
	rows, err := s.validation.QueryContext(ctx, `
		SELECT id, txn_id, event_type, payload_json, created_at
		FROM txn_events
		WHERE txn_id = $1
		ORDER BY created_at ASC`, txnID)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	defer rows.Close()

	out := []models.TxnEvent{}
	for rows.Next() {
		var e models.TxnEvent
		if err := rows.Scan(&e.ID, &e.TxnID, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *QueryService) ledgerEntries(ctx context.Context, txnID string) ([]models.LedgerEntry, error) {
	rows, err := s.posting.QueryContext(ctx, `
		SELECT id, txn_id, account_id, dr_cr, amount, created_at
		FROM ledger_entries
		WHERE txn_id = $1
		ORDER BY created_at ASC, id ASC`, txnID)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger entries: %w", err)
	}
	defer rows.Close()

	out := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TxnID, &e.AccountID, &e.Direction, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *QueryService) notifications(ctx context.Context, txnID string) ([]models.Notification, error) {
	rows, err := s.notification.QueryContext(ctx, `
		SELECT id, txn_id, user_id, status, message, created_at
		FROM notifications
		WHERE txn_id = $1
		ORDER BY created_at ASC`, txnID)
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.TxnID, &n.UserID, &n.Status, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.TxnID, &tx.Type, &tx.PayerID, &tx.PayeeID, &tx.Amount, &tx.Channel,
		&tx.Status, &tx.ReasonCode, &tx.ReasonText, &tx.RequestedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

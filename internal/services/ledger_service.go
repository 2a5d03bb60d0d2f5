package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/audit"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/metrics"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// PostResult is the outcome of one posting attempt.
type PostResult struct {
	Success bool
	// Duplicate is set when an earlier post already recorded this outcome
	// and nothing was moved this time.
	Duplicate  bool
	ReasonCode models.ReasonCode
	ReasonText string
}

// Poster moves funds for one validated transaction.
type Poster interface {
	Post(ctx context.Context, txnID, payerID, payeeID string, amount decimal.Decimal) PostResult
}

// LedgerService performs the double-entry transfer between two wallet accounts.
type LedgerService struct {
	db      *sql.DB
	cfg     config.PostingConfig
	audit   *audit.Logger
	logger  *logging.Logger
	metrics metrics.Collector
}

func NewLedgerService(db *sql.DB, cfg config.PostingConfig, auditLogger *audit.Logger, logger *logging.Logger, mc metrics.Collector) *LedgerService {
	if mc == nil {
		mc = metrics.NoOpCollector{}
	}
	return &LedgerService{
		db:      db,
		cfg:     cfg,
		audit:   auditLogger,
		logger:  logger.Named("ledger"),
		metrics: mc,
	}
}

// Post runs the whole transfer in one database transaction. Every failure
// path rolls back, so a failed post leaves balances and ledger untouched.
func (s *LedgerService) Post(ctx context.Context, txnID, payerID, payeeID string, amount decimal.Decimal) PostResult {
	start := time.Now()
	result := s.post(ctx, txnID, payerID, payeeID, amount)

	outcome := "completed"
	switch {
	case result.Duplicate:
		outcome = "duplicate"
	case !result.Success:
		outcome = string(result.ReasonCode)
	}
	s.metrics.RecordPost(outcome, time.Since(start))
	return result
}

func (s *LedgerService) post(ctx context.Context, txnID, payerID, payeeID string, amount decimal.Decimal) PostResult {
	if payerID == payeeID {
		return s.systemError(txnID, payerID, fmt.Errorf("payer and payee are the same account %s", payerID))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.failUnclaimed(ctx, nil, txnID, payerID, err)
	}
	defer tx.Rollback()

	if err := s.applyTimeouts(ctx, tx); err != nil {
		return s.failUnclaimed(ctx, tx, txnID, payerID, err)
	}

	if !s.cfg.GuardReplays {
		result := s.transfer(ctx, tx, txnID, payerID, payeeID, amount)
		if !result.Success {
			return result
		}
		return s.commit(tx, txnID, payerID, payeeID, amount, result)
	}

	claimed, err := s.claim(ctx, tx, txnID)
	if err != nil {
		return s.failUnclaimed(ctx, tx, txnID, payerID, err)
	}
	if !claimed {
		recorded, err := s.recordedOutcome(ctx, tx, txnID)
		if err != nil {
			return s.systemError(txnID, payerID, err)
		}
		s.logger.Warn("transaction already posted, returning recorded outcome",
			zap.String("txn_id", txnID),
			zap.Bool("success", recorded.Success),
			zap.String("reason_code", string(recorded.ReasonCode)),
		)
		return recorded
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT transfer"); err != nil {
		return s.failUnclaimed(ctx, tx, txnID, payerID, fmt.Errorf("savepoint: %w", err))
	}

	result := s.transfer(ctx, tx, txnID, payerID, payeeID, amount)
	if result.Success {
		return s.commit(tx, txnID, payerID, payeeID, amount, result)
	}

	// undo the transfer but keep the claim, so a replay gets this failure back
	if err := s.recordFailure(ctx, tx, txnID, result); err != nil {
		s.logger.Error("failed to record posting failure", zap.String("txn_id", txnID), zap.Error(err))
		return result
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit posting failure", zap.String("txn_id", txnID), zap.Error(err))
	}
	return result
}

// transfer locks both accounts and applies the transfer inside tx without committing.
func (s *LedgerService) transfer(ctx context.Context, tx *sql.Tx, txnID, payerID, payeeID string, amount decimal.Decimal) PostResult {
	payer, payee, err := s.lockPair(ctx, tx, payerID, payeeID)
	if err != nil {
		return s.systemError(txnID, payerID, err)
	}

	plan, err := planTransfer(txnID, *payer, *payee, amount)
	if errors.Is(err, ErrInsufficientFunds) {
		text := fmt.Sprintf("Payer balance %s is less than transaction amount %s", payer.Balance, amount)
		s.audit.LogRejection(txnID, payerID, amount, string(models.ReasonInsufficientFunds), text)
		return PostResult{ReasonCode: models.ReasonInsufficientFunds, ReasonText: text}
	}
	if err != nil {
		return s.systemError(txnID, payerID, err)
	}

	if err := s.apply(ctx, tx, plan); err != nil {
		return s.systemError(txnID, payerID, err)
	}
	return PostResult{Success: true}
}

func (s *LedgerService) commit(tx *sql.Tx, txnID, payerID, payeeID string, amount decimal.Decimal, result PostResult) PostResult {
	if err := tx.Commit(); err != nil {
		return s.systemError(txnID, payerID, fmt.Errorf("commit: %w", err))
	}
	s.audit.LogTransfer(txnID, payerID, payeeID, amount, "SUCCESS")
	return result
}

func (s *LedgerService) systemError(txnID, accountID string, err error) PostResult {
	s.logger.Error("posting failed", zap.String("txn_id", txnID), zap.Error(err))
	s.audit.LogError(txnID, accountID, err)
	return PostResult{ReasonCode: models.ReasonSystemError, ReasonText: err.Error()}
}

// failUnclaimed handles an error raised before the replay claim was taken.
// The open transaction is rolled back and the failure is recorded on its own
// so a replay does not post a transaction already announced as failed.
func (s *LedgerService) failUnclaimed(ctx context.Context, tx *sql.Tx, txnID, accountID string, err error) PostResult {
	result := s.systemError(txnID, accountID, err)
	if tx != nil {
		_ = tx.Rollback()
	}
	if !s.cfg.GuardReplays {
		return result
	}
	if _, rerr := s.db.ExecContext(ctx, recordOutcomeSQL,
		txnID, string(models.StatusFailed), string(result.ReasonCode), nullString(result.ReasonText)); rerr != nil {
		s.logger.Error("failed to record posting failure", zap.String("txn_id", txnID), zap.Error(rerr))
	}
	return result
}

// applyTimeouts bounds how long the transfer may wait on a row lock.
func (s *LedgerService) applyTimeouts(ctx context.Context, tx *sql.Tx) error {
	if s.cfg.LockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	if s.cfg.StatementTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", s.cfg.StatementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}
	return nil
}

const recordOutcomeSQL = `
		INSERT INTO posted_transactions (txn_id, outcome, reason_code, reason_text, posted_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (txn_id) DO NOTHING`

// claim records txnID as posted. It reports false when a previous post already
// recorded an outcome for it.
func (s *LedgerService) claim(ctx context.Context, tx *sql.Tx, txnID string) (bool, error) {
	res, err := tx.ExecContext(ctx, recordOutcomeSQL, txnID, string(models.StatusCompleted), nullString(""), nullString(""))
	if err != nil {
		return false, fmt.Errorf("claim transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// recordFailure rolls the transfer back to the savepoint taken after the
// claim and turns the claim into a recorded failure.
func (s *LedgerService) recordFailure(ctx context.Context, tx *sql.Tx, txnID string, result PostResult) error {
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT transfer"); err != nil {
		return fmt.Errorf("rollback to savepoint: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE posted_transactions
		SET outcome = $1, reason_code = $2, reason_text = $3
		WHERE txn_id = $4`,
		string(models.StatusFailed), string(result.ReasonCode), nullString(result.ReasonText), txnID)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// recordedOutcome returns what an earlier post of txnID concluded.
func (s *LedgerService) recordedOutcome(ctx context.Context, tx *sql.Tx, txnID string) (PostResult, error) {
	var (
		outcome    string
		reasonCode sql.NullString
		reasonText sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT outcome, reason_code, reason_text
		FROM posted_transactions
		WHERE txn_id = $1`, txnID).Scan(&outcome, &reasonCode, &reasonText)
	if err != nil {
		return PostResult{}, fmt.Errorf("read recorded outcome: %w", err)
	}

	if models.Status(outcome) == models.StatusCompleted {
		return PostResult{Success: true, Duplicate: true}, nil
	}
	return PostResult{
		Duplicate:  true,
		ReasonCode: models.ReasonCode(reasonCode.String),
		ReasonText: reasonText.String,
	}, nil
}

// lockPair locks both accounts in account id order to prevent deadlocks
// between opposite transfers.
func (s *LedgerService) lockPair(ctx context.Context, tx *sql.Tx, payerID, payeeID string) (*models.WalletAccount, *models.WalletAccount, error) {
	firstLock, secondLock := payerID, payeeID
	if payerID > payeeID {
		firstLock, secondLock = payeeID, payerID
	}

	first, err := s.lockAccount(ctx, tx, firstLock)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.lockAccount(ctx, tx, secondLock)
	if err != nil {
		return nil, nil, err
	}

	if firstLock != payerID {
		first, second = second, first
	}
	return first, second, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.WalletAccount, error) {
	var account models.WalletAccount
	err := tx.QueryRowContext(ctx, `
		SELECT account_id, balance, updated_at
		FROM wallet_accounts
		WHERE account_id = $1
		FOR UPDATE`, accountID).Scan(&account.AccountID, &account.Balance, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return &account, nil
}

// transferPlan holds the post-transfer balances and the two ledger rows.
type transferPlan struct {
	Payer   models.WalletAccount
	Payee   models.WalletAccount
	Entries [2]models.LedgerEntry
}

// planTransfer computes the transfer without touching the store. The sum of
// both balances is the same before and after.
func planTransfer(txnID string, payer, payee models.WalletAccount, amount decimal.Decimal) (transferPlan, error) {
	if !amount.IsPositive() {
		return transferPlan{}, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if payer.Balance.LessThan(amount) {
		return transferPlan{}, ErrInsufficientFunds
	}

	payer.Balance = payer.Balance.Sub(amount)
	payee.Balance = payee.Balance.Add(amount)
	return transferPlan{
		Payer: payer,
		Payee: payee,
		Entries: [2]models.LedgerEntry{
			{TxnID: txnID, AccountID: payer.AccountID, Direction: models.Debit, Amount: amount},
			{TxnID: txnID, AccountID: payee.AccountID, Direction: models.Credit, Amount: amount},
		},
	}, nil
}

func (s *LedgerService) apply(ctx context.Context, tx *sql.Tx, plan transferPlan) error {
	for _, account := range []models.WalletAccount{plan.Payer, plan.Payee} {
		if err := s.updateAccountBalance(ctx, tx, account.AccountID, account.Balance); err != nil {
			return err
		}
	}
	for _, entry := range plan.Entries {
		if err := s.createLedgerEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, balance decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET balance = $1, updated_at = NOW()
		WHERE account_id = $2`,
		balance, accountID)
	if err != nil {
		return fmt.Errorf("update balance of %s: %w", accountID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return nil
}

func (s *LedgerService) createLedgerEntry(ctx context.Context, tx *sql.Tx, entry models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (txn_id, account_id, dr_cr, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		entry.TxnID, entry.AccountID, string(entry.Direction), entry.Amount)
	if err != nil {
		return fmt.Errorf("insert %s entry: %w", entry.Direction, err)
	}
	return nil
}

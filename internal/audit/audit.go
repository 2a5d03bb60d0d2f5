package audit

import (
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Event struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       map[string]string `json:"details"`
}

// Logger writes one AUDIT entry per money-moving decision.
type Logger struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewLogger(logger *logging.Logger) *Logger {
	return &Logger{logger: logger.Named("audit"), now: time.Now}
}

func (a *Logger) LogTransfer(transactionID, fromAccount, toAccount string, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		AccountID:     fromAccount,
		Amount:        amount,
		Status:        status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *Logger) LogRejection(transactionID, accountID string, amount decimal.Decimal, reasonCode, reasonText string) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     "REJECTION",
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Status:        "FAILED",
		Details: map[string]string{
			"reason_code": reasonCode,
			"reason_text": reasonText,
		},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("transaction_id", event.TransactionID),
		zap.String("status", event.Status),
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if !event.Amount.IsZero() {
		fields = append(fields, zap.Stringer("amount", event.Amount))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}
	a.logger.Info("AUDIT", fields...)
}

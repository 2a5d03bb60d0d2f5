package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	a := NewLogger(&logging.Logger{Logger: zap.New(core)})
	a.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return a, logs
}

func TestLogTransfer(t *testing.T) {
	a, logs := newObserved()

	a.LogTransfer("txn-1", "A", "B", decimal.NewFromInt(100), "SUCCESS")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "AUDIT", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "TRANSFER", fields["event_type"])
	assert.Equal(t, "txn-1", fields["transaction_id"])
	assert.Equal(t, "100", fields["amount"])
	assert.Equal(t, "A", fields["from_account"])
	assert.Equal(t, "B", fields["to_account"])
}

func TestLogError(t *testing.T) {
	a, logs := newObserved()

	a.LogError("txn-2", "A", errors.New("lock timeout"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "ERROR", fields["event_type"])
	assert.Equal(t, "FAILED", fields["status"])
	assert.Equal(t, "lock timeout", fields["error"])
	assert.NotContains(t, fields, "amount")
}

package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestIntake(t *testing.T) (*IntakeService, sqlmock.Sqlmock, *MockPublisher, time.Time) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	publisher := &MockPublisher{}
	service := NewIntakeService(db, publisher, testTopics(), logging.NewNoOpLogger())
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	service.newID = func() string { return "3f1c2b7e-0000-4000-8000-000000000001" }
	service.now = func() time.Time { return now }
	return service, sqlMock, publisher, now
}

func TestIntakeService_Initiate(t *testing.T) {
	req := InitiateRequest{
		Type:    models.TypeP2M,
		PayerID: "A",
		PayeeID: "M-01",
		Amount:  decimal.RequireFromString("250.50"),
		Channel: models.ChannelUSSD,
	}
	const txnID = "3f1c2b7e-0000-4000-8000-000000000001"

	t.Run("stores then publishes", func(t *testing.T) {
		service, sqlMock, publisher, now := newTestIntake(t)

		sqlMock.ExpectExec("INSERT INTO transactions").
			WithArgs(txnID, "P2M", "A", "M-01", decimalEq("250.50"), "USSD", "RECEIVED", now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		publisher.On("Publish", mock.Anything, "ips.tx.received", txnID, mock.MatchedBy(func(e events.Received) bool {
			return e.TxnID == txnID && e.Amount.Equal(req.Amount) && e.RequestedAt.Equal(now) && e.Channel == models.ChannelUSSD
		})).Return(nil)

		tx, err := service.Initiate(testCtx(), req)
		require.NoError(t, err)
		assert.Equal(t, txnID, tx.TxnID)
		assert.Equal(t, models.StatusReceived, tx.Status)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		publisher.AssertExpectations(t)
	})

	t.Run("store failure emits nothing", func(t *testing.T) {
		service, sqlMock, publisher, _ := newTestIntake(t)

		sqlMock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("relation does not exist"))

		_, err := service.Initiate(testCtx(), req)
		assert.Error(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure is reported", func(t *testing.T) {
		service, sqlMock, publisher, _ := newTestIntake(t)

		sqlMock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		publisher.On("Publish", mock.Anything, "ips.tx.received", txnID, mock.Anything).Return(errors.New("broker down"))

		_, err := service.Initiate(testCtx(), req)
		assert.ErrorContains(t, err, "publish received")
	})
}

func TestInitiateRequest_Validation(t *testing.T) {
	vh := NewValidationHelper()
	valid := InitiateRequest{Type: models.TypeP2P, PayerID: "A", PayeeID: "B", Amount: decimal.NewFromInt(10), Channel: models.ChannelApp}
	assert.NoError(t, vh.ValidateStruct(&valid))

	tests := []struct {
		name   string
		mutate func(r *InitiateRequest)
		field  string
	}{
		{"zero amount", func(r *InitiateRequest) { r.Amount = decimal.Zero }, "Amount"},
		{"negative amount", func(r *InitiateRequest) { r.Amount = decimal.NewFromInt(-3) }, "Amount"},
		{"unknown type", func(r *InitiateRequest) { r.Type = "B2B" }, "Type"},
		{"unknown channel", func(r *InitiateRequest) { r.Channel = "WEB" }, "Channel"},
		{"missing payer", func(r *InitiateRequest) { r.PayerID = "" }, "PayerID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := vh.ValidateStruct(&req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

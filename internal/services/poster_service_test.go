package services

import (
	"context"
	"testing"

	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validatedMessage(t *testing.T) eventlog.Message {
	payload, err := events.Encode(events.Validated{
		TxnID: "txn-1", Type: models.TypeP2P, PayerID: "A", PayeeID: "B",
		Amount: decimal.NewFromInt(100), Channel: models.ChannelApp,
	})
	require.NoError(t, err)
	return eventlog.Message{Topic: "ips.tx.validated", Key: "txn-1", Payload: payload}
}

var amount100 = mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(100)) })

func TestPosterService_Handle(t *testing.T) {
	t.Run("success publishes completed", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).Return(PostResult{Success: true})
		publisher.On("Publish", mock.Anything, "ips.tx.completed", "txn-1", events.Completed{TxnID: "txn-1"}).Return(nil)

		assert.NoError(t, service.Handle(testCtx(), validatedMessage(t)))
		ledger.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("duplicate post publishes completed again", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).Return(PostResult{Success: true, Duplicate: true})
		publisher.On("Publish", mock.Anything, "ips.tx.completed", "txn-1", events.Completed{TxnID: "txn-1"}).Return(nil)

		assert.NoError(t, service.Handle(testCtx(), validatedMessage(t)))
		publisher.AssertExpectations(t)
	})

	t.Run("failure publishes failed with reason", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).Return(PostResult{
			ReasonCode: models.ReasonInsufficientFunds,
			ReasonText: "Payer balance 50 is less than transaction amount 100",
		})
		publisher.On("Publish", mock.Anything, "ips.tx.failed", "txn-1", events.Failed{
			TxnID:      "txn-1",
			ReasonCode: models.ReasonInsufficientFunds,
			ReasonText: "Payer balance 50 is less than transaction amount 100",
		}).Return(nil)

		assert.NoError(t, service.Handle(testCtx(), validatedMessage(t)))
		publisher.AssertExpectations(t)
	})

	t.Run("replayed failure publishes the recorded failed event", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).Return(PostResult{
			Duplicate:  true,
			ReasonCode: models.ReasonInsufficientFunds,
			ReasonText: "Payer balance 50 is less than transaction amount 100",
		})
		publisher.On("Publish", mock.Anything, "ips.tx.failed", "txn-1", events.Failed{
			TxnID:      "txn-1",
			ReasonCode: models.ReasonInsufficientFunds,
			ReasonText: "Payer balance 50 is less than transaction amount 100",
		}).Return(nil)

		assert.NoError(t, service.Handle(testCtx(), validatedMessage(t)))
		publisher.AssertExpectations(t)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, "ips.tx.completed", mock.Anything, mock.Anything)
	})

	t.Run("publish error is returned for retry", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).Return(PostResult{Success: true})
		publisher.On("Publish", mock.Anything, "ips.tx.completed", "txn-1", mock.Anything).Return(eventlog.ErrPublisherUnavailable)

		err := service.Handle(testCtx(), validatedMessage(t))
		assert.ErrorIs(t, err, eventlog.ErrPublisherUnavailable)
		assert.False(t, eventlog.IsPermanent(err))
	})

	t.Run("cancelled context publishes nothing", func(t *testing.T) {
		ledger := &MockPoster{}
		publisher := &MockPublisher{}
		service := NewPosterService(ledger, publisher, testTopics(), logging.NewNoOpLogger())

		ctx, cancel := context.WithCancel(testCtx())
		ledger.On("Post", mock.Anything, "txn-1", "A", "B", amount100).
			Run(func(mock.Arguments) { cancel() }).
			Return(PostResult{ReasonCode: models.ReasonSystemError, ReasonText: "context canceled"})

		err := service.Handle(ctx, validatedMessage(t))
		assert.ErrorIs(t, err, context.Canceled)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("undecodable payload is permanent", func(t *testing.T) {
		service := NewPosterService(&MockPoster{}, &MockPublisher{}, testTopics(), logging.NewNoOpLogger())

		err := service.Handle(testCtx(), eventlog.Message{Topic: "ips.tx.validated", Payload: []byte(`{"amount":1}`)})
		assert.True(t, eventlog.IsPermanent(err))
		assert.Contains(t, err.Error(), "missing txnId")
	})
}

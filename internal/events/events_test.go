package events

import (
	"testing"
	"time"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopics() Topics {
	return NewTopics(config.TopicConfig{
		Received:  "ips.tx.received",
		Validated: "ips.tx.validated",
		Rejected:  "ips.tx.rejected",
		Completed: "ips.tx.completed",
		Failed:    "ips.tx.failed",
		DLQSuffix: ".dlq",
	})
}

func TestDecode_AcceptsNumericAmount(t *testing.T) {
	payload := []byte(`{"txnId":"t-1","type":"P2P","payerId":"A","payeeId":"B","amount":100.25,"channel":"APP","requestedAt":"2026-01-02T03:04:05Z"}`)

	var evt Received
	require.NoError(t, Decode(payload, &evt))

	assert.Equal(t, "t-1", evt.TxnID)
	assert.Equal(t, models.TypeP2P, evt.Type)
	assert.True(t, evt.Amount.Equal(decimal.RequireFromString("100.25")))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), evt.RequestedAt)
}

func TestDecode_Errors(t *testing.T) {
	var evt Received
	assert.Error(t, Decode([]byte(`not json`), &evt))
	assert.Error(t, Decode([]byte(`{"type":"P2P"}`), &evt))
}

func TestEncode_ValidatedKeepsFields(t *testing.T) {
	in := Validated{TxnID: "t-2", Type: models.TypeP2M, PayerID: "A", PayeeID: "M", Amount: decimal.NewFromInt(7), Channel: models.ChannelUSSD}
	b, err := Encode(in)
	require.NoError(t, err)

	var out Validated
	require.NoError(t, Decode(b, &out))
	assert.Equal(t, in.PayeeID, out.PayeeID)
	assert.True(t, in.Amount.Equal(out.Amount))
}

func TestTopics(t *testing.T) {
	topics := testTopics()

	status, ok := topics.StatusFor("ips.tx.completed")
	assert.True(t, ok)
	assert.Equal(t, models.StatusCompleted, status)

	_, ok = topics.StatusFor("ips.tx.received")
	assert.False(t, ok)

	assert.Equal(t, "ips.tx.validated.dlq", topics.DeadLetter(topics.Validated()))
	assert.ElementsMatch(t, []string{"ips.tx.completed", "ips.tx.failed", "ips.tx.rejected"}, topics.Terminal())
	assert.Len(t, topics.StatusUpdates(), 4)
}

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusReceived:  {StatusValidated, StatusRejected},
		StatusValidated: {StatusCompleted, StatusFailed},
	}
	all := []Status{StatusReceived, StatusValidated, StatusRejected, StatusCompleted, StatusFailed}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusReceived.IsTerminal())
	assert.False(t, StatusValidated.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, Status("SETTLED").IsTerminal())
}

func TestPredecessors(t *testing.T) {
	assert.Equal(t, []Status{StatusReceived}, Predecessors(StatusValidated))
	assert.Equal(t, []Status{StatusReceived}, Predecessors(StatusRejected))
	assert.Equal(t, []Status{StatusValidated}, Predecessors(StatusCompleted))
	assert.Equal(t, []Status{StatusValidated}, Predecessors(StatusFailed))
	assert.Empty(t, Predecessors(StatusReceived))
}

func TestStatus_CanReach(t *testing.T) {
	assert.True(t, StatusReceived.CanReach(StatusValidated))
	assert.True(t, StatusReceived.CanReach(StatusCompleted))
	assert.True(t, StatusReceived.CanReach(StatusFailed))
	assert.True(t, StatusValidated.CanReach(StatusCompleted))

	assert.False(t, StatusValidated.CanReach(StatusRejected))
	assert.False(t, StatusCompleted.CanReach(StatusCompleted))
	assert.False(t, StatusFailed.CanReach(StatusCompleted))
	assert.False(t, StatusReceived.CanReach(StatusReceived))
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusReceived, StatusValidated))
	assert.NoError(t, ValidateTransition(StatusValidated, StatusFailed))

	err := ValidateTransition(StatusCompleted, StatusValidated)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = ValidateTransition(StatusReceived, StatusCompleted)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = ValidateTransition("PENDING", StatusValidated)
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("COMPLETED")
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("completed")
	assert.Error(t, err)
}

func TestTransactionTypeAndChannel(t *testing.T) {
	assert.True(t, TypeP2P.IsValid())
	assert.True(t, TypeP2M.IsValid())
	assert.False(t, TransactionType("B2B").IsValid())
	assert.True(t, ChannelUSSD.IsValid())
	assert.False(t, Channel("WEB").IsValid())
}

func TestMetadata_ValueScan(t *testing.T) {
	m := Metadata{"txnId": "t-1", "amount": "100"}
	v, err := m.Value()
	assert.NoError(t, err)

	var out Metadata
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, "t-1", out["txnId"])

	assert.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}

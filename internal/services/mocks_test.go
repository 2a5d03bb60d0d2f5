package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"reflect"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

type MockPoster struct {
	mock.Mock
}

func (m *MockPoster) Post(ctx context.Context, txnID, payerID, payeeID string, amount decimal.Decimal) PostResult {
	args := m.Called(ctx, txnID, payerID, payeeID, amount)
	return args.Get(0).(PostResult)
}

func testCtx() context.Context {
	return context.Background()
}

func testTopics() events.Topics {
	return events.NewTopics(config.TopicConfig{
		Received:  "ips.tx.received",
		Validated: "ips.tx.validated",
		Rejected:  "ips.tx.rejected",
		Completed: "ips.tx.completed",
		Failed:    "ips.tx.failed",
		DLQSuffix: ".dlq",
	})
}

// decimalArg matches a driver value holding the same number as want.
type decimalArg struct {
	want decimal.Decimal
}

func decimalEq(s string) decimalArg {
	return decimalArg{want: decimal.RequireFromString(s)}
}

func (a decimalArg) Match(v driver.Value) bool {
	var d decimal.Decimal
	if err := d.Scan(v); err != nil {
		return false
	}
	return d.Equal(a.want)
}

// jsonArg matches a driver value holding JSON equal to want.
type jsonArg struct {
	want map[string]any
}

func (a jsonArg) Match(v driver.Value) bool {
	var raw []byte
	switch b := v.(type) {
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	default:
		return false
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	return reflect.DeepEqual(got, a.want)
}

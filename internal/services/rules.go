package services

import (
	"fmt"
	"strings"

	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/shopspring/decimal"
)

// RuleResult is the outcome of the business rule check. ReasonCode and
// ReasonText are set only when Valid is false.
type RuleResult struct {
	Valid      bool
	ReasonCode models.ReasonCode
	ReasonText string
}

type rule func(tx events.Received, maxAmount decimal.Decimal) (models.ReasonCode, string, bool)

// rules run in this order and the first failure wins.
var rules = []rule{
	func(tx events.Received, _ decimal.Decimal) (models.ReasonCode, string, bool) {
		return models.ReasonAmountInvalid, "Amount must be greater than 0", tx.Amount.IsPositive()
	},
	func(tx events.Received, maxAmount decimal.Decimal) (models.ReasonCode, string, bool) {
		return models.ReasonLimitExceeded, fmt.Sprintf("Amount exceeds maximum limit of %s", maxAmount), !tx.Amount.GreaterThan(maxAmount)
	},
	func(tx events.Received, _ decimal.Decimal) (models.ReasonCode, string, bool) {
		return models.ReasonSelfTransfer, "Payer and payee cannot be the same account", tx.PayerID != tx.PayeeID
	},
	func(tx events.Received, _ decimal.Decimal) (models.ReasonCode, string, bool) {
		return models.ReasonInvalidType, "Transaction type must be one of: " + allowedTypes(), tx.Type.IsValid()
	},
}

// ValidateTransaction applies the business rules to a received transaction.
func ValidateTransaction(tx events.Received, maxAmount decimal.Decimal) RuleResult {
	for _, check := range rules {
		if code, text, ok := check(tx, maxAmount); !ok {
			return RuleResult{ReasonCode: code, ReasonText: text}
		}
	}
	return RuleResult{Valid: true}
}

func allowedTypes() string {
	names := make([]string, len(models.AllowedTypes))
	for i, t := range models.AllowedTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

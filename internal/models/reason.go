package models

type ReasonCode string

const (
	ReasonAmountInvalid     ReasonCode = "AMOUNT_INVALID"
	ReasonLimitExceeded     ReasonCode = "LIMIT_EXCEEDED"
	ReasonSelfTransfer      ReasonCode = "SELF_TRANSFER"
	ReasonInvalidType       ReasonCode = "INVALID_TYPE"
	ReasonInsufficientFunds ReasonCode = "INSUFFICIENT_FUNDS"
	ReasonSystemError       ReasonCode = "SYSTEM_ERROR"
)

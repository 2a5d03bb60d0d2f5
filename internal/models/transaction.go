package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeP2P TransactionType = "P2P"
	TypeP2M TransactionType = "P2M"
)

// AllowedTypes is the set of transaction types the pipeline accepts.
var AllowedTypes = []TransactionType{TypeP2P, TypeP2M}

func (t TransactionType) IsValid() bool {
	for _, allowed := range AllowedTypes {
		if t == allowed {
			return true
		}
	}
	return false
}

type Channel string

const (
	ChannelApp  Channel = "APP"
	ChannelUSSD Channel = "USSD"
)

var AllowedChannels = []Channel{ChannelApp, ChannelUSSD}

func (c Channel) IsValid() bool {
	for _, allowed := range AllowedChannels {
		if c == allowed {
			return true
		}
	}
	return false
}

// Transaction is the intake-owned record of a payment moving through the pipeline.
type Transaction struct {
	TxnID       string          `json:"txnId" db:"txn_id"`
	Type        TransactionType `json:"type" db:"type"`
	PayerID     string          `json:"payerId" db:"payer_id"`
	PayeeID     string          `json:"payeeId" db:"payee_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Channel     Channel         `json:"channel" db:"channel"`
	Status      Status          `json:"status" db:"status"`
	ReasonCode  *string         `json:"reasonCode,omitempty" db:"reason_code"`
	ReasonText  *string         `json:"reasonText,omitempty" db:"reason_text"`
	RequestedAt time.Time       `json:"requestedAt" db:"requested_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// TxnEvent is an append-only audit row written by the validation stage.
type TxnEvent struct {
	ID          int64     `json:"id" db:"id"`
	TxnID       string    `json:"txnId" db:"txn_id"`
	EventType   Status    `json:"eventType" db:"event_type"`
	PayloadJSON Metadata  `json:"payload" db:"payload_json"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Notification is the deduplicated per-status message record of the notifier.
type Notification struct {
	ID        int64     `json:"id" db:"id"`
	TxnID     string    `json:"txnId" db:"txn_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

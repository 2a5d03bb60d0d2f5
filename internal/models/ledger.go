package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "DR"
	Credit Direction = "CR"
)

type LedgerEntry struct {
	ID        int64           `json:"id" db:"id"`
	TxnID     string          `json:"txnId" db:"txn_id"`
	AccountID string          `json:"accountId" db:"account_id"`
	Direction Direction       `json:"drCr" db:"dr_cr"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type WalletAccount struct {
	AccountID string          `json:"accountId" db:"account_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

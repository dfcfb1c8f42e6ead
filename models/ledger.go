package models

import "time"

// TransactionType indicates the direction of a ledger entry
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// LedgerTransaction is an immutable, append-only wallet entry. Credits carry a
// positive amount, debits a negative one, so the wallet balance is always
// SUM(amount) over the account's rows. Rows are never updated or deleted —
// there is deliberately no UpdatedAt/DeletedAt here.
type LedgerTransaction struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string          `gorm:"index;not null" json:"account_id"`
	TenantID  string          `gorm:"index;not null" json:"tenant_id"`
	Amount    int64           `gorm:"not null" json:"amount"` // signed: + credit, - debit
	Reason    string          `gorm:"size:255" json:"reason"`
	Type      TransactionType `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction represents a financial transaction in the system.
//
// Transfers are stored as two mutually paired transactions: an expense leg
// on the source account and an income leg on the destination account,
// sharing date and amount and referencing each other via
// PairedTransactionID. Budget consumption queries exclude paired legs, so
// transfers never count as spending.
//
// Transactions materialized by the recurring-transaction engine carry
// Generated=true and a reference to the originating rule.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`

	// Transfer pairing
	PairedTransactionID *string `gorm:"type:uuid" json:"paired_transaction_id,omitempty"`

	// Recurring-sync provenance
	RecurringRuleID *string `gorm:"type:uuid;index" json:"recurring_rule_id,omitempty"`
	Generated       bool    `gorm:"default:false" json:"generated"`

	// Relationships
	Account           Account      `gorm:"foreignKey:AccountID" json:"account"`
	Category          *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	PairedTransaction *Transaction `gorm:"foreignKey:PairedTransactionID" json:"paired_transaction,omitempty"`
}

// IsTransferLeg reports whether the transaction is one side of a transfer.
func (t *Transaction) IsTransferLeg() bool {
	return t.PairedTransactionID != nil
}

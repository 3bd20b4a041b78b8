package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the two ledger kinds.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

type Transaction struct {
	ID        string          `db:"id" json:"id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Concept   string          `db:"concept" json:"concept"`
	Date      time.Time       `db:"date" json:"date"`
	Type      TransactionType `db:"type" json:"type"`
	UserID    string          `db:"user_id" json:"userId"`
	User      *User           `db:"-" json:"user,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// TransactionInput is the payload of an admin create request.
// Date is kept as the raw string so parsing errors surface as validation failures.
type TransactionInput struct {
	Amount  decimal.Decimal `json:"amount"`
	Concept string          `json:"concept"`
	Date    string          `json:"date"`
	Type    TransactionType `json:"type"`
	UserID  string          `json:"userId,omitempty"`
}

// TransactionPatch carries only the fields an update should touch.
type TransactionPatch struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Concept *string          `json:"concept,omitempty"`
	Date    *string          `json:"date,omitempty"`
	Type    *TransactionType `json:"type,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Amount == nil && p.Concept == nil && p.Date == nil && p.Type == nil
}

// TransactionChanges is a validated patch ready for the store.
type TransactionChanges struct {
	Amount  *decimal.Decimal
	Concept *string
	Date    *time.Time
	Type    *TransactionType
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryDirection marks which side of a double-entry posting a ledger
// entry sits on.
type EntryDirection string

const (
	Debit  EntryDirection = "DEBIT"
	Credit EntryDirection = "CREDIT"
)

// LedgerEntry is one immutable ledger record for an account. Entries are
// only ever appended; a correction is a new compensating entry, never an
// update to an existing one.
type LedgerEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	TransactionID string          `json:"transaction_id"`
	Direction     EntryDirection  `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the entry amount as it contributes to the account balance:
// credits count positive, debits negative.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// NewEntryPair builds the double-entry posting for a transfer: a DEBIT on
// the source account and a CREDIT on the destination, both referencing the
// transaction and carrying the same amount.
func NewEntryPair(tx *Transaction) (debit, credit LedgerEntry) {
	now := time.Now().UTC()
	debit = LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     tx.SourceAccountID,
		TransactionID: tx.ID,
		Direction:     Debit,
		Amount:        tx.Amount,
		CreatedAt:     now,
	}
	credit = LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     tx.DestinationAccountID,
		TransactionID: tx.ID,
		Direction:     Credit,
		Amount:        tx.Amount,
		CreatedAt:     now,
	}
	return debit, credit
}

// NewReversalPair builds the compensating posting that undoes a completed
// transfer: a CREDIT back on the original source and a DEBIT on the original
// destination. The original entries stay in the ledger untouched.
func NewReversalPair(tx *Transaction) (credit, debit LedgerEntry) {
	now := time.Now().UTC()
	credit = LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     tx.SourceAccountID,
		TransactionID: tx.ID,
		Direction:     Credit,
		Amount:        tx.Amount,
		CreatedAt:     now,
	}
	debit = LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     tx.DestinationAccountID,
		TransactionID: tx.ID,
		Direction:     Debit,
		Amount:        tx.Amount,
		CreatedAt:     now,
	}
	return credit, debit
}

// Package ledger derives account balances from the ledger. Balance is never
// a stored field here: it is always the signed sum of an account's entries,
// so it cannot drift from history.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

// Calculator computes balances by aggregating ledger entries.
type Calculator struct {
	store interfaces.TransferStore
}

func NewCalculator(store interfaces.TransferStore) *Calculator {
	return &Calculator{store: store}
}

// BalanceOf returns the account balance as the sum of credits minus debits
// over every committed entry. A caller that needs the balance to still hold
// while it acts on it must hold the account lock across the read.
func (c *Calculator) BalanceOf(ctx context.Context, accountID string) (decimal.Decimal, error) {
	entries, err := c.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, entry := range entries {
		balance = balance.Add(entry.Signed())
	}
	return balance, nil
}

// AnnotatedEntry pairs a ledger entry with the account balance immediately
// after the entry was applied.
type AnnotatedEntry struct {
	Entry   models.LedgerEntry
	Balance decimal.Decimal
}

// AnnotateRunning computes the running balance for entries given oldest
// first, returning them in the same order. Callers that present newest-first
// pages reverse the result afterwards, which keeps the running-balance
// column consistent with either ordering.
func AnnotateRunning(entries []models.LedgerEntry) []AnnotatedEntry {
	out := make([]AnnotatedEntry, 0, len(entries))
	running := decimal.Zero
	for _, entry := range entries {
		running = running.Add(entry.Signed())
		out = append(out, AnnotatedEntry{Entry: entry, Balance: running})
	}
	return out
}

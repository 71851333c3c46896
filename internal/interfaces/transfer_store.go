package interfaces

import (
	"context"

	"github.com/mohitc/banking-ledger/internal/models"
)

// SortOrder selects how ledger entries are ordered for audit display.
type SortOrder string

const (
	NewestFirst SortOrder = "desc"
	OldestFirst SortOrder = "asc"
)

// HistoryFilter narrows and pages a transaction history read.
type HistoryFilter struct {
	Status models.TransactionStatus // empty matches all statuses
	Limit  int
	Page   int
}

// TransferStore is the durable home of transactions and ledger entries.
// The two commit methods are the only operations that write ledger entries,
// and each is a single atomic unit: either every row lands or none does.
type TransferStore interface {
	// CommitTransfer persists the transaction with status COMPLETED
	// together with its DEBIT/CREDIT pair. It fails wholesale with
	// ErrDuplicateKey if the idempotency key is already bound and with
	// ErrDuplicateTransaction if entries already reference the
	// transaction. The caller transitions the in-memory transaction
	// after the commit succeeds.
	CommitTransfer(ctx context.Context, tx *models.Transaction, debit, credit models.LedgerEntry) error

	// CommitReversal marks a COMPLETED transaction REVERSED and appends
	// the compensating CREDIT/DEBIT pair in the same atomic unit. It
	// fails with ErrInvalidStateTransition if the stored transaction is
	// not COMPLETED.
	CommitReversal(ctx context.Context, tx *models.Transaction, credit, debit models.LedgerEntry) error

	// SaveTransaction persists a transaction row on its own, without any
	// ledger entries. Used to record FAILED attempts for audit.
	SaveTransaction(ctx context.Context, tx *models.Transaction) error

	TransactionByID(ctx context.Context, id string) (*models.Transaction, error)

	// TransactionByKey returns the transaction bound to an idempotency
	// key, or ErrTransactionNotFound.
	TransactionByKey(ctx context.Context, key string) (*models.Transaction, error)

	// EntriesByAccount returns every entry for the account, oldest first.
	// This is the read that balances and running balances are derived
	// from, so it must only ever see fully committed postings.
	EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)

	// EntriesPage returns one page of an account's entries in the given
	// order, plus the total entry count for pagination metadata.
	EntriesPage(ctx context.Context, accountID string, limit, page int, order SortOrder) ([]models.LedgerEntry, int, error)

	// TransactionsByAccounts returns one page of transactions touching
	// any of the given accounts, newest first, plus the total count.
	TransactionsByAccounts(ctx context.Context, accountIDs []string, filter HistoryFilter) ([]models.Transaction, int, error)
}

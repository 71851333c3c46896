// Package memory holds the in-memory TransferStore used for local runs and
// tests. A single mutex serializes commits, which makes each commit method
// trivially atomic: invariant checks and appends happen under one lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

// Store is an in-memory implementation of interfaces.TransferStore.
type Store struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	txs     map[string]*models.Transaction // by transaction id
	byKey   map[string]string              // idempotency key -> transaction id
}

func NewStore() *Store {
	return &Store{
		txs:   make(map[string]*models.Transaction),
		byKey: make(map[string]string),
	}
}

// CommitTransfer persists the transaction as COMPLETED together with both
// entries. All invariant checks run before any append, so a rejection
// leaves the store untouched.
func (m *Store) CommitTransfer(ctx context.Context, tx *models.Transaction, debit, credit models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if boundID, exists := m.byKey[tx.IdempotencyKey]; exists && boundID != tx.ID {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, tx.IdempotencyKey)
	}
	for _, entry := range m.entries {
		if entry.TransactionID == tx.ID {
			return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, tx.ID)
		}
	}

	cp := *tx
	cp.Status = models.StatusCompleted
	cp.UpdatedAt = time.Now().UTC()
	m.txs[cp.ID] = &cp
	m.byKey[cp.IdempotencyKey] = cp.ID
	m.entries = append(m.entries, debit, credit)
	return nil
}

// CommitReversal appends the compensating pair and marks the transaction
// REVERSED, atomically under the store lock.
func (m *Store) CommitReversal(ctx context.Context, tx *models.Transaction, credit, debit models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.txs[tx.ID]
	if !exists {
		return fmt.Errorf("%w: %s", models.ErrTransactionNotFound, tx.ID)
	}
	if stored.Status != models.StatusCompleted {
		return fmt.Errorf("%w: transaction %s is %s", models.ErrInvalidStateTransition, stored.ID, stored.Status)
	}

	stored.Status = models.StatusReversed
	stored.UpdatedAt = time.Now().UTC()
	m.entries = append(m.entries, credit, debit)
	return nil
}

// SaveTransaction persists a transaction row without entries, for FAILED
// audit records.
func (m *Store) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if boundID, exists := m.byKey[tx.IdempotencyKey]; exists && boundID != tx.ID {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, tx.IdempotencyKey)
	}
	cp := *tx
	m.txs[cp.ID] = &cp
	m.byKey[cp.IdempotencyKey] = cp.ID
	return nil
}

func (m *Store) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, exists := m.txs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
	}
	cp := *tx
	return &cp, nil
}

func (m *Store) TransactionByKey(ctx context.Context, key string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.byKey[key]
	if !exists {
		return nil, fmt.Errorf("%w: key %s", models.ErrTransactionNotFound, key)
	}
	cp := *m.txs[id]
	return &cp, nil
}

// EntriesByAccount returns the account's entries oldest first. Append order
// is commit order, so no extra sorting is needed.
func (m *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *Store) EntriesPage(ctx context.Context, accountID string, limit, page int, order interfaces.SortOrder) ([]models.LedgerEntry, int, error) {
	all, err := m.EntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	if order == interfaces.NewestFirst {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}

	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *Store) TransactionsByAccounts(ctx context.Context, accountIDs []string, filter interfaces.HistoryFilter) ([]models.Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}

	var matched []models.Transaction
	for _, tx := range m.txs {
		if !wanted[tx.SourceAccountID] && !wanted[tx.DestinationAccountID] {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		matched = append(matched, *tx)
	}

	// Newest first, id as tie-break so pages are stable.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

var _ interfaces.TransferStore = (*Store)(nil)

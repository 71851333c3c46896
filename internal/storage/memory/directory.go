package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

// Directory is an in-memory AccountDirectory standing in for the
// account-management service in local runs and tests.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewDirectory() *Directory {
	return &Directory{accounts: make(map[string]models.Account)}
}

// Seed registers accounts. Intended for startup wiring and tests only;
// account lifecycle is owned by the account-management service.
func (d *Directory) Seed(accounts ...models.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range accounts {
		d.accounts[account.ID] = account
	}
}

func (d *Directory) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, exists := d.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
	}
	cp := account
	return &cp, nil
}

func (d *Directory) IsOwnedBy(ctx context.Context, accountID, callerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, exists := d.accounts[accountID]
	if !exists {
		return false, fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	return account.OwnerID == callerID, nil
}

func (d *Directory) AccountsByOwner(ctx context.Context, callerID string) ([]models.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []models.Account
	for _, account := range d.accounts {
		if account.OwnerID == callerID {
			result = append(result, account)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ interfaces.AccountDirectory = (*Directory)(nil)

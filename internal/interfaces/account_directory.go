package interfaces

import (
	"context"

	"github.com/mohitc/banking-ledger/internal/models"
)

// AccountDirectory is the boundary to the account-management service. The
// ledger core never creates or mutates accounts; it reads status, currency
// and ownership through this interface.
type AccountDirectory interface {
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	IsOwnedBy(ctx context.Context, accountID, callerID string) (bool, error)
	AccountsByOwner(ctx context.Context, callerID string) ([]models.Account, error)
}

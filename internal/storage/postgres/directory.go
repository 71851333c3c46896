package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

// Directory reads accounts from the accounts table maintained by the
// account-management service. Read-only: the ledger core never writes it.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

const accountColumns = `id, owner_id, currency, status, created_at`

func (d *Directory) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account models.Account
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.OwnerID, &account.Currency, &account.Status, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *Directory) IsOwnedBy(ctx context.Context, accountID, callerID string) (bool, error) {
	account, err := d.AccountByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	return account.OwnerID == callerID, nil
}

func (d *Directory) AccountsByOwner(ctx context.Context, callerID string) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, callerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.OwnerID, &account.Currency,
			&account.Status, &account.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

var _ interfaces.AccountDirectory = (*Directory)(nil)

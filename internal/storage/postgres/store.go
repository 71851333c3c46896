// Package postgres implements the TransferStore and AccountDirectory on
// PostgreSQL. Commits use one sql.Tx so the transaction row and its entry
// pair land together or not at all; unique indexes on idempotency_key and
// (transaction_id, direction) back the duplicate checks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// translate maps driver errors onto the domain taxonomy so callers never
// match on pq internals.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if strings.Contains(pqErr.Constraint, "idempotency_key") {
			return fmt.Errorf("%w: %v", models.ErrDuplicateKey, err)
		}
		return fmt.Errorf("%w: %v", models.ErrDuplicateTransaction, err)
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %v", models.ErrStoreConflict, err)
	}
	return err
}

func (p *Store) insertTransaction(ctx context.Context, dbTx *sql.Tx, tx *models.Transaction, status models.TransactionStatus, updatedAt time.Time) error {
	const query = `
		INSERT INTO transactions
			(id, source_account_id, destination_account_id, amount,
			 idempotency_key, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := dbTx.ExecContext(ctx, query,
		tx.ID, tx.SourceAccountID, tx.DestinationAccountID, tx.Amount,
		tx.IdempotencyKey, status, string(tx.FailureReason), tx.CreatedAt, updatedAt)
	return err
}

func (p *Store) insertEntry(ctx context.Context, dbTx *sql.Tx, entry models.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries
			(id, account_id, transaction_id, direction, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := dbTx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.TransactionID, entry.Direction, entry.Amount, entry.CreatedAt)
	return err
}

func (p *Store) CommitTransfer(ctx context.Context, tx *models.Transaction, debit, credit models.LedgerEntry) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer dbTx.Rollback()

	if err := p.insertTransaction(ctx, dbTx, tx, models.StatusCompleted, time.Now().UTC()); err != nil {
		return translate(err)
	}
	if err := p.insertEntry(ctx, dbTx, debit); err != nil {
		return translate(err)
	}
	if err := p.insertEntry(ctx, dbTx, credit); err != nil {
		return translate(err)
	}
	return translate(dbTx.Commit())
}

func (p *Store) CommitReversal(ctx context.Context, tx *models.Transaction, credit, debit models.LedgerEntry) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusReversed, time.Now().UTC(), tx.ID, models.StatusCompleted)
	if err != nil {
		return translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: transaction %s is not COMPLETED", models.ErrInvalidStateTransition, tx.ID)
	}

	if err := p.insertEntry(ctx, dbTx, credit); err != nil {
		return translate(err)
	}
	if err := p.insertEntry(ctx, dbTx, debit); err != nil {
		return translate(err)
	}
	return translate(dbTx.Commit())
}

func (p *Store) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer dbTx.Rollback()

	if err := p.insertTransaction(ctx, dbTx, tx, tx.Status, tx.UpdatedAt); err != nil {
		return translate(err)
	}
	return translate(dbTx.Commit())
}

const transactionColumns = `id, source_account_id, destination_account_id, amount,
	idempotency_key, status, failure_reason, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var tx models.Transaction
	var reason string
	err := row.Scan(
		&tx.ID, &tx.SourceAccountID, &tx.DestinationAccountID, &tx.Amount,
		&tx.IdempotencyKey, &tx.Status, &reason, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tx.FailureReason = models.FailureReason(reason)
	return &tx, nil
}

func (p *Store) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, translate(err)
	}
	return tx, nil
}

func (p *Store) TransactionByKey(ctx context.Context, key string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: key %s", models.ErrTransactionNotFound, key)
	}
	if err != nil {
		return nil, translate(err)
	}
	return tx, nil
}

const entryColumns = `id, account_id, transaction_id, direction, amount, created_at`

func (p *Store) scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.TransactionID,
			&entry.Direction, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, translate(err)
	}
	return p.scanEntries(rows)
}

func (p *Store) EntriesPage(ctx context.Context, accountID string, limit, page int, order interfaces.SortOrder) ([]models.LedgerEntry, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	direction := "DESC"
	if order == interfaces.OldestFirst {
		direction = "ASC"
	}
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at ` + direction + `, id ` + direction + `
		LIMIT $2 OFFSET $3`

	rows, err := p.db.QueryContext(ctx, query, accountID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, translate(err)
	}
	entries, err := p.scanEntries(rows)
	if err != nil {
		return nil, 0, translate(err)
	}
	return entries, total, nil
}

func (p *Store) TransactionsByAccounts(ctx context.Context, accountIDs []string, filter interfaces.HistoryFilter) ([]models.Transaction, int, error) {
	where := `WHERE (source_account_id = ANY($1) OR destination_account_id = ANY($1))`
	args := []any{pq.Array(accountIDs)}
	if filter.Status != "" {
		where += ` AND status = $2`
		args = append(args, filter.Status)
	}

	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC, id ASC
		LIMIT %d OFFSET %d`, transactionColumns, where, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, translate(err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err)
	}
	return txs, total, nil
}

var _ interfaces.TransferStore = (*Store)(nil)

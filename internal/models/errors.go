// Package models defines the domain types of the ledger core and the domain
// errors every layer matches on with errors.Is. The HTTP layer translates
// them to status codes; nothing matches on error strings.
package models

import "errors"

var (
	// ErrAccountNotFound covers unknown accounts.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotAccountOwner covers accounts that exist but do not belong to
	// the caller.
	ErrNotAccountOwner = errors.New("account not owned by caller")

	// ErrAccountNotActive covers FROZEN and CLOSED accounts on either side
	// of a transfer.
	ErrAccountNotActive = errors.New("account is not active")

	// ErrUnknownCurrency rejects accounts carrying a currency outside the
	// supported set (INR, USD, EUR).
	ErrUnknownCurrency = errors.New("unsupported currency")

	// ErrCurrencyMismatch rejects cross-currency transfers; conversion is
	// out of scope.
	ErrCurrencyMismatch = errors.New("source and destination currencies differ")

	// ErrInvalidAmount rejects zero and negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSameAccount rejects transfers where source and destination match.
	ErrSameAccount = errors.New("source and destination are the same account")

	// ErrMissingIdempotencyKey rejects transfer requests without a key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	// ErrInsufficientFunds is raised under the account lock, on a fresh
	// balance read.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidStateTransition is returned for any edge outside the
	// transaction state machine.
	ErrInvalidStateTransition = errors.New("invalid transaction state transition")

	// ErrDuplicateKey means the store already holds a transaction for the
	// idempotency key.
	ErrDuplicateKey = errors.New("idempotency key already used")

	// ErrDuplicateTransaction means ledger entries already reference the
	// transaction; a posting is never written twice.
	ErrDuplicateTransaction = errors.New("ledger entries already exist for transaction")

	// ErrTransactionNotFound covers unknown transaction ids and keys.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStoreConflict is a transient commit conflict; the coordinator
	// retries it a bounded number of times.
	ErrStoreConflict = errors.New("storage conflict")

	// ErrStoreUnavailable is surfaced to callers as a retryable failure
	// after internal retries are exhausted. The atomic commit guarantees
	// no partial write happened, so retrying under the same key is safe.
	ErrStoreUnavailable = errors.New("storage unavailable")
)

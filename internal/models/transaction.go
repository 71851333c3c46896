package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a transfer attempt.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusReversed  TransactionStatus = "REVERSED"
)

// validTransitions is the full state machine. FAILED and REVERSED are
// terminal; a new transaction must be issued to retry a transfer.
var validTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusReversed},
}

// FailureReason tags why a transfer attempt ended FAILED, so the outcome can
// be replayed for duplicate requests without string matching.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
)

// Transaction represents one transfer attempt. It tracks lifecycle state
// independently of the ledger entries it produces; entries reference the
// transaction by id, never the other way around.
type Transaction struct {
	ID                   string            `json:"id"`
	SourceAccountID      string            `json:"source_account_id"`
	DestinationAccountID string            `json:"destination_account_id"`
	Amount               decimal.Decimal   `json:"amount"`
	IdempotencyKey       string            `json:"idempotency_key"`
	Status               TransactionStatus `json:"status"`
	FailureReason        FailureReason     `json:"failure_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`

	// Replayed is set when this result was served from a prior request
	// carrying the same idempotency key. Never persisted.
	Replayed bool `json:"-"`
}

// NewTransaction creates a PENDING transfer attempt.
func NewTransaction(source, destination string, amount decimal.Decimal, idempotencyKey string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:                   uuid.New().String(),
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		IdempotencyKey:       idempotencyKey,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// CanTransitionTo reports whether moving to next is a legal edge of the
// state machine.
func (t *Transaction) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range validTransitions[t.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the transaction to next, or returns
// ErrInvalidStateTransition if the edge is not in the state machine.
func (t *Transaction) TransitionTo(next TransactionStatus) error {
	if !t.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

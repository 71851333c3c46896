// Package transfer orchestrates money movement: idempotency, validation,
// ordered account locking, the fresh funds check and the atomic double-entry
// commit all live here. The coordinator is the only component that writes
// transactions and ledger entries.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohitc/banking-ledger/internal/idempotency"
	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/ledger"
	"github.com/mohitc/banking-ledger/internal/models"
	"github.com/mohitc/banking-ledger/internal/models/events"
)

const (
	defaultHistoryLimit = 50
	commitAttempts      = 3
	commitBackoff       = 50 * time.Millisecond

	// TopicCompleted and TopicReversed are the default event topics;
	// deployments override them through the publisher configuration.
	TopicCompleted = "transaction_completed"
	TopicReversed  = "transaction_reversed"
)

// Coordinator runs transfer attempts end to end and serves the read side
// (balance, history, ledger entries) with ownership checks.
type Coordinator struct {
	store     interfaces.TransferStore
	accounts  interfaces.AccountDirectory
	publisher interfaces.EventPublisher
	guard     *idempotency.Guard
	balances  *ledger.Calculator
	locks     *accountLocks
	log       *slog.Logger
}

func NewCoordinator(store interfaces.TransferStore, accounts interfaces.AccountDirectory, publisher interfaces.EventPublisher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		accounts:  accounts,
		publisher: publisher,
		guard:     idempotency.NewGuard(),
		balances:  ledger.NewCalculator(store),
		locks:     newAccountLocks(),
		log:       logger,
	}
}

// CreateTransfer executes one transfer attempt. Calling it repeatedly with
// the same idempotency key is safe: the first attempt's outcome is returned
// to every duplicate without re-posting ledger entries.
//
// A key is permanently bound to a transaction once a row exists for it,
// COMPLETED or FAILED. Attempts rejected before any row was created
// (validation, authorization) release the key, so a corrected retry under
// the same key is allowed.
func (c *Coordinator) CreateTransfer(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	if req.IdempotencyKey == "" {
		return nil, models.ErrMissingIdempotencyKey
	}

	fresh, prior, err := c.guard.Reserve(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return c.replay(prior)
	}

	// A previous process may have resolved this key before a restart.
	if existing, err := c.store.TransactionByKey(ctx, req.IdempotencyKey); err == nil {
		out := idempotency.Outcome{Tx: existing, Err: errForReason(existing.FailureReason)}
		c.guard.Resolve(req.IdempotencyKey, out)
		return c.replay(out)
	} else if !errors.Is(err, models.ErrTransactionNotFound) {
		c.guard.Release(req.IdempotencyKey)
		return nil, err
	}

	tx, err := c.execute(ctx, req)
	if tx == nil {
		// Nothing durable exists for this key; let it be retried.
		c.guard.Release(req.IdempotencyKey)
		return nil, err
	}
	c.guard.Resolve(req.IdempotencyKey, idempotency.Outcome{Tx: tx, Err: err})

	if err == nil {
		c.log.Info("transfer completed",
			"transaction_id", tx.ID,
			"source", tx.SourceAccountID,
			"destination", tx.DestinationAccountID,
			"amount", tx.Amount.String())
		c.publish(TopicCompleted, events.TransactionCompleted{
			TransactionID:      tx.ID,
			SourceAccount:      tx.SourceAccountID,
			DestinationAccount: tx.DestinationAccountID,
			Amount:             tx.Amount,
			OccurredAt:         tx.UpdatedAt,
		})
	}
	return tx, err
}

// replay returns a copy of a prior outcome, marked as served from the
// idempotency guard. The copy keeps concurrent callers from sharing one
// mutable transaction value.
func (c *Coordinator) replay(out idempotency.Outcome) (*models.Transaction, error) {
	if out.Tx == nil {
		return nil, out.Err
	}
	cp := *out.Tx
	cp.Replayed = true
	c.log.Info("idempotency hit, replaying prior outcome",
		"transaction_id", cp.ID, "status", cp.Status)
	return &cp, out.Err
}

// execute runs validation, locking, the funds check and the atomic commit.
// It returns a nil transaction when the attempt had no durable effect, and
// a non-nil one (COMPLETED or FAILED) when a row exists for the key.
func (c *Coordinator) execute(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	if err := c.validate(ctx, req); err != nil {
		return nil, err
	}

	unlock := c.locks.lockPair(req.SourceAccountID, req.DestinationAccountID)
	defer unlock()

	// The balance must be read under the lock: a read taken before it
	// could race a concurrent debit and admit an overdraft.
	balance, err := c.balances.BalanceOf(ctx, req.SourceAccountID)
	if err != nil {
		return nil, err
	}

	tx := models.NewTransaction(req.SourceAccountID, req.DestinationAccountID, req.Amount, req.IdempotencyKey)

	if balance.LessThan(req.Amount) {
		c.recordFailure(ctx, tx, models.ReasonInsufficientFunds)
		return tx, fmt.Errorf("%w: balance %s, requested %s",
			models.ErrInsufficientFunds, balance, req.Amount)
	}

	debit, credit := models.NewEntryPair(tx)
	if err := c.commitWithRetry(ctx, func() error {
		return c.store.CommitTransfer(ctx, tx, debit, credit)
	}); err != nil {
		// The commit failed wholesale, so nothing was written; the key
		// stays free for a retry. No FAILED audit row is attempted
		// against a store that just refused writes.
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if err := tx.TransitionTo(models.StatusCompleted); err != nil {
		return nil, err
	}
	return tx, nil
}

// validate applies the named rules in fixed order: existence, ownership,
// status, currency, amount, self-transfer. Each failure maps to exactly one
// domain error.
func (c *Coordinator) validate(ctx context.Context, req TransferRequest) error {
	source, err := c.accounts.AccountByID(ctx, req.SourceAccountID)
	if err != nil {
		return fmt.Errorf("source %s: %w", req.SourceAccountID, err)
	}
	destination, err := c.accounts.AccountByID(ctx, req.DestinationAccountID)
	if err != nil {
		return fmt.Errorf("destination %s: %w", req.DestinationAccountID, err)
	}

	owned, err := c.accounts.IsOwnedBy(ctx, req.SourceAccountID, req.CallerID)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("%w: %s", models.ErrNotAccountOwner, req.SourceAccountID)
	}

	if source.Status != models.AccountActive {
		return fmt.Errorf("%w: source is %s", models.ErrAccountNotActive, source.Status)
	}
	if destination.Status != models.AccountActive {
		return fmt.Errorf("%w: destination is %s", models.ErrAccountNotActive, destination.Status)
	}

	if !models.ValidCurrency(source.Currency) {
		return fmt.Errorf("%w: source holds %s", models.ErrUnknownCurrency, source.Currency)
	}
	if !models.ValidCurrency(destination.Currency) {
		return fmt.Errorf("%w: destination holds %s", models.ErrUnknownCurrency, destination.Currency)
	}

	if source.Currency != destination.Currency {
		return fmt.Errorf("%w: %s vs %s", models.ErrCurrencyMismatch, source.Currency, destination.Currency)
	}

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: got %s", models.ErrInvalidAmount, req.Amount)
	}

	if req.SourceAccountID == req.DestinationAccountID {
		return models.ErrSameAccount
	}
	return nil
}

// commitWithRetry retries transient storage conflicts a bounded number of
// times before surfacing the failure.
func (c *Coordinator) commitWithRetry(ctx context.Context, commit func() error) error {
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err = commit()
		if err == nil || !errors.Is(err, models.ErrStoreConflict) {
			return err
		}
		c.log.Warn("commit conflict, retrying", "attempt", attempt, "error", err)
		select {
		case <-time.After(commitBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// recordFailure marks the transaction FAILED and persists it for audit.
// The row binds the idempotency key, so duplicates of this request replay
// the same failed outcome.
func (c *Coordinator) recordFailure(ctx context.Context, tx *models.Transaction, reason models.FailureReason) {
	tx.FailureReason = reason
	if err := tx.TransitionTo(models.StatusFailed); err != nil {
		c.log.Error("illegal failure transition", "transaction_id", tx.ID, "error", err)
		return
	}
	if err := c.store.SaveTransaction(ctx, tx); err != nil {
		c.log.Error("could not record failed transfer", "transaction_id", tx.ID, "error", err)
	}
}

// Reverse undoes a COMPLETED transfer by appending the compensating entry
// pair and marking the transaction REVERSED, as one atomic unit. This is an
// administrative path; the original entries are never touched.
func (c *Coordinator) Reverse(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := c.store.TransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lockPair(tx.SourceAccountID, tx.DestinationAccountID)
	defer unlock()

	// Re-read under the lock: a concurrent reversal may have won.
	tx, err = c.store.TransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.CanTransitionTo(models.StatusReversed) {
		return nil, fmt.Errorf("%w: transaction %s is %s", models.ErrInvalidStateTransition, tx.ID, tx.Status)
	}

	credit, debit := models.NewReversalPair(tx)
	if err := c.commitWithRetry(ctx, func() error {
		return c.store.CommitReversal(ctx, tx, credit, debit)
	}); err != nil {
		if errors.Is(err, models.ErrInvalidStateTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if err := tx.TransitionTo(models.StatusReversed); err != nil {
		return nil, err
	}

	c.log.Info("transfer reversed", "transaction_id", tx.ID)
	c.publish(TopicReversed, events.TransactionReversed{
		TransactionID:      tx.ID,
		SourceAccount:      tx.SourceAccountID,
		DestinationAccount: tx.DestinationAccountID,
		Amount:             tx.Amount,
		OccurredAt:         tx.UpdatedAt,
	})
	return tx, nil
}

// Balance returns the derived balance of an account the caller owns.
func (c *Coordinator) Balance(ctx context.Context, accountID, callerID string) (decimal.Decimal, error) {
	if err := c.authorizeRead(ctx, accountID, callerID); err != nil {
		return decimal.Zero, err
	}
	return c.balances.BalanceOf(ctx, accountID)
}

// History returns one page of the caller's transactions across all accounts
// they own, newest first.
func (c *Coordinator) History(ctx context.Context, callerID string, filter interfaces.HistoryFilter) (*HistoryPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	accounts, err := c.accounts.AccountsByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}

	txs, total, err := c.store.TransactionsByAccounts(ctx, ids, filter)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Transactions: txs,
		PageMeta:     newPageMeta(len(txs), total, filter.Limit, filter.Page),
	}, nil
}

// Entries returns one page of an account's ledger for audit display. With
// WithRunningBalance set, every entry carries the balance the account held
// after that entry, consistent with the requested ordering.
func (c *Coordinator) Entries(ctx context.Context, accountID, callerID string, q EntriesQuery) (*LedgerPage, error) {
	if err := c.authorizeRead(ctx, accountID, callerID); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Order != interfaces.OldestFirst {
		q.Order = interfaces.NewestFirst
	}

	if !q.WithRunningBalance {
		entries, total, err := c.store.EntriesPage(ctx, accountID, q.Limit, q.Page, q.Order)
		if err != nil {
			return nil, err
		}
		views := make([]LedgerEntryView, 0, len(entries))
		for _, entry := range entries {
			views = append(views, LedgerEntryView{LedgerEntry: entry})
		}
		return &LedgerPage{
			AccountID: accountID,
			Entries:   views,
			PageMeta:  newPageMeta(len(views), total, q.Limit, q.Page),
		}, nil
	}

	// Running balances need the full history: annotate oldest-first, then
	// apply the presentation order and slice the page.
	all, err := c.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	annotated := ledger.AnnotateRunning(all)
	if q.Order == interfaces.NewestFirst {
		for i, j := 0, len(annotated)-1; i < j; i, j = i+1, j-1 {
			annotated[i], annotated[j] = annotated[j], annotated[i]
		}
	}

	total := len(annotated)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	views := make([]LedgerEntryView, 0, end-start)
	for _, a := range annotated[start:end] {
		balance := a.Balance
		views = append(views, LedgerEntryView{LedgerEntry: a.Entry, RunningBalance: &balance})
	}
	return &LedgerPage{
		AccountID: accountID,
		Entries:   views,
		PageMeta:  newPageMeta(len(views), total, q.Limit, q.Page),
	}, nil
}

// authorizeRead folds "unknown account" and "not the caller's account" into
// one not-found answer, so callers cannot enumerate accounts they do not own.
func (c *Coordinator) authorizeRead(ctx context.Context, accountID, callerID string) error {
	if _, err := c.accounts.AccountByID(ctx, accountID); err != nil {
		return err
	}
	owned, err := c.accounts.IsOwnedBy(ctx, accountID, callerID)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	return nil
}

// publish sends an event best-effort: a broker outage never fails a transfer
// that has already committed.
func (c *Coordinator) publish(topic string, event any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(topic, event); err != nil {
		c.log.Error("event publish failed", "topic", topic, "error", err)
	}
}

// errForReason maps a persisted failure reason back to the domain error the
// original caller saw, so replays surface the same outcome.
func errForReason(reason models.FailureReason) error {
	switch reason {
	case models.ReasonInsufficientFunds:
		return models.ErrInsufficientFunds
	default:
		return nil
	}
}

package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
	"github.com/mohitc/banking-ledger/internal/transfer"
)

type transferRequest struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

func (s *Server) createTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid request body",
		})
	}

	tx, err := s.coordinator.CreateTransfer(c.Context(), transfer.TransferRequest{
		SourceAccountID:      req.FromAccount,
		DestinationAccountID: req.ToAccount,
		Amount:               req.Amount,
		IdempotencyKey:       c.Get("Idempotency-Key"),
		CallerID:             callerID(c),
	})
	if err != nil {
		if tx != nil {
			// A FAILED transaction exists for audit; include it.
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"message":     err.Error(),
				"transaction": tx,
			})
		}
		return errorResponse(c, err)
	}

	status := fiber.StatusCreated
	if tx.Replayed {
		c.Set("X-Idempotency-Hit", "true")
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"transaction": tx})
}

func (s *Server) reverseTransfer(c *fiber.Ctx) error {
	tx, err := s.coordinator.Reverse(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transaction": tx})
}

func (s *Server) getBalance(c *fiber.Ctx) error {
	accountID := c.Params("id")
	balance, err := s.coordinator.Balance(c.Context(), accountID, callerID(c))
	if err != nil {
		return errorResponse(c, err)
	}

	response := struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}{
		AccountID: accountID,
		Balance:   balance,
	}
	return c.Status(fiber.StatusOK).JSON(response)
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	status, ok := parseStatusFilter(c.Query("status"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "unknown status filter: " + c.Query("status"),
		})
	}

	page, err := s.coordinator.History(c.Context(), callerID(c), interfaces.HistoryFilter{
		Status: status,
		Limit:  c.QueryInt("limit", 50),
		Page:   c.QueryInt("page", 1),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(page)
}

func (s *Server) getLedgerEntries(c *fiber.Ctx) error {
	order := interfaces.NewestFirst
	if c.Query("order") == "asc" {
		order = interfaces.OldestFirst
	}

	page, err := s.coordinator.Entries(c.Context(), c.Params("accountId"), callerID(c), transfer.EntriesQuery{
		Limit:              c.QueryInt("limit", 50),
		Page:               c.QueryInt("page", 1),
		Order:              order,
		WithRunningBalance: c.QueryBool("running_balance", false),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(page)
}

// parseStatusFilter accepts the known transaction statuses or the empty
// string (no filter). A typo'd filter is a bad request, not an empty page.
func parseStatusFilter(raw string) (models.TransactionStatus, bool) {
	switch status := models.TransactionStatus(raw); status {
	case "", models.StatusPending, models.StatusCompleted, models.StatusFailed, models.StatusReversed:
		return status, true
	}
	return "", false
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"message": err.Error()})
}

// statusForError maps the domain error taxonomy to HTTP statuses. Unknown
// and unowned accounts answer alike so callers cannot enumerate accounts
// they do not own.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSameAccount),
		errors.Is(err, models.ErrCurrencyMismatch),
		errors.Is(err, models.ErrUnknownCurrency),
		errors.Is(err, models.ErrMissingIdempotencyKey):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrNotAccountOwner),
		errors.Is(err, models.ErrTransactionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrAccountNotActive):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrDuplicateKey),
		errors.Is(err, models.ErrDuplicateTransaction),
		errors.Is(err, models.ErrStoreConflict):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

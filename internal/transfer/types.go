package transfer

import (
	"github.com/shopspring/decimal"

	"github.com/mohitc/banking-ledger/internal/interfaces"
	"github.com/mohitc/banking-ledger/internal/models"
)

// TransferRequest carries one transfer attempt into the coordinator.
type TransferRequest struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	IdempotencyKey       string
	CallerID             string
}

// EntriesQuery pages an account's ledger entries for audit display.
type EntriesQuery struct {
	Limit              int
	Page               int
	Order              interfaces.SortOrder
	WithRunningBalance bool
}

// PageMeta mirrors the pagination metadata of the history and ledger reads.
type PageMeta struct {
	Count   int  `json:"count"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	HasMore bool `json:"has_more"`
}

func newPageMeta(count, total, limit, page int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{
		Count:   count,
		Total:   total,
		Page:    page,
		Pages:   pages,
		HasMore: page < pages,
	}
}

// LedgerEntryView is a ledger entry as served to callers, optionally
// annotated with the running balance after the entry.
type LedgerEntryView struct {
	models.LedgerEntry
	RunningBalance *decimal.Decimal `json:"running_balance,omitempty"`
}

// LedgerPage is one page of an account's ledger entries.
type LedgerPage struct {
	AccountID string            `json:"account_id"`
	Entries   []LedgerEntryView `json:"entries"`
	PageMeta
}

// HistoryPage is one page of a caller's transaction history.
type HistoryPage struct {
	Transactions []models.Transaction `json:"transactions"`
	PageMeta
}

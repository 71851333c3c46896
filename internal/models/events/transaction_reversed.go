package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionReversed struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

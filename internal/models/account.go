package models

import "time"

// AccountStatus is the lifecycle state of an account as reported by the
// account-management service.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// supportedCurrencies is the set the ledger accepts. An account carrying
// anything else is a configuration fault and cannot take part in transfers.
var supportedCurrencies = map[string]bool{
	"INR": true,
	"USD": true,
	"EUR": true,
}

// ValidCurrency reports whether code is a supported currency.
func ValidCurrency(code string) bool {
	return supportedCurrencies[code]
}

// Account is owned by the account-management service. The ledger core only
// reads it: status and currency gate transfers, OwnerID gates reads.
type Account struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	Currency  string        `json:"currency"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

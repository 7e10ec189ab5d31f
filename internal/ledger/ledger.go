// Package ledger defines the Seeds balance surface the engine consumes.
// The platform's payment system credits balances (Stripe conversion stays
// outside this service); the engine debits at trade time and credits at
// settlement.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when a conditional debit would take a
// balance negative. The balance is left untouched.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// Ledger is the balance surface. Debit is conditional and atomic: it fails
// with ErrInsufficientFunds rather than overdrawing, independent of any
// market pool lock.
type Ledger interface {
	// GetBalance returns the user's Seeds balance (zero for unknown users).
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)

	// Credit adds amount to the user's balance.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error

	// Debit subtracts amount from the user's balance, failing with
	// ErrInsufficientFunds if the balance is smaller than amount.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) error
}

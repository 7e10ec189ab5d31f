// Package store defines the persistence interface for the decision engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Trade execution, resolution, and settlement each apply as one atomic
// unit: either every mutation in the unit commits or none does. A rejected
// trade leaves the balance and position completely untouched.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/ledger"
	"github.com/seedlabs/decision-engine/internal/model"
)

var (
	// ErrNotFound is returned when a decision, pool, or resolution does
	// not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyResolved is returned when a resolution is applied to a
	// decision that is no longer tracking.
	ErrAlreadyResolved = errors.New("store: decision already resolved")

	// ErrAlreadySettled is the idempotency guard on settlement; callers
	// swallow it.
	ErrAlreadySettled = errors.New("store: settlement already applied")

	// ErrBidTooLow is returned when a featured bid does not beat the
	// current highest bid.
	ErrBidTooLow = errors.New("store: bid does not exceed current bid")
)

// ApplyTradeParams carries one buy as a single atomic unit: the conditional
// ledger debit, the pool mutation, the immutable trade record, and the
// position upsert.
type ApplyTradeParams struct {
	Trade model.Trade

	// New absolute pool state, computed by the executor under the
	// decision's lock.
	NewRealSupply decimal.Decimal
	NewYesShares  decimal.Decimal
	NewNoShares   decimal.Decimal
	NewStaked     decimal.Decimal
	NewRealPrice  decimal.Decimal
}

// Payout is one settlement credit.
type Payout struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Store embeds the Seeds ledger
// so debits compose into the same transaction as pool mutations.
type Store interface {
	ledger.Ledger

	// --- Decisions ---

	// CreateDecision persists a new decision together with its
	// bootstrapped market pool.
	CreateDecision(ctx context.Context, d *model.Decision, pool *model.MarketPool) error

	// GetDecision retrieves a decision by ID.
	GetDecision(ctx context.Context, id string) (*model.Decision, error)

	// ListDecisions returns all decisions.
	ListDecisions(ctx context.Context) ([]model.Decision, error)

	// ListDueDecisions returns tracking decisions whose resolve-by time
	// has passed as of the given instant.
	ListDueDecisions(ctx context.Context, asOf time.Time) ([]model.Decision, error)

	// ListUnsettledDecisions returns resolved decisions whose pools have
	// not been settled yet.
	ListUnsettledDecisions(ctx context.Context) ([]model.Decision, error)

	// --- Market pool ---

	// GetPool retrieves the market pool for a decision.
	GetPool(ctx context.Context, decisionID string) (*model.MarketPool, error)

	// --- Atomic units ---

	// ApplyTrade atomically debits the buyer, updates the pool, appends
	// the trade, and upserts the position. Returns
	// ledger.ErrInsufficientFunds without any mutation when the balance
	// is short.
	ApplyTrade(ctx context.Context, params ApplyTradeParams) error

	// ApplyResolution atomically records the resolution and flips the
	// decision to resolved. Returns ErrAlreadyResolved when the decision
	// is not tracking.
	ApplyResolution(ctx context.Context, res *model.Resolution) error

	// ApplySettlement atomically credits payouts, zeroes positions, and
	// marks the pool settled. Returns ErrAlreadySettled on re-runs.
	ApplySettlement(ctx context.Context, decisionID string, payouts []Payout) error

	// PlaceFeaturedBid atomically outbids the current featured bid:
	// debits the new bidder, refunds the previous one, records the bid.
	PlaceFeaturedBid(ctx context.Context, decisionID, userID string, amount decimal.Decimal) error

	// --- Price history ---

	// ListTrades returns a decision's trades in commit order.
	ListTrades(ctx context.Context, decisionID string) ([]model.Trade, error)

	// --- Positions ---

	// ListPositionsByDecision returns all open positions on a decision.
	ListPositionsByDecision(ctx context.Context, decisionID string) ([]model.Position, error)

	// ListPositionsByUser returns all of a user's positions.
	ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error)

	// GetUserStakes returns the user's cost basis aggregated per decision
	// and per decision category, for stake-limit checks.
	GetUserStakes(ctx context.Context, userID string) (byDecision, byCategory map[string]decimal.Decimal, err error)

	// --- Indicator data ---

	// InsertMeasurement appends an immutable indicator measurement.
	InsertMeasurement(ctx context.Context, m *model.IndicatorData) error

	// GetMeasurements returns a decision's measurements for one
	// indicator, oldest first.
	GetMeasurements(ctx context.Context, decisionID, indicatorID string) ([]model.IndicatorData, error)

	// --- Resolutions ---

	// GetResolution returns the resolution for a decision, if any.
	GetResolution(ctx context.Context, decisionID string) (*model.Resolution, error)
}

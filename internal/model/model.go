// Package model defines the core domain types shared across the decision
// engine. All Seed amounts, share quantities and prices use
// shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision lifecycle states.
const (
	StatusAnnounced = "announced"
	StatusTracking  = "tracking"
	StatusResolved  = "resolved"
)

// Position sides.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// Resolution verdicts.
const (
	IssueWorks   = "works"
	IssuePartial = "partial"
	IssueFails   = "fails"
)

// Decision is a tracked real-world event with a binary YES/NO market.
// Once Status is "resolved" the pool is frozen and no trades are accepted.
type Decision struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Category    string     `json:"category" db:"category"`
	Status      string     `json:"status" db:"status"`
	Indicators  []string   `json:"indicators" db:"indicators"`
	InvestStart time.Time  `json:"invest_start" db:"invest_start"`
	InvestEnd   time.Time  `json:"invest_end" db:"invest_end"`
	ResolveBy   time.Time  `json:"resolve_by" db:"resolve_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// TradingOpen reports whether the decision accepts buys at the given time.
// A decision is created "announced" and becomes tradable when its invest
// window opens; resolution closes it for good.
func (d *Decision) TradingOpen(now time.Time) bool {
	if d.Status == StatusResolved {
		return false
	}
	return !now.Before(d.InvestStart) && now.Before(d.InvestEnd)
}

// MarketPool is the per-decision bonding-curve state. GhostSupply is
// non-tradable bootstrap liquidity; RealSupply is cumulative user-purchased
// supply and is monotonically non-decreasing while the market is open.
type MarketPool struct {
	DecisionID  string          `json:"decision_id" db:"decision_id"`
	GhostSupply decimal.Decimal `json:"ghost_supply" db:"ghost_supply"`
	RealSupply  decimal.Decimal `json:"real_supply" db:"real_supply"`
	Slope       decimal.Decimal `json:"slope" db:"slope"`
	YesShares   decimal.Decimal `json:"yes_shares" db:"yes_shares"`
	NoShares    decimal.Decimal `json:"no_shares" db:"no_shares"`
	Staked      decimal.Decimal `json:"staked" db:"staked"` // accumulated real Seeds
	RealPrice   decimal.Decimal `json:"real_price" db:"real_price"`

	// Featured-comment auction. Independent of the curve; shares the
	// Seeds currency unit.
	CurrentBidPrice decimal.Decimal `json:"current_bid_price" db:"current_bid_price"`
	CurrentBidder   string          `json:"current_bidder,omitempty" db:"current_bidder"`

	Settled bool `json:"settled" db:"settled"`
}

// TotalSupply returns ghost + real supply.
func (p *MarketPool) TotalSupply() decimal.Decimal {
	return p.GhostSupply.Add(p.RealSupply)
}

// Position is a user's holding in one decision. Created by a buy, mutated
// only by settlement (paid out or zeroed).
type Position struct {
	UserID     string          `json:"user_id" db:"user_id"`
	DecisionID string          `json:"decision_id" db:"decision_id"`
	Side       string          `json:"side" db:"side"`
	Shares     decimal.Decimal `json:"shares" db:"shares"`
	CostBasis  decimal.Decimal `json:"cost_basis" db:"cost_basis"`
}

// Trade is an immutable record of one executed buy. The ordered sequence of
// trades per decision doubles as the price history for charting.
type Trade struct {
	ID         string          `json:"id" db:"id"`
	DecisionID string          `json:"decision_id" db:"decision_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Side       string          `json:"side" db:"side"`
	SeedAmount decimal.Decimal `json:"seed_amount" db:"seed_amount"`
	Shares     decimal.Decimal `json:"shares" db:"shares"`
	Price      decimal.Decimal `json:"price" db:"price"` // realPrice after commit
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// PricePoint is one entry of the course history exposed for charting.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Indicator is static reference data describing an external measurable
// signal used to adjudicate decisions.
type Indicator struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Source    string          `json:"source"`
	Direction string          `json:"direction"` // "up_good" or "down_good"
	Weight    decimal.Decimal `json:"weight"`
	Cadence   string          `json:"cadence"` // expected update frequency
}

// IndicatorData is one timestamped measurement of an indicator for a
// decision. Immutable once recorded.
type IndicatorData struct {
	DecisionID  string          `json:"decision_id" db:"decision_id"`
	IndicatorID string          `json:"indicator_id" db:"indicator_id"`
	MeasureType string          `json:"measure_type" db:"measure_type"` // baseline|30d|90d|180d|365d
	Value       decimal.Decimal `json:"value" db:"value"`
	MeasuredAt  time.Time       `json:"measured_at" db:"measured_at"`
}

// IndicatorVariation is the per-indicator breakdown recorded on a
// resolution: baseline vs. current, absolute and percent change.
type IndicatorVariation struct {
	IndicatorID  string          `json:"indicator_id"`
	Baseline     decimal.Decimal `json:"baseline"`
	Current      decimal.Decimal `json:"current"`
	MeasureType  string          `json:"measure_type"`
	Variation    decimal.Decimal `json:"variation"`
	VariationPct decimal.Decimal `json:"variation_pct"`
	HasPct       bool            `json:"has_pct"` // false when baseline == 0
	Signal       string          `json:"signal"`  // positive|negative|neutral
}

// Resolution is the terminal artifact of a decision: verdict, confidence,
// and the indicator evidence behind them. Created exactly once, immutable.
type Resolution struct {
	ID         string               `json:"id" db:"id"`
	DecisionID string               `json:"decision_id" db:"decision_id"`
	Issue      string               `json:"issue" db:"issue"`
	Confidence int                  `json:"confidence" db:"confidence"` // 0–100
	Variations []IndicatorVariation `json:"variations" db:"variations"`
	Method     string               `json:"method" db:"method"`
	ResolvedAt time.Time            `json:"resolved_at" db:"resolved_at"`
}

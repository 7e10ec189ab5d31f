// Package limits enforces stake caps on decision markets.
//
// Decisions in one category (housing policy, labor market, ...) tend to
// move together; a user sinking Seeds into every decision of a category
// carries correlated risk. The limiter caps the stake in any single
// decision and the aggregate stake across a category.
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDecisionLimitExceeded is returned when a buy would push the
	// user's stake in one decision beyond the per-decision maximum.
	ErrDecisionLimitExceeded = errors.New("limits: per-decision stake limit exceeded")

	// ErrCategoryLimitExceeded is returned when a buy would push the
	// user's aggregate stake across a category beyond the category maximum.
	ErrCategoryLimitExceeded = errors.New("limits: category stake limit exceeded")
)

// StakeLimiter enforces per-decision and per-category stake caps.
type StakeLimiter struct {
	// MaxPerDecision is the maximum total stake in any single decision.
	MaxPerDecision decimal.Decimal

	// MaxPerCategory is the maximum aggregate stake across all decisions
	// sharing a category.
	MaxPerCategory decimal.Decimal
}

// NewStakeLimiter creates a limiter with the given caps.
func NewStakeLimiter(maxPerDecision, maxPerCategory decimal.Decimal) *StakeLimiter {
	return &StakeLimiter{
		MaxPerDecision: maxPerDecision,
		MaxPerCategory: maxPerCategory,
	}
}

// Check validates whether a buy of seedAmount respects the caps.
//
// Parameters:
//   - decisionID, category: the decision being bought into
//   - seedAmount: stake about to be added
//   - stakeByDecision: decision ID → user's current stake
//   - stakeByCategory: category → user's current aggregate stake
//
// Returns nil when the buy is within limits.
func (l *StakeLimiter) Check(
	decisionID, category string,
	seedAmount decimal.Decimal,
	stakeByDecision map[string]decimal.Decimal,
	stakeByCategory map[string]decimal.Decimal,
) error {
	newDecisionStake := stakeByDecision[decisionID].Add(seedAmount)
	if newDecisionStake.GreaterThan(l.MaxPerDecision) {
		return ErrDecisionLimitExceeded
	}

	if category != "" {
		newCategoryStake := stakeByCategory[category].Add(seedAmount)
		if newCategoryStake.GreaterThan(l.MaxPerCategory) {
			return ErrCategoryLimitExceeded
		}
	}

	return nil
}

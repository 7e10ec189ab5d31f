// Package settlement pays out a resolved decision's positions.
//
// Payout formula: winners get their cost basis back plus a pro-rata share
// (by winning-side shares) of the losing side's stake. A "partial" verdict
// refunds both sides their cost basis. Either way the credits sum exactly
// to the pool's accumulated stake: Seeds are conserved, never minted or
// burned at settlement.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/metrics"
	"github.com/seedlabs/decision-engine/internal/model"
	"github.com/seedlabs/decision-engine/internal/store"
)

// ErrNotResolved is returned when settlement is requested for a decision
// that has no resolution yet.
var ErrNotResolved = errors.New("settlement: decision not resolved")

// winningSide maps a verdict to the side it pays. "partial" pays neither:
// both sides are refunded.
func winningSide(issue string) (string, bool) {
	switch issue {
	case model.IssueWorks:
		return model.SideYes, true
	case model.IssueFails:
		return model.SideNo, true
	default:
		return "", false
	}
}

// ComputePayouts derives the settlement credits for a decision from its
// verdict and open positions. Pure function; nothing is mutated.
func ComputePayouts(issue string, positions []model.Position) []store.Payout {
	winner, hasWinner := winningSide(issue)

	if !hasWinner {
		// Partial verdict: the market is a push, refund cost basis.
		return refundAll(positions)
	}

	var winningShares, losingStake decimal.Decimal
	for _, p := range positions {
		if p.Side == winner {
			winningShares = winningShares.Add(p.Shares)
		} else {
			losingStake = losingStake.Add(p.CostBasis)
		}
	}

	// Nobody backed the winning side: no counterparty exists, refund.
	if winningShares.LessThanOrEqual(decimal.Zero) {
		return refundAll(positions)
	}

	var payouts []store.Payout
	remainder := losingStake
	for _, p := range positions {
		if p.Side != winner {
			continue
		}
		bonus := losingStake.Mul(p.Shares).Div(winningShares).RoundDown(8)
		remainder = remainder.Sub(bonus)
		payouts = append(payouts, store.Payout{
			UserID: p.UserID,
			Amount: p.CostBasis.Add(bonus),
		})
	}

	// Rounding dust goes to the last winner so the pool drains exactly.
	if len(payouts) > 0 && remainder.IsPositive() {
		payouts[len(payouts)-1].Amount = payouts[len(payouts)-1].Amount.Add(remainder)
	}

	return payouts
}

func refundAll(positions []model.Position) []store.Payout {
	var payouts []store.Payout
	for _, p := range positions {
		if p.CostBasis.IsPositive() {
			payouts = append(payouts, store.Payout{UserID: p.UserID, Amount: p.CostBasis})
		}
	}
	return payouts
}

// Settler applies settlements through the store.
type Settler struct {
	store store.Store
	locks *store.DecisionLocks
}

// NewSettler creates a settler.
func NewSettler(st store.Store, locks *store.DecisionLocks) *Settler {
	return &Settler{store: st, locks: locks}
}

// Settle pays out one resolved decision. Idempotent: a decision whose pool
// is already settled is a no-op, not a double payout.
func (s *Settler) Settle(ctx context.Context, decisionID string) error {
	s.locks.Lock(decisionID)
	defer s.locks.Unlock(decisionID)

	res, err := s.store.GetResolution(ctx, decisionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotResolved
		}
		return fmt.Errorf("settle %s: %w", decisionID, err)
	}

	positions, err := s.store.ListPositionsByDecision(ctx, decisionID)
	if err != nil {
		return fmt.Errorf("settle %s: %w", decisionID, err)
	}

	payouts := ComputePayouts(res.Issue, positions)

	err = s.store.ApplySettlement(ctx, decisionID, payouts)
	if errors.Is(err, store.ErrAlreadySettled) {
		// Idempotency guard: swallowed.
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle %s: %w", decisionID, err)
	}

	total := decimal.Zero
	for _, p := range payouts {
		total = total.Add(p.Amount)
	}
	metrics.Settlements.Inc()
	payoutTotal, _ := total.Float64()
	metrics.SettlementPayouts.Add(payoutTotal)
	slog.Info("settlement applied",
		"decision", decisionID,
		"issue", res.Issue,
		"payouts", len(payouts),
		"total", total.String(),
	)
	return nil
}

package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seedlabs/decision-engine/internal/metrics"
	"github.com/seedlabs/decision-engine/internal/model"
	"github.com/seedlabs/decision-engine/internal/resolution"
	"github.com/seedlabs/decision-engine/internal/settlement"
	"github.com/seedlabs/decision-engine/internal/store"
)

// Sweeper drives the resolution and settlement sweeps. Resolution walks
// tracking decisions past their resolve-by time and evaluates them against
// recorded indicator data; settlement walks resolved decisions and pays out
// their pools. Both sweeps take the per-decision lock so they never overlap
// an in-flight trade on the same market.
type Sweeper struct {
	store   store.Store
	engine  *resolution.Engine
	settler *settlement.Settler
	locks   *store.DecisionLocks
}

func NewSweeper(st store.Store, engine *resolution.Engine, settler *settlement.Settler, locks *store.DecisionLocks) *Sweeper {
	return &Sweeper{
		store:   st,
		engine:  engine,
		settler: settler,
		locks:   locks,
	}
}

// SweepResolutions resolves every tracking decision whose resolve-by time
// has passed. Decisions with insufficient data are deferred to the next
// sweep; per-decision failures are logged and do not abort the sweep.
func (s *Sweeper) SweepResolutions(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.store.ListDueDecisions(ctx, now)
	if err != nil {
		slog.Error("resolution sweep: list due decisions", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	slog.Info("resolution sweep started", "due", len(due))

	resolved := 0
	for i := range due {
		d := &due[i]
		if err := s.ResolveDecision(ctx, d.ID); err != nil {
			if errors.Is(err, resolution.ErrDeferred) {
				metrics.ResolutionsDeferred.Inc()
				slog.Info("resolution deferred", "decision_id", d.ID, "reason", err)
				continue
			}
			slog.Error("resolution sweep: resolve decision", "decision_id", d.ID, "error", err)
			continue
		}
		resolved++
	}
	slog.Info("resolution sweep finished", "due", len(due), "resolved", resolved)
}

// ResolveDecision evaluates and records the resolution for one decision.
// It is also the path behind the manual resolve endpoint. Returns
// resolution.ErrDeferred when the indicator data cannot support a verdict
// yet, and store.ErrAlreadyResolved when another run got there first.
func (s *Sweeper) ResolveDecision(ctx context.Context, decisionID string) error {
	s.locks.Lock(decisionID)
	defer s.locks.Unlock(decisionID)

	d, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		return fmt.Errorf("get decision: %w", err)
	}
	if d.Status == model.StatusResolved {
		return store.ErrAlreadyResolved
	}

	measurements := make(map[string][]model.IndicatorData, len(d.Indicators))
	for _, indicatorID := range d.Indicators {
		series, err := s.store.GetMeasurements(ctx, decisionID, indicatorID)
		if err != nil {
			return fmt.Errorf("get measurements for %s: %w", indicatorID, err)
		}
		measurements[indicatorID] = series
	}

	res, err := s.engine.Evaluate(d, measurements, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := s.store.ApplyResolution(ctx, res); err != nil {
		return fmt.Errorf("apply resolution: %w", err)
	}

	metrics.Resolutions.WithLabelValues(res.Issue).Inc()
	metrics.ActiveDecisions.Dec()
	slog.Info("decision resolved",
		"decision_id", decisionID,
		"issue", res.Issue,
		"confidence", res.Confidence,
	)
	return nil
}

// SweepSettlements settles every resolved decision whose pool has not been
// paid out. Settlement is idempotent, so racing a concurrent manual settle
// is harmless.
func (s *Sweeper) SweepSettlements(ctx context.Context) {
	due, err := s.store.ListUnsettledDecisions(ctx)
	if err != nil {
		slog.Error("settlement sweep: list unsettled decisions", "error", err)
		return
	}
	for i := range due {
		if err := s.settler.Settle(ctx, due[i].ID); err != nil {
			slog.Error("settlement sweep: settle decision", "decision_id", due[i].ID, "error", err)
		}
	}
}

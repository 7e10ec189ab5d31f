// Package resolution decides the final outcome of a decision from its
// accumulated indicator measurements.
//
// For each indicator the engine compares the baseline measurement against
// the freshest later one, converts the change into a direction-adjusted
// percent variation, and accumulates a weighted score. Configured
// thresholds map the score to a verdict; confidence derives from the
// magnitude and sign consistency of the variations.
//
// Resolution is deferred — never attempted on incomplete data. An
// individual indicator with contradictory data (missing baseline) is
// excluded from the score rather than aborting the whole resolution.
package resolution

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/seedlabs/decision-engine/internal/indicator"
	"github.com/seedlabs/decision-engine/internal/model"
)

// Signal classifications for one indicator's contribution.
const (
	SignalPositive = "positive"
	SignalNegative = "negative"
	SignalNeutral  = "neutral"
)

// ErrDeferred is returned when no indicator has sufficient data yet. It is
// a valid outcome, not a failure: the scheduled sweep retries later.
var ErrDeferred = errors.New("resolution: deferred, insufficient indicator data")

// Engine computes resolutions. It is stateless — measurements are passed
// as arguments, persistence belongs to the caller.
type Engine struct {
	rules   Rules
	catalog *indicator.Catalog
}

// NewEngine creates a resolution engine with the given rules and indicator
// catalog.
func NewEngine(rules Rules, catalog *indicator.Catalog) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules, catalog: catalog}, nil
}

// Rules returns the engine's configured rules.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Evaluate computes the resolution for a decision from its measurements,
// keyed by indicator ID. Returns ErrDeferred when fewer than the configured
// minimum of indicators have both a baseline and a later measurement.
func (e *Engine) Evaluate(d *model.Decision, measurements map[string][]model.IndicatorData, now time.Time) (*model.Resolution, error) {
	var (
		variations []model.IndicatorVariation
		score      float64
		sumAbsPct  float64
		positives  int
		negatives  int
		neutrals   int
	)

	for _, id := range d.Indicators {
		ind, err := e.catalog.Get(id)
		if err != nil {
			// Unknown indicators are excluded, not fatal.
			continue
		}

		baseline, current, ok := pickPair(measurements[id])
		if !ok {
			continue
		}

		v := model.IndicatorVariation{
			IndicatorID: id,
			Baseline:    baseline.Value,
			Current:     current.Value,
			MeasureType: current.MeasureType,
			Variation:   current.Value.Sub(baseline.Value),
		}
		if !baseline.Value.IsZero() {
			v.VariationPct = v.Variation.Div(baseline.Value).Round(6)
			v.HasPct = true
		}

		signedPct := e.directedPct(ind, v)
		switch {
		case math.Abs(signedPct) < e.rules.NeutralBandPct:
			v.Signal = SignalNeutral
			neutrals++
		case signedPct > 0:
			v.Signal = SignalPositive
			positives++
		default:
			v.Signal = SignalNegative
			negatives++
		}

		weight := ind.Weight.InexactFloat64()
		score += weight * signedPct
		sumAbsPct += math.Abs(signedPct)
		variations = append(variations, v)
	}

	if len(variations) < e.rules.MinIndicators {
		return nil, ErrDeferred
	}

	issue := model.IssuePartial
	switch {
	case score >= e.rules.WorksThreshold:
		issue = model.IssueWorks
	case score <= e.rules.FailsThreshold:
		issue = model.IssueFails
	}

	return &model.Resolution{
		ID:         uuid.New().String(),
		DecisionID: d.ID,
		Issue:      issue,
		Confidence: e.confidence(positives, negatives, sumAbsPct, len(variations)),
		Variations: variations,
		Method:     "weighted indicator variation, baseline vs freshest horizon",
		ResolvedAt: now.UTC(),
	}, nil
}

// directedPct converts a variation into the direction-adjusted percent
// change that feeds the score: positive means "in favor of the decision".
// When the baseline is zero there is no percent scale; the sign of the
// absolute variation contributes a just-significant move instead.
func (e *Engine) directedPct(ind model.Indicator, v model.IndicatorVariation) float64 {
	var pct float64
	if v.HasPct {
		pct = v.VariationPct.InexactFloat64()
	} else {
		switch v.Variation.Sign() {
		case 1:
			pct = 2 * e.rules.NeutralBandPct
		case -1:
			pct = -2 * e.rules.NeutralBandPct
		}
	}
	if ind.Direction == indicator.DirectionDownGood {
		pct = -pct
	}
	return pct
}

// confidence maps variation magnitude and sign consistency to 0–100.
// Larger, more consistently-signed variations yield higher confidence.
func (e *Engine) confidence(positives, negatives int, sumAbsPct float64, usable int) int {
	if usable == 0 {
		return 0
	}

	signed := positives + negatives
	consistency := 0.0
	if signed > 0 {
		consistency = math.Abs(float64(positives-negatives)) / float64(signed)
	}

	magnitude := (sumAbsPct / float64(usable)) / e.rules.ConfidenceMagnitudeScale
	if magnitude > 1 {
		magnitude = 1
	}

	c := int(math.Round(100 * (0.5*consistency + 0.5*magnitude)))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// pickPair selects the baseline and the freshest post-baseline measurement.
// The freshest measurement is the one with the highest horizon rank,
// breaking ties by measurement time. Indicators without a baseline or
// without any later measurement are unusable.
func pickPair(data []model.IndicatorData) (baseline, current model.IndicatorData, ok bool) {
	var haveBaseline, haveCurrent bool
	currentRank := 0

	for _, m := range data {
		rank := indicator.HorizonRank(m.MeasureType)
		switch {
		case rank == 0:
			// Latest baseline wins if re-measured.
			if !haveBaseline || m.MeasuredAt.After(baseline.MeasuredAt) {
				baseline = m
			}
			haveBaseline = true
		case rank > 0:
			if !haveCurrent || rank > currentRank ||
				(rank == currentRank && m.MeasuredAt.After(current.MeasuredAt)) {
				current = m
				currentRank = rank
			}
			haveCurrent = true
		}
	}

	return baseline, current, haveBaseline && haveCurrent
}

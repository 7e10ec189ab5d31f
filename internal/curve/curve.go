// Package curve implements the ghost-supply bonding curve that prices a
// binary decision market.
//
// The base curve is linear: price = slope × (ghostSupply + realSupply).
// Two dampening factors shape the effective slope:
//   - a liquidity factor that reduces price impact while most of the supply
//     is non-tradable ghost supply, approaching full sensitivity as real
//     volume dominates;
//   - a probability factor that reduces slope impact once the implied
//     probability exceeds 50%, so consensus cannot run the price away
//     unboundedly.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Transcendental math (sqrt) runs on float64 internally, with results
// immediately converted back to decimal.
package curve

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/model"
)

var (
	// ErrNotBootstrapped is returned when the pool has no supply to price
	// against (ghost + real supply <= 0) or a non-positive slope.
	ErrNotBootstrapped = errors.New("curve: pool not bootstrapped")

	// ErrInvalidAmount is returned when a quote is requested for a
	// non-positive Seed amount, or for an amount too small to mint any
	// shares at share precision.
	ErrInvalidAmount = errors.New("curve: seed amount too small")

	// ShareScale is the number of decimal places for minted shares.
	ShareScale int32 = 8

	// PriceScale is the number of decimal places for prices.
	PriceScale int32 = 4
)

// Params are the tunable calibration constants of the curve. The dampening
// shape is the contract; the exact constants are configuration, validated
// against the desired initial and terminal price bounds.
type Params struct {
	// MinLiquidityRatio is the liquidity factor at zero real volume.
	MinLiquidityRatio float64

	// MaxLiquidityRatio is the liquidity factor as real volume dominates.
	MaxLiquidityRatio float64

	// ProbabilityDamping is the slope reduction per unit of implied
	// probability above 0.5.
	ProbabilityDamping float64

	// ProbabilityFloor is the lowest the probability factor may go.
	ProbabilityFloor float64
}

// DefaultParams returns the calibration the platform ships with.
func DefaultParams() Params {
	return Params{
		MinLiquidityRatio:  0.3,
		MaxLiquidityRatio:  1.0,
		ProbabilityDamping: 0.8,
		ProbabilityFloor:   0.1,
	}
}

// Validate checks the calibration for internal consistency.
func (p Params) Validate() error {
	if p.MinLiquidityRatio <= 0 || p.MinLiquidityRatio > p.MaxLiquidityRatio {
		return errors.New("curve: min liquidity ratio must be in (0, max]")
	}
	if p.MaxLiquidityRatio > 1 {
		return errors.New("curve: max liquidity ratio must not exceed 1")
	}
	if p.ProbabilityDamping < 0 {
		return errors.New("curve: probability damping must be non-negative")
	}
	if p.ProbabilityFloor <= 0 || p.ProbabilityFloor > 1 {
		return errors.New("curve: probability floor must be in (0, 1]")
	}
	return nil
}

// Engine computes prices and trade quotes for market pools. It is
// stateless — pool state is passed as an argument, not stored.
type Engine struct {
	params Params
}

// New creates a pricing engine with the given calibration.
func New(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

// Params returns the engine's calibration.
func (e *Engine) Params() Params {
	return e.params
}

// BasePrice returns the naive linear bonding-curve price:
//
//	basePrice = slope × (ghostSupply + realSupply)
//
// The pool's ghost supply and slope are calibrated so that basePrice reads
// as a percentage (50 at bootstrap).
func (e *Engine) BasePrice(pool *model.MarketPool) decimal.Decimal {
	return pool.Slope.Mul(pool.TotalSupply())
}

// LiquidityRatio returns realSupply / totalSupply, in [0, 1).
func (e *Engine) LiquidityRatio(pool *model.MarketPool) decimal.Decimal {
	total := pool.TotalSupply()
	if total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return pool.RealSupply.Div(total)
}

// liquidityFactor dampens price impact while the market is thin:
//
//	min + (max − min) × sqrt(liquidityRatio)
func (e *Engine) liquidityFactor(pool *model.MarketPool) float64 {
	ratio := e.LiquidityRatio(pool).InexactFloat64()
	if ratio < 0 {
		ratio = 0
	}
	spread := e.params.MaxLiquidityRatio - e.params.MinLiquidityRatio
	return e.params.MinLiquidityRatio + spread*math.Sqrt(ratio)
}

// probabilityFactor dampens the slope once the implied probability
// (basePrice / 100) exceeds 0.5, keeping later buys proportionally cheaper
// in slope-impact terms.
func (e *Engine) probabilityFactor(basePrice decimal.Decimal) float64 {
	prob := basePrice.InexactFloat64() / 100
	if prob <= 0.5 {
		return 1.0
	}
	factor := 1 - (prob-0.5)*e.params.ProbabilityDamping
	return math.Max(e.params.ProbabilityFloor, factor)
}

// EffectiveSlope folds both dampening factors into the pool's slope.
func (e *Engine) EffectiveSlope(pool *model.MarketPool) decimal.Decimal {
	base := e.BasePrice(pool)
	factor := e.liquidityFactor(pool) * e.probabilityFactor(base)
	return pool.Slope.Mul(decimal.NewFromFloat(factor))
}

// RealPrice is the dampened price the curve actually charges against:
//
//	realPrice = effectiveSlope × totalSupply
func (e *Engine) RealPrice(pool *model.MarketPool) decimal.Decimal {
	return e.EffectiveSlope(pool).Mul(pool.TotalSupply()).Round(PriceScale)
}

// Probability returns the decision's displayed YES probability on a 0-100
// scale. It derives from the undampened base price, which is what the
// ghost-supply calibration anchors at 50; the dampened realPrice governs
// trade cost, not the headline number.
func (e *Engine) Probability(pool *model.MarketPool) decimal.Decimal {
	p := e.BasePrice(pool).Round(2)
	if p.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Quote is the result of pricing a hypothetical buy: shares minted and the
// resulting real supply. Nothing is mutated.
type Quote struct {
	Shares        decimal.Decimal
	NewRealSupply decimal.Decimal
}

// QuoteBuy integrates the curve over a buy of seedAmount Seeds and returns
// the shares minted. The effective slope is frozen at the pre-trade pool
// state for the whole fill, so the cost of Δ shares from supply T is
//
//	seedAmount = k × (T·Δ + Δ²/2), k = effectiveSlope
//
// solved in closed form: Δ = sqrt(T² + 2·seedAmount/k) − T.
//
// Monotonic: more Seeds always mints more shares. Amounts too small to
// mint anything at share precision are rejected with ErrInvalidAmount.
func (e *Engine) QuoteBuy(pool *model.MarketPool, seedAmount decimal.Decimal) (Quote, error) {
	if seedAmount.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrInvalidAmount
	}
	total := pool.TotalSupply()
	if total.LessThanOrEqual(decimal.Zero) || pool.Slope.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrNotBootstrapped
	}

	k := e.EffectiveSlope(pool).InexactFloat64()
	if k <= 0 {
		return Quote{}, ErrNotBootstrapped
	}

	t := total.InexactFloat64()
	amount := seedAmount.InexactFloat64()

	delta := math.Sqrt(t*t+2*amount/k) - t
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return Quote{}, ErrNotBootstrapped
	}

	// Amounts too small to mint anything at share precision are rejected,
	// not silently quoted as zero shares.
	shares := decimal.NewFromFloat(delta).Round(ShareScale)
	if !shares.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	return Quote{
		Shares:        shares,
		NewRealSupply: pool.RealSupply.Add(shares),
	}, nil
}

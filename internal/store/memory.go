package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/ledger"
	"github.com/seedlabs/decision-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence). Every atomic
// unit runs under the single store lock, so partially-applied mutations are
// impossible.
type MemoryStore struct {
	mu           sync.RWMutex
	decisions    map[string]*model.Decision
	pools        map[string]*model.MarketPool
	balances     map[string]decimal.Decimal
	trades       []model.Trade
	positions    map[string]*model.Position // key: userID|decisionID|side
	measurements []model.IndicatorData
	resolutions  map[string]*model.Resolution // key: decisionID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decisions:   make(map[string]*model.Decision),
		pools:       make(map[string]*model.MarketPool),
		balances:    make(map[string]decimal.Decimal),
		positions:   make(map[string]*model.Position),
		resolutions: make(map[string]*model.Resolution),
	}
}

func positionKey(userID, decisionID, side string) string {
	return userID + "|" + decisionID + "|" + side
}

// --- Ledger ---

func (s *MemoryStore) GetBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

func (s *MemoryStore) Credit(_ context.Context, userID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = s.balances[userID].Add(amount)
	return nil
}

func (s *MemoryStore) Debit(_ context.Context, userID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debitLocked(userID, amount)
}

func (s *MemoryStore) debitLocked(userID string, amount decimal.Decimal) error {
	if s.balances[userID].LessThan(amount) {
		return ledger.ErrInsufficientFunds
	}
	s.balances[userID] = s.balances[userID].Sub(amount)
	return nil
}

// --- Decisions ---

func (s *MemoryStore) CreateDecision(_ context.Context, d *model.Decision, pool *model.MarketPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[d.ID]; exists {
		return fmt.Errorf("decision %s already exists", d.ID)
	}

	// Store copies to avoid external mutation.
	dc := *d
	pc := *pool
	s.decisions[d.ID] = &dc
	s.pools[d.ID] = &pc
	return nil
}

func (s *MemoryStore) GetDecision(_ context.Context, id string) (*model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: decision %s", ErrNotFound, id)
	}
	dc := *d
	return &dc, nil
}

func (s *MemoryStore) ListDecisions(_ context.Context) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Decision, 0, len(s.decisions))
	for _, d := range s.decisions {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListDueDecisions(_ context.Context, asOf time.Time) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Decision
	for _, d := range s.decisions {
		if d.Status != model.StatusResolved && !d.ResolveBy.After(asOf) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolveBy.Before(out[j].ResolveBy) })
	return out, nil
}

func (s *MemoryStore) ListUnsettledDecisions(_ context.Context) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Decision
	for _, d := range s.decisions {
		pool := s.pools[d.ID]
		if d.Status == model.StatusResolved && pool != nil && !pool.Settled {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- Market pool ---

func (s *MemoryStore) GetPool(_ context.Context, decisionID string) (*model.MarketPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[decisionID]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", ErrNotFound, decisionID)
	}
	pc := *p
	return &pc, nil
}

// --- Atomic units ---

func (s *MemoryStore) ApplyTrade(_ context.Context, params ApplyTradeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := params.Trade
	pool, ok := s.pools[tr.DecisionID]
	if !ok {
		return fmt.Errorf("%w: pool %s", ErrNotFound, tr.DecisionID)
	}

	// Debit first; it is the only step that can fail, so the unit never
	// partially applies.
	if err := s.debitLocked(tr.UserID, tr.SeedAmount); err != nil {
		return err
	}

	pool.RealSupply = params.NewRealSupply
	pool.YesShares = params.NewYesShares
	pool.NoShares = params.NewNoShares
	pool.Staked = params.NewStaked
	pool.RealPrice = params.NewRealPrice

	s.trades = append(s.trades, tr)

	key := positionKey(tr.UserID, tr.DecisionID, tr.Side)
	pos, ok := s.positions[key]
	if !ok {
		pos = &model.Position{
			UserID:     tr.UserID,
			DecisionID: tr.DecisionID,
			Side:       tr.Side,
		}
		s.positions[key] = pos
	}
	pos.Shares = pos.Shares.Add(tr.Shares)
	pos.CostBasis = pos.CostBasis.Add(tr.SeedAmount)

	return nil
}

func (s *MemoryStore) ApplyResolution(_ context.Context, res *model.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.decisions[res.DecisionID]
	if !ok {
		return fmt.Errorf("%w: decision %s", ErrNotFound, res.DecisionID)
	}
	if d.Status == model.StatusResolved {
		return ErrAlreadyResolved
	}

	rc := *res
	s.resolutions[res.DecisionID] = &rc
	d.Status = model.StatusResolved
	resolvedAt := res.ResolvedAt
	d.ResolvedAt = &resolvedAt
	return nil
}

func (s *MemoryStore) ApplySettlement(_ context.Context, decisionID string, payouts []Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[decisionID]
	if !ok {
		return fmt.Errorf("%w: pool %s", ErrNotFound, decisionID)
	}
	if pool.Settled {
		return ErrAlreadySettled
	}

	for _, p := range payouts {
		s.balances[p.UserID] = s.balances[p.UserID].Add(p.Amount)
	}
	for _, pos := range s.positions {
		if pos.DecisionID == decisionID {
			pos.Shares = decimal.Zero
			pos.CostBasis = decimal.Zero
		}
	}
	pool.Settled = true
	return nil
}

func (s *MemoryStore) PlaceFeaturedBid(_ context.Context, decisionID, userID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[decisionID]
	if !ok {
		return fmt.Errorf("%w: pool %s", ErrNotFound, decisionID)
	}
	if amount.LessThanOrEqual(pool.CurrentBidPrice) {
		return ErrBidTooLow
	}
	if err := s.debitLocked(userID, amount); err != nil {
		return err
	}

	// Refund the outbid user.
	if pool.CurrentBidder != "" {
		s.balances[pool.CurrentBidder] = s.balances[pool.CurrentBidder].Add(pool.CurrentBidPrice)
	}
	pool.CurrentBidPrice = amount
	pool.CurrentBidder = userID
	return nil
}

// --- Price history ---

func (s *MemoryStore) ListTrades(_ context.Context, decisionID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Trade
	for _, tr := range s.trades {
		if tr.DecisionID == decisionID {
			out = append(out, tr)
		}
	}
	return out, nil
}

// --- Positions ---

func (s *MemoryStore) ListPositionsByDecision(_ context.Context, decisionID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for _, pos := range s.positions {
		if pos.DecisionID == decisionID {
			out = append(out, *pos)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPositionsByUser(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for _, pos := range s.positions {
		if pos.UserID == userID {
			out = append(out, *pos)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUserStakes(_ context.Context, userID string) (map[string]decimal.Decimal, map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDecision := make(map[string]decimal.Decimal)
	byCategory := make(map[string]decimal.Decimal)
	for _, pos := range s.positions {
		if pos.UserID != userID {
			continue
		}
		byDecision[pos.DecisionID] = byDecision[pos.DecisionID].Add(pos.CostBasis)
		if d, ok := s.decisions[pos.DecisionID]; ok && d.Category != "" {
			byCategory[d.Category] = byCategory[d.Category].Add(pos.CostBasis)
		}
	}
	return byDecision, byCategory, nil
}

// --- Indicator data ---

func (s *MemoryStore) InsertMeasurement(_ context.Context, m *model.IndicatorData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurements = append(s.measurements, *m)
	return nil
}

func (s *MemoryStore) GetMeasurements(_ context.Context, decisionID, indicatorID string) ([]model.IndicatorData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.IndicatorData
	for _, m := range s.measurements {
		if m.DecisionID == decisionID && m.IndicatorID == indicatorID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasuredAt.Before(out[j].MeasuredAt) })
	return out, nil
}

// --- Resolutions ---

func (s *MemoryStore) GetResolution(_ context.Context, decisionID string) (*model.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resolutions[decisionID]
	if !ok {
		return nil, fmt.Errorf("%w: resolution %s", ErrNotFound, decisionID)
	}
	rc := *res
	return &rc, nil
}

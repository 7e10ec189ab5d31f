package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read path: decisions and pools, which every price read
// touches. Writes go to the primary store and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func decisionKey(id string) string { return fmt.Sprintf("decision:%s", id) }
func poolKey(id string) string     { return fmt.Sprintf("pool:%s", id) }

// --- Read-through ---

func (s *CachedStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	data, err := s.rdb.Get(ctx, decisionKey(id)).Bytes()
	if err == nil {
		var d model.Decision
		if json.Unmarshal(data, &d) == nil {
			return &d, nil
		}
	}

	d, err := s.primary.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheDecision(ctx, d)
	return d, nil
}

func (s *CachedStore) GetPool(ctx context.Context, decisionID string) (*model.MarketPool, error) {
	data, err := s.rdb.Get(ctx, poolKey(decisionID)).Bytes()
	if err == nil {
		var p model.MarketPool
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPool(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	s.cachePool(ctx, p)
	return p, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateDecision(ctx context.Context, d *model.Decision, pool *model.MarketPool) error {
	if err := s.primary.CreateDecision(ctx, d, pool); err != nil {
		return err
	}
	s.cacheDecision(ctx, d)
	s.cachePool(ctx, pool)
	return nil
}

func (s *CachedStore) ApplyTrade(ctx context.Context, params ApplyTradeParams) error {
	if err := s.primary.ApplyTrade(ctx, params); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey(params.Trade.DecisionID))
	return nil
}

func (s *CachedStore) ApplyResolution(ctx context.Context, res *model.Resolution) error {
	if err := s.primary.ApplyResolution(ctx, res); err != nil {
		return err
	}
	s.rdb.Del(ctx, decisionKey(res.DecisionID))
	return nil
}

func (s *CachedStore) ApplySettlement(ctx context.Context, decisionID string, payouts []Payout) error {
	if err := s.primary.ApplySettlement(ctx, decisionID, payouts); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey(decisionID))
	return nil
}

func (s *CachedStore) PlaceFeaturedBid(ctx context.Context, decisionID, userID string, amount decimal.Decimal) error {
	if err := s.primary.PlaceFeaturedBid(ctx, decisionID, userID, amount); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey(decisionID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.primary.GetBalance(ctx, userID)
}

func (s *CachedStore) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	return s.primary.Credit(ctx, userID, amount)
}

func (s *CachedStore) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	return s.primary.Debit(ctx, userID, amount)
}

func (s *CachedStore) ListDecisions(ctx context.Context) ([]model.Decision, error) {
	return s.primary.ListDecisions(ctx)
}

func (s *CachedStore) ListDueDecisions(ctx context.Context, asOf time.Time) ([]model.Decision, error) {
	return s.primary.ListDueDecisions(ctx, asOf)
}

func (s *CachedStore) ListUnsettledDecisions(ctx context.Context) ([]model.Decision, error) {
	return s.primary.ListUnsettledDecisions(ctx)
}

func (s *CachedStore) ListTrades(ctx context.Context, decisionID string) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx, decisionID)
}

func (s *CachedStore) ListPositionsByDecision(ctx context.Context, decisionID string) ([]model.Position, error) {
	return s.primary.ListPositionsByDecision(ctx, decisionID)
}

func (s *CachedStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error) {
	return s.primary.ListPositionsByUser(ctx, userID)
}

func (s *CachedStore) GetUserStakes(ctx context.Context, userID string) (map[string]decimal.Decimal, map[string]decimal.Decimal, error) {
	return s.primary.GetUserStakes(ctx, userID)
}

func (s *CachedStore) InsertMeasurement(ctx context.Context, m *model.IndicatorData) error {
	return s.primary.InsertMeasurement(ctx, m)
}

func (s *CachedStore) GetMeasurements(ctx context.Context, decisionID, indicatorID string) ([]model.IndicatorData, error) {
	return s.primary.GetMeasurements(ctx, decisionID, indicatorID)
}

func (s *CachedStore) GetResolution(ctx context.Context, decisionID string) (*model.Resolution, error) {
	return s.primary.GetResolution(ctx, decisionID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheDecision(ctx context.Context, d *model.Decision) {
	if data, err := json.Marshal(d); err == nil {
		s.rdb.Set(ctx, decisionKey(d.ID), data, s.ttl)
	}
}

func (s *CachedStore) cachePool(ctx context.Context, p *model.MarketPool) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, poolKey(p.DecisionID), data, s.ttl)
	}
}

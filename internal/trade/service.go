// Package trade provides the HTTP handlers and business logic for creating
// decisions, buying shares on their bonding curves, featured-comment
// bidding, and querying positions and balances.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/curve"
	"github.com/seedlabs/decision-engine/internal/indicator"
	"github.com/seedlabs/decision-engine/internal/ledger"
	"github.com/seedlabs/decision-engine/internal/limits"
	"github.com/seedlabs/decision-engine/internal/metrics"
	"github.com/seedlabs/decision-engine/internal/model"
	"github.com/seedlabs/decision-engine/internal/resolution"
	"github.com/seedlabs/decision-engine/internal/store"
)

// ErrMarketClosed is returned when a buy arrives outside the decision's
// invest window or after resolution.
var ErrMarketClosed = errors.New("trade: market not open for trading")

// Resolver triggers an immediate resolution attempt for one decision. The
// sweep scheduler provides the implementation; the interface keeps the
// manual-resolve endpoint from depending on it.
type Resolver interface {
	ResolveDecision(ctx context.Context, decisionID string) error
}

// Service handles decision-market operations. Per-decision locks serialize
// the read-quote-commit sequence of a buy; buys on different decisions run
// concurrently.
type Service struct {
	store    store.Store
	engine   *curve.Engine
	limiter  *limits.StakeLimiter
	locks    *store.DecisionLocks
	catalog  *indicator.Catalog
	resolver Resolver
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts

	defaultGhost decimal.Decimal
	defaultSlope decimal.Decimal
}

// NewService creates a new trade service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(
	st store.Store,
	engine *curve.Engine,
	limiter *limits.StakeLimiter,
	locks *store.DecisionLocks,
	catalog *indicator.Catalog,
	hub *WSHub,
	defaultGhost, defaultSlope decimal.Decimal,
) *Service {
	return &Service{
		store:        st,
		engine:       engine,
		limiter:      limiter,
		locks:        locks,
		catalog:      catalog,
		wsHub:        hub,
		defaultGhost: defaultGhost,
		defaultSlope: defaultSlope,
	}
}

// SetResolver wires the manual-resolve endpoint to the sweep scheduler.
func (s *Service) SetResolver(r Resolver) {
	s.resolver = r
}

// --- Request/Response types ---

// CreateDecisionRequest is the JSON body for decision creation.
type CreateDecisionRequest struct {
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Indicators  []string  `json:"indicators"`
	InvestStart time.Time `json:"invest_start"`
	InvestEnd   time.Time `json:"invest_end"`
	ResolveBy   time.Time `json:"resolve_by"`

	// Optional explicit calibration; zero values fall back to the
	// service defaults.
	GhostSupply decimal.Decimal `json:"ghost_supply"`
	Slope       decimal.Decimal `json:"slope"`

	// Optional baseline samples of the primary indicator. When present,
	// ghost supply and slope are derived from their dispersion instead.
	CalibrationSamples []decimal.Decimal `json:"calibration_samples,omitempty"`
}

// TradeRequest is the JSON body for POST /trade. SeedAmount is the Seeds
// to spend; shares minted follow from the curve.
type TradeRequest struct {
	UserID     string          `json:"user_id"`
	DecisionID string          `json:"decision_id"`
	Side       string          `json:"side"` // "yes" or "no"
	SeedAmount decimal.Decimal `json:"seed_amount"`
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	TradeID     string          `json:"trade_id"`
	UserID      string          `json:"user_id"`
	DecisionID  string          `json:"decision_id"`
	Side        string          `json:"side"`
	SeedAmount  decimal.Decimal `json:"seed_amount"`
	Shares      decimal.Decimal `json:"shares"`
	RealPrice   decimal.Decimal `json:"real_price"`
	Probability decimal.Decimal `json:"probability"`
	Position    PositionSummary `json:"position"`
}

// PositionSummary is the position snapshot included in trade responses.
type PositionSummary struct {
	Shares    decimal.Decimal `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// PriceResponse is the pool pricing snapshot for GET .../price.
type PriceResponse struct {
	DecisionID     string          `json:"decision_id"`
	BasePrice      decimal.Decimal `json:"base_price"`
	RealPrice      decimal.Decimal `json:"real_price"`
	Probability    decimal.Decimal `json:"probability"`
	LiquidityRatio decimal.Decimal `json:"liquidity_ratio"`
	YesShares      decimal.Decimal `json:"yes_shares"`
	NoShares       decimal.Decimal `json:"no_shares"`
	Staked         decimal.Decimal `json:"staked"`
}

// BidRequest is the JSON body for a featured-comment bid.
type BidRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// MeasurementRequest is the JSON body for indicator data ingestion.
type MeasurementRequest struct {
	IndicatorID string          `json:"indicator_id"`
	MeasureType string          `json:"measure_type"`
	Value       decimal.Decimal `json:"value"`
	MeasuredAt  time.Time       `json:"measured_at"`
}

// CreditRequest is the JSON body for crediting a user's Seeds balance.
type CreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// --- HTTP Handlers ---

// CreateDecision handles POST /api/v1/decisions
func (s *Service) CreateDecision(w http.ResponseWriter, r *http.Request) {
	var req CreateDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == "" {
		writeError(w, "title is required", http.StatusBadRequest)
		return
	}
	if len(req.Indicators) == 0 {
		writeError(w, "at least one indicator is required", http.StatusBadRequest)
		return
	}
	for _, id := range req.Indicators {
		if !s.catalog.Has(id) {
			writeError(w, "unknown indicator: "+id, http.StatusBadRequest)
			return
		}
	}
	if !req.InvestStart.Before(req.InvestEnd) {
		writeError(w, "invest window must have positive duration", http.StatusBadRequest)
		return
	}
	if req.ResolveBy.Before(req.InvestEnd) {
		writeError(w, "resolve_by must not precede invest window end", http.StatusBadRequest)
		return
	}

	ghost := req.GhostSupply
	slope := req.Slope
	if slope.LessThanOrEqual(decimal.Zero) {
		slope = s.defaultSlope
	}
	if ghost.LessThanOrEqual(decimal.Zero) {
		ghost = s.defaultGhost
	}
	if len(req.CalibrationSamples) > 0 {
		cal, err := indicator.Calibrate(req.CalibrationSamples, slope)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ghost = cal.GhostSupply
		slope = cal.Slope
	}

	now := time.Now().UTC()
	status := model.StatusTracking
	if now.Before(req.InvestStart) {
		status = model.StatusAnnounced
	}

	d := &model.Decision{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Category:    req.Category,
		Status:      status,
		Indicators:  req.Indicators,
		InvestStart: req.InvestStart.UTC(),
		InvestEnd:   req.InvestEnd.UTC(),
		ResolveBy:   req.ResolveBy.UTC(),
		CreatedAt:   now,
	}

	pool := &model.MarketPool{
		DecisionID:  d.ID,
		GhostSupply: ghost,
		RealSupply:  decimal.Zero,
		Slope:       slope,
		YesShares:   decimal.Zero,
		NoShares:    decimal.Zero,
		Staked:      decimal.Zero,
	}
	pool.RealPrice = s.engine.RealPrice(pool)

	if err := s.store.CreateDecision(r.Context(), d, pool); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	metrics.ActiveDecisions.Inc()
	slog.Info("decision created",
		"id", d.ID,
		"title", d.Title,
		"category", d.Category,
		"ghost_supply", ghost.String(),
		"slope", slope.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(d)
}

// GetDecision handles GET /api/v1/decisions/{decisionID}
func (s *Service) GetDecision(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	d, err := s.store.GetDecision(r.Context(), decisionID)
	if err != nil {
		writeError(w, "decision not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

// ListDecisions handles GET /api/v1/decisions
// Returns all decisions, optionally filtered by ?category=<name>.
func (s *Service) ListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.store.ListDecisions(r.Context())
	if err != nil {
		writeError(w, "failed to list decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []model.Decision{}
	}

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []model.Decision
		for _, d := range decisions {
			if d.Category == category {
				filtered = append(filtered, d)
			}
		}
		if filtered == nil {
			filtered = []model.Decision{}
		}
		decisions = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}

// GetPrice handles GET /api/v1/decisions/{decisionID}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	pool, err := s.store.GetPool(r.Context(), decisionID)
	if err != nil {
		writeError(w, "decision not found", http.StatusNotFound)
		return
	}

	resp := PriceResponse{
		DecisionID:     decisionID,
		BasePrice:      s.engine.BasePrice(pool).Round(curve.PriceScale),
		RealPrice:      s.engine.RealPrice(pool),
		Probability:    s.engine.Probability(pool),
		LiquidityRatio: s.engine.LiquidityRatio(pool).Round(4),
		YesShares:      pool.YesShares,
		NoShares:       pool.NoShares,
		Staked:         pool.Staked,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ExecuteTrade handles POST /api/v1/trade
// Buys shares on the decision's bonding curve and returns the fill.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Side != model.SideYes && req.Side != model.SideNo {
		writeError(w, "side must be yes or no", http.StatusBadRequest)
		return
	}
	if req.SeedAmount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "seed_amount must be positive", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resp, err := s.buyShares(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, "decision not found", http.StatusNotFound)
		case errors.Is(err, ErrMarketClosed):
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, limits.ErrDecisionLimitExceeded),
			errors.Is(err, limits.ErrCategoryLimitExceeded):
			metrics.StakeLimitRejections.Inc()
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, curve.ErrInvalidAmount):
			writeError(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("trade failed", "user", req.UserID, "decision", req.DecisionID, "error", err)
			writeError(w, "trade execution failed", http.StatusInternalServerError)
		}
		return
	}

	metrics.TradesTotal.WithLabelValues(req.Side).Inc()
	metrics.TradeLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())
	amount, _ := req.SeedAmount.Float64()
	metrics.TradeVolume.WithLabelValues(req.Side).Add(amount)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// buyShares runs the read-quote-commit sequence under the decision's lock.
func (s *Service) buyShares(ctx context.Context, req *TradeRequest) (*TradeResponse, error) {
	s.locks.Lock(req.DecisionID)
	defer s.locks.Unlock(req.DecisionID)

	d, err := s.store.GetDecision(ctx, req.DecisionID)
	if err != nil {
		return nil, err
	}
	if !d.TradingOpen(time.Now().UTC()) {
		return nil, ErrMarketClosed
	}

	pool, err := s.store.GetPool(ctx, req.DecisionID)
	if err != nil {
		return nil, err
	}
	if pool.Settled {
		return nil, ErrMarketClosed
	}

	byDecision, byCategory, err := s.store.GetUserStakes(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(req.DecisionID, d.Category, req.SeedAmount, byDecision, byCategory); err != nil {
		return nil, err
	}

	quote, err := s.engine.QuoteBuy(pool, req.SeedAmount)
	if err != nil {
		return nil, err
	}

	// Price after the fill, with the dampening factors recomputed at the
	// post-trade supply.
	after := *pool
	after.RealSupply = quote.NewRealSupply
	newRealPrice := s.engine.RealPrice(&after)

	newYes := pool.YesShares
	newNo := pool.NoShares
	if req.Side == model.SideYes {
		newYes = newYes.Add(quote.Shares)
	} else {
		newNo = newNo.Add(quote.Shares)
	}

	trade := model.Trade{
		ID:         uuid.New().String(),
		DecisionID: req.DecisionID,
		UserID:     req.UserID,
		Side:       req.Side,
		SeedAmount: req.SeedAmount,
		Shares:     quote.Shares,
		Price:      newRealPrice,
		Timestamp:  time.Now().UTC(),
	}

	err = s.store.ApplyTrade(ctx, store.ApplyTradeParams{
		Trade:         trade,
		NewRealSupply: quote.NewRealSupply,
		NewYesShares:  newYes,
		NewNoShares:   newNo,
		NewStaked:     pool.Staked.Add(req.SeedAmount),
		NewRealPrice:  newRealPrice,
	})
	if err != nil {
		return nil, err
	}

	after.YesShares = newYes
	after.NoShares = newNo
	probability := s.engine.Probability(&after)

	var posSummary PositionSummary
	positions, err := s.store.ListPositionsByUser(ctx, req.UserID)
	if err != nil {
		// The trade is already committed; report the stale summary rather
		// than failing the response.
		slog.Error("position lookup after trade failed", "user", req.UserID, "error", err)
	}
	for _, p := range positions {
		if p.DecisionID == req.DecisionID && p.Side == req.Side {
			posSummary = PositionSummary{Shares: p.Shares, CostBasis: p.CostBasis}
			break
		}
	}

	slog.Info("trade executed",
		"trade_id", trade.ID,
		"user", req.UserID,
		"decision", req.DecisionID,
		"side", req.Side,
		"seed_amount", req.SeedAmount.String(),
		"shares", quote.Shares.String(),
		"real_price", newRealPrice.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "trade_executed",
			DecisionID:  req.DecisionID,
			Side:        req.Side,
			SeedAmount:  req.SeedAmount.String(),
			Shares:      quote.Shares.String(),
			RealPrice:   newRealPrice.String(),
			Probability: probability.String(),
		})
	}

	return &TradeResponse{
		TradeID:     trade.ID,
		UserID:      req.UserID,
		DecisionID:  req.DecisionID,
		Side:        req.Side,
		SeedAmount:  req.SeedAmount,
		Shares:      quote.Shares,
		RealPrice:   newRealPrice,
		Probability: probability,
		Position:    posSummary,
	}, nil
}

// PlaceBid handles POST /api/v1/decisions/{decisionID}/bid
// Outbids the current featured-comment bid; the previous bidder is refunded.
func (s *Service) PlaceBid(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.locks.Lock(decisionID)
	defer s.locks.Unlock(decisionID)

	d, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		writeError(w, "decision not found", http.StatusNotFound)
		return
	}
	if d.Status == model.StatusResolved {
		writeError(w, "decision is resolved", http.StatusConflict)
		return
	}

	err = s.store.PlaceFeaturedBid(ctx, decisionID, req.UserID, req.Amount)
	switch {
	case errors.Is(err, store.ErrBidTooLow):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		slog.Error("featured bid failed", "user", req.UserID, "decision", decisionID, "error", err)
		writeError(w, "bid failed", http.StatusInternalServerError)
		return
	}

	slog.Info("featured bid placed",
		"decision", decisionID,
		"user", req.UserID,
		"amount", req.Amount.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "featured_bid",
			DecisionID: decisionID,
			BidPrice:   req.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"decision_id": decisionID,
		"bidder":      req.UserID,
		"bid_price":   req.Amount.String(),
	})
}

// GetHistory handles GET /api/v1/decisions/{decisionID}/history
// Returns the trade sequence as price history for charting.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	trades, err := s.store.ListTrades(r.Context(), decisionID)
	if err != nil {
		writeError(w, "failed to get price history", http.StatusInternalServerError)
		return
	}

	points := make([]model.PricePoint, 0, len(trades))
	for _, t := range trades {
		points = append(points, model.PricePoint{Timestamp: t.Timestamp, Price: t.Price})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

// GetPositions handles GET /api/v1/positions/{userID}
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	positions, err := s.store.ListPositionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// GetBalance handles GET /api/v1/balance/{userID}
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := s.store.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"balance": balance,
	})
}

// CreditBalance handles POST /api/v1/balance/{userID}/credit
func (s *Service) CreditBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	if err := s.store.Credit(r.Context(), userID, req.Amount); err != nil {
		writeError(w, "failed to credit balance", http.StatusInternalServerError)
		return
	}

	balance, err := s.store.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	slog.Info("balance credited", "user", userID, "amount", req.Amount.String())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"balance": balance,
	})
}

// IngestMeasurement handles POST /api/v1/decisions/{decisionID}/measurements
// Records one indicator observation used later by the resolution sweep.
func (s *Service) IngestMeasurement(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	var req MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.catalog.Has(req.IndicatorID) {
		writeError(w, "unknown indicator: "+req.IndicatorID, http.StatusBadRequest)
		return
	}
	if !indicator.ValidMeasureType(req.MeasureType) {
		writeError(w, "invalid measure_type: "+req.MeasureType, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	d, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		writeError(w, "decision not found", http.StatusNotFound)
		return
	}
	tracked := false
	for _, id := range d.Indicators {
		if id == req.IndicatorID {
			tracked = true
			break
		}
	}
	if !tracked {
		writeError(w, "indicator not tracked by this decision", http.StatusBadRequest)
		return
	}

	measuredAt := req.MeasuredAt
	if measuredAt.IsZero() {
		measuredAt = time.Now().UTC()
	}

	m := &model.IndicatorData{
		DecisionID:  decisionID,
		IndicatorID: req.IndicatorID,
		MeasureType: req.MeasureType,
		Value:       req.Value,
		MeasuredAt:  measuredAt.UTC(),
	}
	if err := s.store.InsertMeasurement(ctx, m); err != nil {
		writeError(w, "failed to record measurement", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}

// GetResolution handles GET /api/v1/decisions/{decisionID}/resolution
func (s *Service) GetResolution(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	res, err := s.store.GetResolution(r.Context(), decisionID)
	if err != nil {
		writeError(w, "resolution not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// TriggerResolve handles POST /api/v1/decisions/{decisionID}/resolve
// Forces an immediate resolution attempt instead of waiting for the sweep.
func (s *Service) TriggerResolve(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	if s.resolver == nil {
		writeError(w, "manual resolution not available", http.StatusServiceUnavailable)
		return
	}

	err := s.resolver.ResolveDecision(r.Context(), decisionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "decision not found", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrAlreadyResolved):
		writeError(w, "decision already resolved", http.StatusConflict)
		return
	case errors.Is(err, resolution.ErrDeferred):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		slog.Error("manual resolution failed", "decision", decisionID, "error", err)
		writeError(w, "resolution failed", http.StatusInternalServerError)
		return
	}

	res, err := s.store.GetResolution(r.Context(), decisionID)
	if err != nil {
		writeError(w, "resolution not found", http.StatusNotFound)
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "decision_resolved",
			DecisionID: decisionID,
			Issue:      res.Issue,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

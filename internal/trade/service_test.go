package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/curve"
	"github.com/seedlabs/decision-engine/internal/indicator"
	"github.com/seedlabs/decision-engine/internal/limits"
	"github.com/seedlabs/decision-engine/internal/model"
	"github.com/seedlabs/decision-engine/internal/store"
	"github.com/seedlabs/decision-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*trade.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()

	engine, err := curve.New(curve.DefaultParams())
	if err != nil {
		t.Fatalf("failed to create curve engine: %v", err)
	}
	catalog, err := indicator.NewCatalog([]model.Indicator{
		{ID: "unemployment_rate", Name: "Unemployment rate", Direction: indicator.DirectionDownGood, Weight: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	limiter := limits.NewStakeLimiter(d(1000), d(5000))
	locks := store.NewDecisionLocks()
	svc := trade.NewService(ms, engine, limiter, locks, catalog, nil, d(5000), d(0.01))

	r := chi.NewRouter()
	r.Post("/api/v1/decisions", svc.CreateDecision)
	r.Get("/api/v1/decisions", svc.ListDecisions)
	r.Get("/api/v1/decisions/{decisionID}", svc.GetDecision)
	r.Get("/api/v1/decisions/{decisionID}/price", svc.GetPrice)
	r.Get("/api/v1/decisions/{decisionID}/history", svc.GetHistory)
	r.Post("/api/v1/decisions/{decisionID}/bid", svc.PlaceBid)
	r.Post("/api/v1/decisions/{decisionID}/measurements", svc.IngestMeasurement)
	r.Post("/api/v1/trade", svc.ExecuteTrade)
	r.Get("/api/v1/positions/{userID}", svc.GetPositions)
	r.Get("/api/v1/balance/{userID}", svc.GetBalance)
	r.Post("/api/v1/balance/{userID}/credit", svc.CreditBalance)

	return svc, ms, r
}

// seedDecision creates a tradable decision with a bootstrapped pool
// directly in the store.
func seedDecision(t *testing.T, ms *store.MemoryStore, id, category string) *model.Decision {
	t.Helper()
	now := time.Now().UTC()
	dec := &model.Decision{
		ID:          id,
		Title:       "Test decision " + id,
		Category:    category,
		Status:      model.StatusTracking,
		Indicators:  []string{"unemployment_rate"},
		InvestStart: now.Add(-time.Hour),
		InvestEnd:   now.Add(24 * time.Hour),
		ResolveBy:   now.Add(48 * time.Hour),
		CreatedAt:   now,
	}
	pool := &model.MarketPool{
		DecisionID:  id,
		GhostSupply: d(5000),
		RealSupply:  decimal.Zero,
		Slope:       d(0.01),
	}
	if err := ms.CreateDecision(context.Background(), dec, pool); err != nil {
		t.Fatalf("failed to seed decision: %v", err)
	}
	return dec
}

func creditUser(t *testing.T, ms *store.MemoryStore, userID string, amount float64) {
	t.Helper()
	if err := ms.Credit(context.Background(), userID, d(amount)); err != nil {
		t.Fatalf("failed to credit %s: %v", userID, err)
	}
}

func doTrade(t *testing.T, router chi.Router, req trade.TradeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/trade", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

// --- Trade execution tests ---

func TestExecuteTrade_BuyYes(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 500)

	w := doTrade(t, router, trade.TradeRequest{
		UserID:     "alice",
		DecisionID: "dec-1",
		Side:       "yes",
		SeedAmount: d(100),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.TradeID == "" {
		t.Error("expected non-empty trade_id")
	}
	if resp.Shares.LessThanOrEqual(decimal.Zero) {
		t.Errorf("shares should be positive, got %s", resp.Shares)
	}
	if !resp.Position.CostBasis.Equal(d(100)) {
		t.Errorf("expected cost basis 100, got %s", resp.Position.CostBasis)
	}

	balance, _ := ms.GetBalance(context.Background(), "alice")
	if !balance.Equal(d(400)) {
		t.Errorf("expected balance 400 after spending 100, got %s", balance)
	}

	pool, _ := ms.GetPool(context.Background(), "dec-1")
	if !pool.Staked.Equal(d(100)) {
		t.Errorf("expected staked 100, got %s", pool.Staked)
	}
	if pool.RealSupply.LessThanOrEqual(decimal.Zero) {
		t.Errorf("real supply should grow after buy, got %s", pool.RealSupply)
	}
	if !pool.YesShares.Equal(resp.Shares) {
		t.Errorf("pool yes shares %s should match minted %s", pool.YesShares, resp.Shares)
	}
}

func TestExecuteTrade_BuyNo(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 500)

	w := doTrade(t, router, trade.TradeRequest{
		UserID:     "alice",
		DecisionID: "dec-1",
		Side:       "no",
		SeedAmount: d(100),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	pool, _ := ms.GetPool(context.Background(), "dec-1")
	if pool.NoShares.LessThanOrEqual(decimal.Zero) {
		t.Errorf("no-side shares should grow, got %s", pool.NoShares)
	}
	if !pool.YesShares.IsZero() {
		t.Errorf("yes-side shares should stay zero, got %s", pool.YesShares)
	}
}

func TestExecuteTrade_PriceRises(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 1000)

	var first, second trade.TradeResponse

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(200),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first trade failed: %d %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &first)

	w = doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(200),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("second trade failed: %d %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &second)

	if !second.RealPrice.GreaterThan(first.RealPrice) {
		t.Errorf("price should rise with each buy: first=%s second=%s",
			first.RealPrice, second.RealPrice)
	}
	if second.Shares.GreaterThanOrEqual(first.Shares) {
		t.Errorf("same spend should mint fewer shares at higher price: first=%s second=%s",
			first.Shares, second.Shares)
	}
}

func TestExecuteTrade_InsufficientFunds(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 50)

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(100),
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// The rejected trade must leave everything untouched.
	balance, _ := ms.GetBalance(context.Background(), "alice")
	if !balance.Equal(d(50)) {
		t.Errorf("balance should be untouched, got %s", balance)
	}
	pool, _ := ms.GetPool(context.Background(), "dec-1")
	if !pool.Staked.IsZero() || !pool.RealSupply.IsZero() {
		t.Errorf("pool should be untouched: staked=%s real=%s", pool.Staked, pool.RealSupply)
	}
	trades, _ := ms.ListTrades(context.Background(), "dec-1")
	if len(trades) != 0 {
		t.Errorf("expected no trade records, got %d", len(trades))
	}
}

func TestExecuteTrade_MarketClosed(t *testing.T) {
	_, ms, router := newTestEnv(t)
	now := time.Now().UTC()
	dec := &model.Decision{
		ID:          "dec-closed",
		Title:       "Closed decision",
		Category:    "housing",
		Status:      model.StatusTracking,
		Indicators:  []string{"unemployment_rate"},
		InvestStart: now.Add(-48 * time.Hour),
		InvestEnd:   now.Add(-24 * time.Hour),
		ResolveBy:   now.Add(24 * time.Hour),
		CreatedAt:   now,
	}
	pool := &model.MarketPool{DecisionID: "dec-closed", GhostSupply: d(5000), Slope: d(0.01)}
	if err := ms.CreateDecision(context.Background(), dec, pool); err != nil {
		t.Fatalf("failed to seed decision: %v", err)
	}
	creditUser(t, ms, "alice", 500)

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-closed", Side: "yes", SeedAmount: d(100),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for closed invest window, got %d: %s", w.Code, w.Body.String())
	}
}

func TestExecuteTrade_ResolvedMarket(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 500)

	// Resolve while the invest window is still open; trading must stop
	// anyway.
	err := ms.ApplyResolution(context.Background(), &model.Resolution{
		ID:         "res-1",
		DecisionID: "dec-1",
		Issue:      model.IssueWorks,
		Confidence: 80,
		ResolvedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to resolve decision: %v", err)
	}

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(100),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for resolved decision, got %d: %s", w.Code, w.Body.String())
	}
	balance, _ := ms.GetBalance(context.Background(), "alice")
	if !balance.Equal(d(500)) {
		t.Errorf("balance should be untouched, got %s", balance)
	}
	pool, _ := ms.GetPool(context.Background(), "dec-1")
	if !pool.RealSupply.IsZero() || !pool.Staked.IsZero() {
		t.Errorf("pool should be untouched: realSupply=%s staked=%s", pool.RealSupply, pool.Staked)
	}
	trades, _ := ms.ListTrades(context.Background(), "dec-1")
	if len(trades) != 0 {
		t.Errorf("no trade should be recorded, got %d", len(trades))
	}
}

func TestExecuteTrade_InvalidSide(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "maybe", SeedAmount: d(10),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid side, got %d", w.Code)
	}
}

func TestExecuteTrade_ZeroAmount(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: decimal.Zero,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero amount, got %d", w.Code)
	}
}

func TestExecuteTrade_DecisionNotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "nope", Side: "yes", SeedAmount: d(10),
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExecuteTrade_StakeLimitExceeded(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 5000)

	// Stake up to the per-decision cap (1000) in two buys.
	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(600),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first trade failed: %d %s", w.Code, w.Body.String())
	}
	w = doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(400),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("trade at limit should succeed: %d %s", w.Code, w.Body.String())
	}

	// One Seed over the cap.
	w = doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(1),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for per-decision limit, got %d: %s", w.Code, w.Body.String())
	}
}

func TestExecuteTrade_CategoryLimitExceeded(t *testing.T) {
	_, ms, router := newTestEnv(t)
	creditUser(t, ms, "alice", 10000)
	for _, id := range []string{"dec-1", "dec-2", "dec-3", "dec-4", "dec-5"} {
		seedDecision(t, ms, id, "housing")
	}

	// 5 × 1000 reaches the category cap (5000).
	for _, id := range []string{"dec-1", "dec-2", "dec-3", "dec-4", "dec-5"} {
		w := doTrade(t, router, trade.TradeRequest{
			UserID: "alice", DecisionID: id, Side: "yes", SeedAmount: d(1000),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("trade on %s failed: %d %s", id, w.Code, w.Body.String())
		}
	}

	seedDecision(t, ms, "dec-6", "housing")
	w := doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-6", Side: "yes", SeedAmount: d(1),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for category limit, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Featured bid tests ---

func TestPlaceBid_OutbidRefundsPrevious(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 100)
	creditUser(t, ms, "bob", 200)

	bid := func(user string, amount float64) *httptest.ResponseRecorder {
		body, _ := json.Marshal(trade.BidRequest{UserID: user, Amount: d(amount)})
		req := httptest.NewRequest("POST", "/api/v1/decisions/dec-1/bid", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := bid("alice", 50); w.Code != http.StatusOK {
		t.Fatalf("first bid failed: %d %s", w.Code, w.Body.String())
	}

	// Equal bid does not win.
	if w := bid("bob", 50); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for non-exceeding bid, got %d", w.Code)
	}

	if w := bid("bob", 60); w.Code != http.StatusOK {
		t.Fatalf("outbid failed: %d %s", w.Code, w.Body.String())
	}

	// Alice got her 50 back.
	balance, _ := ms.GetBalance(context.Background(), "alice")
	if !balance.Equal(d(100)) {
		t.Errorf("previous bidder should be refunded, got balance %s", balance)
	}

	pool, _ := ms.GetPool(context.Background(), "dec-1")
	if pool.CurrentBidder != "bob" {
		t.Errorf("expected current bidder bob, got %s", pool.CurrentBidder)
	}
	if !pool.CurrentBidPrice.Equal(d(60)) {
		t.Errorf("expected bid price 60, got %s", pool.CurrentBidPrice)
	}
}

func TestPlaceBid_InsufficientFunds(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	body, _ := json.Marshal(trade.BidRequest{UserID: "pauper", Amount: d(10)})
	req := httptest.NewRequest("POST", "/api/v1/decisions/dec-1/bid", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for unfunded bid, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Decision creation via API ---

func TestCreateDecision_Valid(t *testing.T) {
	_, ms, router := newTestEnv(t)

	now := time.Now().UTC()
	body, _ := json.Marshal(trade.CreateDecisionRequest{
		Title:       "Raise the minimum wage",
		Category:    "economy",
		Indicators:  []string{"unemployment_rate"},
		InvestStart: now.Add(-time.Hour),
		InvestEnd:   now.Add(30 * 24 * time.Hour),
		ResolveBy:   now.Add(90 * 24 * time.Hour),
	})

	req := httptest.NewRequest("POST", "/api/v1/decisions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var dec model.Decision
	json.Unmarshal(w.Body.Bytes(), &dec)

	if dec.ID == "" {
		t.Fatal("expected non-empty decision id")
	}
	if dec.Status != model.StatusTracking {
		t.Errorf("open invest window should be tracking, got %s", dec.Status)
	}

	// Pool bootstrapped with service defaults.
	pool, err := ms.GetPool(context.Background(), dec.ID)
	if err != nil {
		t.Fatalf("pool not created: %v", err)
	}
	if !pool.GhostSupply.Equal(d(5000)) {
		t.Errorf("expected default ghost supply 5000, got %s", pool.GhostSupply)
	}
	if !pool.Slope.Equal(d(0.01)) {
		t.Errorf("expected default slope 0.01, got %s", pool.Slope)
	}
	// slope × ghost = 50 → price starts at even odds.
	if !pool.RealPrice.IsPositive() {
		t.Errorf("expected positive bootstrap price, got %s", pool.RealPrice)
	}
}

func TestCreateDecision_FutureWindowIsAnnounced(t *testing.T) {
	_, _, router := newTestEnv(t)

	now := time.Now().UTC()
	body, _ := json.Marshal(trade.CreateDecisionRequest{
		Title:       "Future decision",
		Category:    "economy",
		Indicators:  []string{"unemployment_rate"},
		InvestStart: now.Add(24 * time.Hour),
		InvestEnd:   now.Add(48 * time.Hour),
		ResolveBy:   now.Add(96 * time.Hour),
	})

	req := httptest.NewRequest("POST", "/api/v1/decisions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var dec model.Decision
	json.Unmarshal(w.Body.Bytes(), &dec)
	if dec.Status != model.StatusAnnounced {
		t.Errorf("future invest window should be announced, got %s", dec.Status)
	}
}

func TestCreateDecision_UnknownIndicator(t *testing.T) {
	_, _, router := newTestEnv(t)

	now := time.Now().UTC()
	body, _ := json.Marshal(trade.CreateDecisionRequest{
		Title:       "Bad decision",
		Category:    "economy",
		Indicators:  []string{"gdp_per_capita"},
		InvestStart: now,
		InvestEnd:   now.Add(time.Hour),
		ResolveBy:   now.Add(2 * time.Hour),
	})

	req := httptest.NewRequest("POST", "/api/v1/decisions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown indicator, got %d", w.Code)
	}
}

// --- Measurements ---

func TestIngestMeasurement(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	body, _ := json.Marshal(trade.MeasurementRequest{
		IndicatorID: "unemployment_rate",
		MeasureType: "baseline",
		Value:       d(5.2),
	})
	req := httptest.NewRequest("POST", "/api/v1/decisions/dec-1/measurements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	stored, err := ms.GetMeasurements(context.Background(), "dec-1", "unemployment_rate")
	if err != nil {
		t.Fatalf("failed to read measurements: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 measurement, got %d", len(stored))
	}
	if stored[0].MeasuredAt.IsZero() {
		t.Error("expected measured_at to default to now")
	}
}

func TestIngestMeasurement_InvalidMeasureType(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	body, _ := json.Marshal(trade.MeasurementRequest{
		IndicatorID: "unemployment_rate",
		MeasureType: "weekly",
		Value:       d(5.2),
	})
	req := httptest.NewRequest("POST", "/api/v1/decisions/dec-1/measurements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid measure_type, got %d", w.Code)
	}
}

// --- Price and history ---

func TestGetPrice(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")

	req := httptest.NewRequest("GET", "/api/v1/decisions/dec-1/price", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.PriceResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	// slope 0.01 × ghost 5000 → base price 50, even odds.
	if !resp.BasePrice.Equal(d(50)) {
		t.Errorf("expected base price 50 at bootstrap, got %s", resp.BasePrice)
	}
	if !resp.Probability.Equal(d(50)) {
		t.Errorf("expected probability 50 at bootstrap, got %s", resp.Probability)
	}
	if !resp.LiquidityRatio.IsZero() {
		t.Errorf("expected zero liquidity ratio with no real supply, got %s", resp.LiquidityRatio)
	}
}

func TestGetHistory(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 1000)

	for i := 0; i < 3; i++ {
		w := doTrade(t, router, trade.TradeRequest{
			UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(100),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("trade %d failed: %d %s", i, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest("GET", "/api/v1/decisions/dec-1/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var points []model.PricePoint
	json.Unmarshal(w.Body.Bytes(), &points)

	if len(points) != 3 {
		t.Fatalf("expected 3 price points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Price.GreaterThan(points[i-1].Price) {
			t.Errorf("price history should be rising: %s then %s",
				points[i-1].Price, points[i].Price)
		}
	}
}

// --- Balances ---

func TestCreditAndGetBalance(t *testing.T) {
	_, _, router := newTestEnv(t)

	body, _ := json.Marshal(trade.CreditRequest{Amount: d(250)})
	req := httptest.NewRequest("POST", "/api/v1/balance/alice/credit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/v1/balance/alice", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		UserID  string          `json:"user_id"`
		Balance decimal.Decimal `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Balance.Equal(d(250)) {
		t.Errorf("expected balance 250, got %s", resp.Balance)
	}
}

// --- Positions ---

func TestGetPositions(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedDecision(t, ms, "dec-1", "housing")
	creditUser(t, ms, "alice", 500)

	doTrade(t, router, trade.TradeRequest{
		UserID: "alice", DecisionID: "dec-1", Side: "yes", SeedAmount: d(100),
	})

	req := httptest.NewRequest("GET", "/api/v1/positions/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var positions []model.Position
	json.Unmarshal(w.Body.Bytes(), &positions)

	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].Side != model.SideYes {
		t.Errorf("expected yes position, got %s", positions[0].Side)
	}
	if !positions[0].CostBasis.Equal(d(100)) {
		t.Errorf("expected cost basis 100, got %s", positions[0].CostBasis)
	}
}

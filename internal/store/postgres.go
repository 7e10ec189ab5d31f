package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/ledger"
	"github.com/seedlabs/decision-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision and
// moved as strings. Each atomic unit runs in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Ledger ---

func (s *PostgresStore) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var b string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM balances WHERE user_id = $1`, userID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance %s: %w", userID, err)
	}
	bal, _ := decimal.NewFromString(b)
	return bal, nil
}

func (s *PostgresStore) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO balances (user_id, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		userID, amount.String())
	return err
}

func (s *PostgresStore) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE balances SET balance = balance - $2::NUMERIC
		 WHERE user_id = $1 AND balance >= $2::NUMERIC`,
		userID, amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

// debitTx is Debit inside an existing transaction.
func debitTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		`UPDATE balances SET balance = balance - $2::NUMERIC
		 WHERE user_id = $1 AND balance >= $2::NUMERIC`,
		userID, amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

func creditTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (user_id, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		userID, amount.String())
	return err
}

// --- Decisions ---

const decisionColumns = `id, title, category, status, indicators,
	invest_start, invest_end, resolve_by, created_at, resolved_at`

func scanDecision(row pgx.Row) (*model.Decision, error) {
	var d model.Decision
	err := row.Scan(&d.ID, &d.Title, &d.Category, &d.Status, &d.Indicators,
		&d.InvestStart, &d.InvestEnd, &d.ResolveBy, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) CreateDecision(ctx context.Context, d *model.Decision, pool *model.MarketPool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO decisions (id, title, category, status, indicators,
		                        invest_start, invest_end, resolve_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Title, d.Category, d.Status, d.Indicators,
		d.InvestStart, d.InvestEnd, d.ResolveBy, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", d.ID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO market_pools (decision_id, ghost_supply, real_supply, slope,
		                           yes_shares, no_shares, staked, real_price,
		                           current_bid_price, current_bidder, settled)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC,
		         $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
		         $9::NUMERIC, $10, $11)`,
		pool.DecisionID, pool.GhostSupply.String(), pool.RealSupply.String(), pool.Slope.String(),
		pool.YesShares.String(), pool.NoShares.String(), pool.Staked.String(), pool.RealPrice.String(),
		pool.CurrentBidPrice.String(), pool.CurrentBidder, pool.Settled)
	if err != nil {
		return fmt.Errorf("insert pool %s: %w", pool.DecisionID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	d, err := scanDecision(s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: decision %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context) ([]model.Decision, error) {
	return s.queryDecisions(ctx,
		`SELECT `+decisionColumns+` FROM decisions ORDER BY created_at`)
}

func (s *PostgresStore) ListDueDecisions(ctx context.Context, asOf time.Time) ([]model.Decision, error) {
	return s.queryDecisions(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE status <> 'resolved' AND resolve_by <= $1
		 ORDER BY resolve_by`, asOf)
}

func (s *PostgresStore) ListUnsettledDecisions(ctx context.Context) ([]model.Decision, error) {
	return s.queryDecisions(ctx,
		`SELECT d.id, d.title, d.category, d.status, d.indicators,
		        d.invest_start, d.invest_end, d.resolve_by, d.created_at, d.resolved_at
		 FROM decisions d
		 JOIN market_pools p ON p.decision_id = d.id
		 WHERE d.status = 'resolved' AND NOT p.settled
		 ORDER BY d.resolved_at`)
}

func (s *PostgresStore) queryDecisions(ctx context.Context, sql string, args ...any) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// --- Market pool ---

func (s *PostgresStore) GetPool(ctx context.Context, decisionID string) (*model.MarketPool, error) {
	var p model.MarketPool
	var ghost, real, slope, yes, no, staked, price, bid string

	err := s.pool.QueryRow(ctx,
		`SELECT decision_id, ghost_supply::TEXT, real_supply::TEXT, slope::TEXT,
		        yes_shares::TEXT, no_shares::TEXT, staked::TEXT, real_price::TEXT,
		        current_bid_price::TEXT, current_bidder, settled
		 FROM market_pools WHERE decision_id = $1`, decisionID).
		Scan(&p.DecisionID, &ghost, &real, &slope,
			&yes, &no, &staked, &price,
			&bid, &p.CurrentBidder, &p.Settled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: pool %s", ErrNotFound, decisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", decisionID, err)
	}

	p.GhostSupply, _ = decimal.NewFromString(ghost)
	p.RealSupply, _ = decimal.NewFromString(real)
	p.Slope, _ = decimal.NewFromString(slope)
	p.YesShares, _ = decimal.NewFromString(yes)
	p.NoShares, _ = decimal.NewFromString(no)
	p.Staked, _ = decimal.NewFromString(staked)
	p.RealPrice, _ = decimal.NewFromString(price)
	p.CurrentBidPrice, _ = decimal.NewFromString(bid)

	return &p, nil
}

// --- Atomic units ---

func (s *PostgresStore) ApplyTrade(ctx context.Context, params ApplyTradeParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tr := params.Trade
	if err := debitTx(ctx, tx, tr.UserID, tr.SeedAmount); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE market_pools
		 SET real_supply = $2::NUMERIC, yes_shares = $3::NUMERIC, no_shares = $4::NUMERIC,
		     staked = $5::NUMERIC, real_price = $6::NUMERIC
		 WHERE decision_id = $1 AND NOT settled`,
		tr.DecisionID, params.NewRealSupply.String(), params.NewYesShares.String(),
		params.NewNoShares.String(), params.NewStaked.String(), params.NewRealPrice.String())
	if err != nil {
		return fmt.Errorf("update pool %s: %w", tr.DecisionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pool %s", ErrNotFound, tr.DecisionID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO trades (id, decision_id, user_id, side, seed_amount, shares, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		tr.ID, tr.DecisionID, tr.UserID, tr.Side,
		tr.SeedAmount.String(), tr.Shares.String(), tr.Price.String(), tr.Timestamp)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", tr.ID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO positions (user_id, decision_id, side, shares, cost_basis)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (user_id, decision_id, side) DO UPDATE
		 SET shares = positions.shares + EXCLUDED.shares,
		     cost_basis = positions.cost_basis + EXCLUDED.cost_basis`,
		tr.UserID, tr.DecisionID, tr.Side, tr.Shares.String(), tr.SeedAmount.String())
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ApplyResolution(ctx context.Context, res *model.Resolution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE decisions SET status = 'resolved', resolved_at = $2
		 WHERE id = $1 AND status <> 'resolved'`,
		res.DecisionID, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("resolve decision %s: %w", res.DecisionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}

	variations, err := json.Marshal(res.Variations)
	if err != nil {
		return fmt.Errorf("marshal variations: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO resolutions (id, decision_id, issue, confidence, variations, method, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.DecisionID, res.Issue, res.Confidence, variations, res.Method, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert resolution %s: %w", res.ID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ApplySettlement(ctx context.Context, decisionID string, payouts []Payout) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE market_pools SET settled = TRUE
		 WHERE decision_id = $1 AND NOT settled`, decisionID)
	if err != nil {
		return fmt.Errorf("mark settled %s: %w", decisionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}

	for _, p := range payouts {
		if err := creditTx(ctx, tx, p.UserID, p.Amount); err != nil {
			return fmt.Errorf("credit payout %s: %w", p.UserID, err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE positions SET shares = 0, cost_basis = 0 WHERE decision_id = $1`, decisionID)
	if err != nil {
		return fmt.Errorf("zero positions %s: %w", decisionID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) PlaceFeaturedBid(ctx context.Context, decisionID, userID string, amount decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var bidStr, bidder string
	err = tx.QueryRow(ctx,
		`SELECT current_bid_price::TEXT, current_bidder
		 FROM market_pools WHERE decision_id = $1 FOR UPDATE`, decisionID).
		Scan(&bidStr, &bidder)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: pool %s", ErrNotFound, decisionID)
	}
	if err != nil {
		return fmt.Errorf("lock pool %s: %w", decisionID, err)
	}

	currentBid, _ := decimal.NewFromString(bidStr)
	if amount.LessThanOrEqual(currentBid) {
		return ErrBidTooLow
	}

	if err := debitTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	if bidder != "" {
		if err := creditTx(ctx, tx, bidder, currentBid); err != nil {
			return fmt.Errorf("refund bidder %s: %w", bidder, err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE market_pools SET current_bid_price = $2::NUMERIC, current_bidder = $3
		 WHERE decision_id = $1`,
		decisionID, amount.String(), userID)
	if err != nil {
		return fmt.Errorf("update bid %s: %w", decisionID, err)
	}

	return tx.Commit(ctx)
}

// --- Price history ---

func (s *PostgresStore) ListTrades(ctx context.Context, decisionID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, decision_id, user_id, side,
		        seed_amount::TEXT, shares::TEXT, price::TEXT, timestamp
		 FROM trades WHERE decision_id = $1 ORDER BY timestamp`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var tr model.Trade
		var amountS, sharesS, priceS string
		if err := rows.Scan(&tr.ID, &tr.DecisionID, &tr.UserID, &tr.Side,
			&amountS, &sharesS, &priceS, &tr.Timestamp); err != nil {
			return nil, err
		}
		tr.SeedAmount, _ = decimal.NewFromString(amountS)
		tr.Shares, _ = decimal.NewFromString(sharesS)
		tr.Price, _ = decimal.NewFromString(priceS)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// --- Positions ---

func (s *PostgresStore) ListPositionsByDecision(ctx context.Context, decisionID string) ([]model.Position, error) {
	return s.queryPositions(ctx,
		`SELECT user_id, decision_id, side, shares::TEXT, cost_basis::TEXT
		 FROM positions WHERE decision_id = $1`, decisionID)
}

func (s *PostgresStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error) {
	return s.queryPositions(ctx,
		`SELECT user_id, decision_id, side, shares::TEXT, cost_basis::TEXT
		 FROM positions WHERE user_id = $1`, userID)
}

func (s *PostgresStore) queryPositions(ctx context.Context, sql string, args ...any) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		var sharesS, costS string
		if err := rows.Scan(&p.UserID, &p.DecisionID, &p.Side, &sharesS, &costS); err != nil {
			return nil, err
		}
		p.Shares, _ = decimal.NewFromString(sharesS)
		p.CostBasis, _ = decimal.NewFromString(costS)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUserStakes(ctx context.Context, userID string) (map[string]decimal.Decimal, map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.decision_id, d.category, SUM(p.cost_basis)::TEXT
		 FROM positions p
		 JOIN decisions d ON d.id = p.decision_id
		 WHERE p.user_id = $1
		 GROUP BY p.decision_id, d.category`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byDecision := make(map[string]decimal.Decimal)
	byCategory := make(map[string]decimal.Decimal)
	for rows.Next() {
		var decisionID, category, stakeS string
		if err := rows.Scan(&decisionID, &category, &stakeS); err != nil {
			return nil, nil, err
		}
		stake, _ := decimal.NewFromString(stakeS)
		byDecision[decisionID] = stake
		if category != "" {
			byCategory[category] = byCategory[category].Add(stake)
		}
	}
	return byDecision, byCategory, rows.Err()
}

// --- Indicator data ---

func (s *PostgresStore) InsertMeasurement(ctx context.Context, m *model.IndicatorData) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO indicator_data (decision_id, indicator_id, measure_type, value, measured_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		m.DecisionID, m.IndicatorID, m.MeasureType, m.Value.String(), m.MeasuredAt)
	return err
}

func (s *PostgresStore) GetMeasurements(ctx context.Context, decisionID, indicatorID string) ([]model.IndicatorData, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT decision_id, indicator_id, measure_type, value::TEXT, measured_at
		 FROM indicator_data
		 WHERE decision_id = $1 AND indicator_id = $2
		 ORDER BY measured_at`, decisionID, indicatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IndicatorData
	for rows.Next() {
		var m model.IndicatorData
		var valueS string
		if err := rows.Scan(&m.DecisionID, &m.IndicatorID, &m.MeasureType, &valueS, &m.MeasuredAt); err != nil {
			return nil, err
		}
		m.Value, _ = decimal.NewFromString(valueS)
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Resolutions ---

func (s *PostgresStore) GetResolution(ctx context.Context, decisionID string) (*model.Resolution, error) {
	var res model.Resolution
	var variations []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, decision_id, issue, confidence, variations, method, resolved_at
		 FROM resolutions WHERE decision_id = $1`, decisionID).
		Scan(&res.ID, &res.DecisionID, &res.Issue, &res.Confidence,
			&variations, &res.Method, &res.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: resolution %s", ErrNotFound, decisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get resolution %s: %w", decisionID, err)
	}

	if err := json.Unmarshal(variations, &res.Variations); err != nil {
		return nil, fmt.Errorf("unmarshal variations: %w", err)
	}
	return &res, nil
}

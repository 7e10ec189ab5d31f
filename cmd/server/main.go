package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/config"
	"github.com/seedlabs/decision-engine/internal/curve"
	"github.com/seedlabs/decision-engine/internal/indicator"
	"github.com/seedlabs/decision-engine/internal/limits"
	"github.com/seedlabs/decision-engine/internal/metrics"
	"github.com/seedlabs/decision-engine/internal/resolution"
	"github.com/seedlabs/decision-engine/internal/sched"
	"github.com/seedlabs/decision-engine/internal/settlement"
	"github.com/seedlabs/decision-engine/internal/store"
	"github.com/seedlabs/decision-engine/internal/trade"
)

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Indicator catalog and resolution rules ---
	catalog, err := indicator.LoadCatalog(cfg.Rules.CatalogPath)
	if err != nil {
		slog.Error("failed to load indicator catalog", "path", cfg.Rules.CatalogPath, "err", err)
		os.Exit(1)
	}
	slog.Info("indicator catalog loaded", "indicators", catalog.Len())

	rules := resolution.DefaultRules()
	if cfg.Rules.RulesPath != "" {
		rules, err = resolution.LoadRules(cfg.Rules.RulesPath)
		if err != nil {
			slog.Error("failed to load resolution rules", "path", cfg.Rules.RulesPath, "err", err)
			os.Exit(1)
		}
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("invalid database url", "err", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.Database.PoolMaxConns)
		poolCfg.MinConns = int32(cfg.Database.PoolMinConns)

		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, time.Duration(cfg.Redis.CacheTTLSecs)*time.Second)
			slog.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
		}
	} else {
		slog.Warn("database url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Pricing engine ---
	engine, err := curve.New(curve.Params{
		MinLiquidityRatio:  cfg.Curve.MinLiquidityRatio,
		MaxLiquidityRatio:  cfg.Curve.MaxLiquidityRatio,
		ProbabilityDamping: cfg.Curve.ProbabilityDamping,
		ProbabilityFloor:   cfg.Curve.ProbabilityFloor,
	})
	if err != nil {
		slog.Error("invalid curve parameters", "err", err)
		os.Exit(1)
	}

	// --- Stake limits ---
	limiter := limits.NewStakeLimiter(
		decimal.NewFromFloat(cfg.Limits.MaxStakePerDecision),
		decimal.NewFromFloat(cfg.Limits.MaxStakePerCategory),
	)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	locks := store.NewDecisionLocks()
	tradeSvc := trade.NewService(
		st, engine, limiter, locks, catalog, wsHub,
		decimal.NewFromFloat(cfg.Curve.DefaultGhostSupply),
		decimal.NewFromFloat(cfg.Curve.DefaultSlope),
	)

	// --- Resolution and settlement sweeps ---
	resEngine, err := resolution.NewEngine(rules, catalog)
	if err != nil {
		slog.Error("invalid resolution rules", "err", err)
		os.Exit(1)
	}
	settler := settlement.NewSettler(st, locks)
	sweeper := sched.NewSweeper(st, resEngine, settler, locks)
	tradeSvc.SetResolver(sweeper)

	baseCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()

	if cfg.Sweep.Enabled {
		runner := sched.NewRunner(baseCtx)
		if _, err := runner.Add(cfg.Sweep.ResolutionCron, sweeper.SweepResolutions); err != nil {
			slog.Error("invalid resolution cron spec", "spec", cfg.Sweep.ResolutionCron, "err", err)
			os.Exit(1)
		}
		if _, err := runner.Add(cfg.Sweep.SettlementCron, sweeper.SweepSettlements); err != nil {
			slog.Error("invalid settlement cron spec", "spec", cfg.Sweep.SettlementCron, "err", err)
			os.Exit(1)
		}
		runner.Start()
		defer runner.Stop()
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	corsOrigin := "*"
	if len(cfg.Server.CORSOrigins) == 1 {
		corsOrigin = cfg.Server.CORSOrigins[0]
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"decision-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time market updates.
		r.Get("/ws", wsHub.HandleWS)

		// Decision management.
		r.Get("/decisions", tradeSvc.ListDecisions)
		r.Post("/decisions", tradeSvc.CreateDecision)
		r.Get("/decisions/{decisionID}", tradeSvc.GetDecision)
		r.Get("/decisions/{decisionID}/price", tradeSvc.GetPrice)
		r.Get("/decisions/{decisionID}/history", tradeSvc.GetHistory)
		r.Get("/decisions/{decisionID}/resolution", tradeSvc.GetResolution)
		r.Post("/decisions/{decisionID}/resolve", tradeSvc.TriggerResolve)
		r.Post("/decisions/{decisionID}/bid", tradeSvc.PlaceBid)
		r.Post("/decisions/{decisionID}/measurements", tradeSvc.IngestMeasurement)

		// Trade execution.
		r.Post("/trade", tradeSvc.ExecuteTrade)

		// Position and balance queries.
		r.Get("/positions/{userID}", tradeSvc.GetPositions)
		r.Get("/balance/{userID}", tradeSvc.GetBalance)
		r.Post("/balance/{userID}/credit", tradeSvc.CreditBalance)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("decision-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down decision-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("decision-engine stopped")
}

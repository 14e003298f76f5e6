package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-vault/internal/api"
	"github.com/atmx/option-vault/internal/config"
	"github.com/atmx/option-vault/internal/feed"
	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/limits"
	"github.com/atmx/option-vault/internal/metrics"
	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/oracle"
	"github.com/atmx/option-vault/internal/store"
	"github.com/atmx/option-vault/internal/swap"
	"github.com/atmx/option-vault/internal/vault"
)

func main() {
	cfg, err := config.Load(os.Getenv("VAULT_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()
	owner := cfg.OwnerAddress()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid redis_url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("database_url not set, using in-memory event store (events will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger ---
	led := ledger.NewMemory()
	symbols, err := seedLedger(cfg, led)
	if err != nil {
		slog.Error("ledger setup failed", "err", err)
		os.Exit(1)
	}

	// --- Event fan-out: journal + WebSocket ---
	wsHub := api.NewWSHub(logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go wsHub.Run(hubCtx)
	sink := model.MultiSink(store.NewJournal(st, logger), wsHub)

	// --- Oracles ---
	deployer := model.NewDeployer(owner)
	manager := oracle.NewManager(deployer.Next(), owner, model.SystemClock{}, sink, logger)

	var rpc *ethclient.Client
	if cfg.RPCURL != "" {
		rpc, err = ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			slog.Error("rpc connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, rpc.Close)
		slog.Info("connected to JSON-RPC endpoint")
	}
	if err := registerOracles(ctx, cfg, deployer, manager, led, rpc); err != nil {
		slog.Error("oracle setup failed", "err", err)
		os.Exit(1)
	}

	// --- Swap venue ---
	venue := swap.NewOracleVenue(deployer.Next(), led, manager, logger)
	liquidity, _ := cfg.VenueLiquidityValue()
	if liquidity.IsPositive() {
		for _, tok := range led.Tokens() {
			amount, err := baseUnits(liquidity, tok.Decimals)
			if err == nil {
				err = led.SetBalance(tok.Address, venue.Address(), amount)
			}
			if err != nil {
				slog.Error("venue funding failed", "token", tok.Symbol, "err", err)
				os.Exit(1)
			}
		}
	}

	// --- Vaults ---
	params := vault.Params{
		Owner:         owner,
		Quote:         symbols[cfg.Vault.QuoteToken],
		Hedge:         symbols[cfg.Vault.HedgeToken],
		PremiumFeeBps: cfg.Vault.PremiumFeeBps,
		ExpiryWindow:  cfg.Vault.ExpiryWindow,
		Ledger:        led,
		Pricer:        manager,
		Venue:         venue,
		Clock:         model.SystemClock{},
		Events:        sink,
		Logger:        logger,
	}
	longParams, shortParams := params, params
	longParams.Address = deployer.Next()
	shortParams.Address = deployer.Next()

	long, err := vault.NewLongVault(longParams)
	if err != nil {
		slog.Error("long vault setup failed", "err", err)
		os.Exit(1)
	}
	short, err := vault.NewShortVault(shortParams)
	if err != nil {
		slog.Error("short vault setup failed", "err", err)
		os.Exit(1)
	}

	slog.Info("deployment ready",
		"owner", owner,
		"oracle_manager", manager.Address(),
		"swap_venue", venue.Address(),
		"long_vault", long.Address(),
		"short_vault", short.Address(),
		"quote", cfg.Vault.QuoteToken,
		"hedge", cfg.Vault.HedgeToken,
	)

	// --- Deposit limits ---
	maxPerWriter, maxOpenInterest, _ := cfg.LimitValues()
	limiter := limits.NewDepositLimiter(maxPerWriter, maxOpenInterest)

	// --- Vault service ---
	svc := api.NewService(api.Config{
		Registry: manager,
		Ledger:   led,
		Store:    st,
		Limiter:  limiter,
		Logger:   logger,
	}, long, short)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
		w.Write([]byte(`{"status":"ok","service":"option-vault"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for committed events.
		r.Get("/ws", wsHub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	addr := ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("option-vault listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("shutting down option-vault...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stopHub()
	fmt.Println("option-vault stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	lvl, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// seedLedger registers the configured tokens and opening balances and
// returns the symbol table, native asset included.
func seedLedger(cfg *config.Config, led *ledger.Memory) (map[string]common.Address, error) {
	symbols := map[string]common.Address{config.NativeSymbol: model.NativeToken}
	decimals := map[string]uint8{config.NativeSymbol: 18}

	tokens, err := cfg.TokenSpecs()
	if err != nil {
		return nil, err
	}
	for _, t := range tokens {
		if err := led.RegisterToken(t.Address, t.Symbol, t.Decimals); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Symbol, err)
		}
		symbols[t.Symbol] = t.Address
		decimals[t.Symbol] = t.Decimals
	}

	balances, err := cfg.BalanceSpecs()
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		amount, err := baseUnits(b.Amount, decimals[b.Symbol])
		if err != nil {
			return nil, fmt.Errorf("balance %s of %s: %w", b.Symbol, b.Account, err)
		}
		if err := led.SetBalance(symbols[b.Symbol], b.Account, amount); err != nil {
			return nil, fmt.Errorf("balance %s of %s: %w", b.Symbol, b.Account, err)
		}
	}
	return symbols, nil
}

// registerOracles wires one Chainlink oracle per configured feed and the
// stable pairs into the manager.
func registerOracles(ctx context.Context, cfg *config.Config, deployer *model.Deployer, manager *oracle.Manager, led *ledger.Memory, rpc *ethclient.Client) error {
	owner := cfg.OwnerAddress()
	feeds, err := cfg.FeedSpecs()
	if err != nil {
		return err
	}
	for _, f := range feeds {
		var pf feed.PriceFeed
		if f.Mock {
			pf = feed.NewMockWithAnswer(f.MockDecimals, f.MockAnswer)
		} else {
			pf = feed.NewChainlink(rpc, f.Feed)
		}
		o, err := oracle.NewChainlinkOracle(ctx, deployer.Next(), f.TokenA, f.TokenB, pf, led)
		if err != nil {
			return fmt.Errorf("oracle %s/%s: %w", f.TokenA, f.TokenB, err)
		}
		if err := manager.RegisterOracle(ctx, owner, f.TokenA, f.TokenB, o); err != nil {
			return err
		}
	}

	stables, err := cfg.StableSpecs()
	if err != nil {
		return err
	}
	for _, p := range stables {
		if err := manager.RegisterStable(ctx, owner, p.TokenA, p.TokenB); err != nil {
			return err
		}
	}
	return nil
}

// baseUnits scales a whole-token amount to base units.
func baseUnits(amount decimal.Decimal, dec uint8) (*uint256.Int, error) {
	scaled := amount.Shift(int32(dec))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%s has more than %d decimals", amount, dec)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%s overflows 256 bits", amount)
	}
	return v, nil
}

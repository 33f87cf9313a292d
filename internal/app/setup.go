package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/internal/decision"
	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/execution"
	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/internal/risk"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/internal/storage"
	"github.com/mselser95/btc15m-maker/pkg/cache"
	"github.com/mselser95/btc15m-maker/pkg/config"
	"github.com/mselser95/btc15m-maker/pkg/healthprobe"
	"github.com/mselser95/btc15m-maker/pkg/httpserver"
	"github.com/mselser95/btc15m-maker/pkg/spotcache"
	"github.com/mselser95/btc15m-maker/pkg/types"
	"github.com/mselser95/btc15m-maker/pkg/websocket"
)

// New creates a new application instance. It requires an active Matrix
// snapshot to already exist in the configured Matrix Store — a Matrix
// absent at startup is a fatal configuration error (spec §7).
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := validateBucketingScheme(cfg, logger); err != nil {
		cancel()
		return nil, fmt.Errorf("validate bucketing scheme: %w", err)
	}

	healthChecker := setupHealthChecker()

	quoteCache, err := setupQuoteCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup quote cache: %w", err)
	}

	matrixStore, spotCacheClient, err := setupMatrixStore(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup matrix store: %w", err)
	}

	snap, err := matrixStore.LoadActive(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load active matrix snapshot: %w", err)
	}
	if snap == nil {
		cancel()
		return nil, fmt.Errorf("no active matrix snapshot: run the 'build' subcommand first")
	}

	spotFeed, spot := setupSpotSource(cfg, logger, quoteCache)
	market := setupMarket(cfg, logger, quoteCache)

	arbStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	riskAccounting := setupRisk(cfg, logger)
	execManager := setupExecutor(cfg, logger, market)
	engine := setupEngine(cfg, logger, snap.Matrix, spot, market, execManager, riskAccounting, arbStorage)

	httpServer := setupHTTPServer(cfg, logger, healthChecker, engine, matrixStore)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		spot:          spot,
		spotFeed:      spotFeed,
		market:        market,
		matrixStore:   matrixStore,
		spotCache:     spotCacheClient,
		risk:          riskAccounting,
		exec:          execManager,
		engine:        engine,
		storage:       arbStorage,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func validateBucketingScheme(cfg *config.Config, logger *zap.Logger) error {
	manifest, err := matrix.LoadScheme(cfg.MatrixSchemePath)
	if err != nil {
		logger.Warn("bucketing-scheme-manifest-unavailable-using-compiled-default",
			zap.String("path", cfg.MatrixSchemePath), zap.Error(err))
		manifest = matrix.DefaultScheme()
	}
	return manifest.Validate()
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

// setupQuoteCache builds the ristretto L1 cache shared by the spot and book
// collaborators (spec §4.G step 2-3 "cached <= 500ms"/"cached <= 200ms").
func setupQuoteCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupMatrixStore builds the configured Matrix Store, wrapping it in a
// NotifyingStore when Redis pub/sub is configured so Save publishes a
// snapshot-replaced notification (spec §4.D hot-swap, §8 scenario 6).
func setupMatrixStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (matrix.Store, *spotcache.Cache, error) {
	store, err := OpenMatrixStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RedisAddr == "" {
		return store, nil, nil
	}

	sc, err := spotcache.New(ctx, spotcache.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Logger: logger})
	if err != nil {
		logger.Warn("spotcache-unavailable-hot-reload-disabled", zap.Error(err))
		return store, nil, nil
	}

	return matrix.NewNotifyingStore(store, sc, logger), sc, nil
}

// OpenMatrixStore opens the Matrix Store configured by cfg (postgres or
// file-backed), without the Redis hot-reload wrapper. Exported for the
// build/query/stats/backtest CLI subcommands, which read or write a single
// snapshot and have no need for pub/sub notification.
func OpenMatrixStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (matrix.Store, error) {
	if cfg.StorageMode == "postgres" {
		return matrix.NewPostgresStore(ctx, &matrix.PostgresConfig{
			Host:      cfg.PostgresHost,
			Port:      cfg.PostgresPort,
			User:      cfg.PostgresUser,
			Password:  cfg.PostgresPass,
			Database:  cfg.PostgresDB,
			SSLMode:   cfg.PostgresSSL,
			Retention: matrix.DefaultRetention,
			Logger:    logger,
		})
	}

	return matrix.NewFileStore(cfg.MatrixSnapshotPath, logger, matrix.DefaultRetention)
}

func setupSpotSource(cfg *config.Config, logger *zap.Logger, c cache.Cache) (*websocket.SpotFeed, collaborators.SpotPriceSource) {
	feed := websocket.NewSpotFeed(websocket.SpotFeedConfig{
		URL:                   cfg.SpotFeedURL,
		ProductID:             cfg.SpotFeedProductID,
		DialTimeout:           5 * time.Second,
		PingInterval:          30 * time.Second,
		ReconnectInitialDelay: 1 * time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectBackoffMult:  2.0,
		Logger:                logger,
	})

	cached := collaborators.NewCachedSpotSource(feed, c, 500*time.Millisecond, logger)
	return feed, cached
}

func setupMarket(cfg *config.Config, logger *zap.Logger, c cache.Cache) collaborators.PredictionMarket {
	upstream := collaborators.NewRESTMarket(collaborators.RESTMarketConfig{
		BaseURL: cfg.MarketBaseURL,
		APIKey:  cfg.MarketAPIKey,
		Logger:  logger,
	})
	return collaborators.NewCachedMarket(upstream, c, 200*time.Millisecond)
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupRisk(cfg *config.Config, logger *zap.Logger) *risk.Accounting {
	return risk.NewAccounting(risk.Config{
		StartingBankroll:       decimal.NewFromFloat(cfg.BankrollStartingUSDC),
		DailyLossLimitPct:      cfg.RiskDailyLossLimitPct,
		MaxBetsPerWindow:       cfg.RiskMaxBetsPerWindow,
		LossReductionFactor:    cfg.RiskLossReductionFactor,
		ConsecutiveWinsToReset: cfg.RiskConsecutiveWinsToReset,
		CooldownEdgeMultiplier: cfg.RiskCooldownEdgeMultiplier,
		CooldownAfterLosses:    cfg.RiskCooldownAfterLosses,
		Logger:                 logger,
	})
}

func setupExecutor(cfg *config.Config, logger *zap.Logger, market collaborators.PredictionMarket) *execution.Manager {
	backoff := execution.DefaultBackoff
	backoff.MaxRetries = cfg.ExecutionMaxRetries

	return execution.NewManager(execution.Config{
		Market:      market,
		Logger:      logger,
		Backoff:     backoff,
		SlippageBps: decimal.NewFromInt(int64(cfg.ExecutionSlippageBPS)),
	})
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	m *matrix.Matrix,
	spot collaborators.SpotPriceSource,
	market collaborators.PredictionMarket,
	execManager *execution.Manager,
	riskAccounting *risk.Accounting,
	arbStorage storage.Store,
) *decision.Engine {
	return decision.NewEngine(decision.Config{
		TickInterval:              time.Duration(cfg.PollingIntervalMS) * time.Millisecond,
		MinSecondsElapsed:         cfg.TimingMinSecondsElapsed,
		MinSecondsRemaining:       cfg.TimingMinSecondsRemaining,
		MinConfidence:             parseConfidence(cfg.FiltersMinConfidence),
		MomentumAlignment:         cfg.FiltersRequireMomentumAlignment,
		LiquidityMargin:           1.0,
		MaxBetsPerWindow:          cfg.RiskMaxBetsPerWindow,
		SellProfitThreshold:       cfg.SellProfitThreshold,
		SellStrategy:              cfg.SellStrategy,
		ExitContinuationThreshold: cfg.ExitContinuationThreshold,
		Spot:                      spot,
		Market:                    market,
		Exec:                      execManager,
		EdgeCalc: edge.NewCalculator(edge.Thresholds{
			Strong:   cfg.EdgeMinStrong,
			Moderate: cfg.EdgeMinModerate,
			Weak:     cfg.EdgeMinWeak,
		}),
		Sizer: sizing.NewSizer(
			sizing.ConfidenceFractions{
				Strong:   cfg.SizingKellyFractionStrong,
				Moderate: cfg.SizingKellyFractionModerate,
				Weak:     cfg.SizingKellyFractionWeak,
			},
			sizing.Limits{
				FractionCap:       cfg.SizingMaxBetPct,
				MaxBetUSDC:        decimal.NewFromFloat(cfg.SizingMaxBetUSDC),
				MinBetUSDC:        decimal.NewFromFloat(cfg.SizingMinBetUSDC),
				DailyLossLimitPct: cfg.RiskDailyLossLimitPct,
			},
		),
		Risk:    riskAccounting,
		Storage: arbStorage,
		Logger:  logger,
	}, m)
}

func parseConfidence(s string) types.Confidence {
	switch s {
	case "strong":
		return types.Strong
	case "moderate":
		return types.Moderate
	case "weak":
		return types.Weak
	default:
		return types.Unreliable
	}
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	engine *decision.Engine,
	matrixStore matrix.Store,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Engine:        engine,
		MatrixStore:   matrixStore,
	})
}

// Package app wires configuration, storage, clients and services into one
// process-wide App shared by the HTTP server and the background workers.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folio/internal/clients/eodhd"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/events/kafka"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/services/market"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	EODHDClient      interfaces.EODHDClient
	Events           interfaces.EventPublisher
	Clock            *common.Clock
	MarketService    interfaces.MarketService
	PortfolioService interfaces.PortfolioService
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, FOLIO_CONFIG, the binary
// directory, then the development fallback.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes every service.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}

	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppWithConfig initializes every service from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()
	ctx := context.Background()

	clock, err := common.NewClock(config.Reporting.Timezone)
	if err != nil {
		return nil, err
	}

	storageManager, err := storage.NewStorageManager(ctx, logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Storage.SeedFile != "" {
		if _, err := ImportSeedFile(ctx, storageManager, logger, config.Storage.SeedFile); err != nil {
			storageManager.Close()
			return nil, fmt.Errorf("failed to import seed file: %w", err)
		}
	}

	// A nil client keeps the price store storage-only.
	var eodhdClient interfaces.EODHDClient
	if key := config.Clients.EODHD.APIKey; key != "" {
		eodhdClient = eodhd.NewClient(key,
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		)
	} else {
		logger.Warn().Msg("EODHD API key not configured - prices served from storage only")
	}

	marketService := market.NewService(storageManager.PriceStorage(), eodhdClient, clock, config.Prices, logger)
	portfolioService := portfolio.NewService(storageManager, marketService, clock, config.Portfolio, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		EODHDClient:      eodhdClient,
		Clock:            clock,
		MarketService:    marketService,
		PortfolioService: portfolioService,
		StartupTime:      startupStart,
	}

	if len(config.Events.Brokers) > 0 {
		pub := kafka.NewPublisher(config.Events.Brokers, logger)
		marketService.SetEventPublisher(pub, config.Events.TopicPrefix)
		portfolioService.SetEventPublisher(pub, config.Events.TopicPrefix)
		a.Events = pub
		logger.Info().Strs("brokers", config.Events.Brokers).Msg("Event publishing enabled")
	}

	logger.Info().
		Str("storage", storageManager.Backend()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, cancel warm cache, close events, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
		a.Events = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}

// StartWarmCache launches the background cache warming goroutine.
func (a *App) StartWarmCache() {
	if !a.Config.Scheduler.WarmCache {
		a.Logger.Info().Msg("Warm cache: disabled")
		return
	}
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.PortfolioService, a.MarketService, a.Logger)
	}()
}

// StartPriceScheduler launches the background price refresh goroutine.
func (a *App) StartPriceScheduler() {
	interval := a.Config.Scheduler.GetPriceRefreshInterval()
	if interval <= 0 {
		a.Logger.Info().Msg("Price scheduler: disabled")
		return
	}
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go startPriceScheduler(schedulerCtx, a.PortfolioService, a.MarketService, a.Logger, interval)
}

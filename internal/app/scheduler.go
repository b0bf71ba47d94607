package app

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// startPriceScheduler refreshes price history on a fixed interval for every
// symbol any account references.
func startPriceScheduler(ctx context.Context, portfolioService interfaces.PortfolioService, marketService interfaces.MarketService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Price scheduler: started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Price scheduler: stopped")
			return
		case <-ticker.C:
			refreshPrices(ctx, portfolioService, marketService, logger)
		}
	}
}

func refreshPrices(ctx context.Context, portfolioService interfaces.PortfolioService, marketService interfaces.MarketService, logger *common.Logger) {
	start := time.Now()

	symbols, err := portfolioService.Symbols(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Price refresh: failed to list symbols")
		return
	}
	if len(symbols) == 0 {
		return
	}

	// Refresh keeps going past individual failures
	if err := marketService.Refresh(ctx, symbols); err != nil {
		logger.Warn().Err(err).Msg("Price refresh: some symbols failed")
	}

	logger.Info().
		Int("symbols", len(symbols)).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}

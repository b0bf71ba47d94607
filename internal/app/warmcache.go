package app

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// warmCache loads price history on startup so the first report is fast.
func warmCache(ctx context.Context, portfolioService interfaces.PortfolioService, marketService interfaces.MarketService, logger *common.Logger) {
	start := time.Now()

	symbols, err := portfolioService.Symbols(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: failed to list symbols")
		return
	}
	if len(symbols) == 0 {
		logger.Info().Msg("Warm cache: no symbols referenced, skipping")
		return
	}

	logger.Info().Int("symbols", len(symbols)).Msg("Warm cache: starting")

	marketService.Warm(ctx, symbols)

	logger.Info().
		Int("symbols", len(symbols)).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}

package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

// PriceLookup answers historical price questions for valuation.
type PriceLookup interface {
	// Lookup returns the close for symbol on date, or the most recent close
	// strictly before it. Dates after yesterday never resolve.
	Lookup(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool)
}

// MarketService is the process-wide price store.
type MarketService interface {
	PriceLookup

	// Quote is Lookup plus fixed-price resolution, for API callers. Dates
	// after yesterday never resolve, even for fixed-price symbols.
	Quote(ctx context.Context, symbol string, date time.Time) models.PriceQuote

	// FixedPrice returns a configured constant price for symbols without a remote source.
	FixedPrice(symbol string) (decimal.Decimal, bool)

	// CurrentPrice resolves a fixed price first, then yesterday's close.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)

	// AssetClass classifies a symbol as bond or stock.
	AssetClass(symbol string) models.AssetClass

	// Refresh forces an incremental sync for the given symbols.
	Refresh(ctx context.Context, symbols []string) error

	// Warm loads caches ahead of the first request.
	Warm(ctx context.Context, symbols []string)
}

// PortfolioService produces reports for accounts.
type PortfolioService interface {
	// Report replays one account and summarises its holdings.
	Report(ctx context.Context, accountID int64) (*models.Report, error)

	// Reports computes several accounts concurrently. The returned map holds
	// successful reports; failures are joined into the error.
	Reports(ctx context.Context, accountIDs []int64) (map[int64]*models.Report, error)

	// NetWorth derives per-account and per-currency net worth.
	NetWorth(ctx context.Context) (*models.NetWorth, error)

	// AnnotatedTransactions returns an account's transactions newest first with
	// running balances.
	AnnotatedTransactions(ctx context.Context, accountID int64) ([]models.AnnotatedTransaction, error)

	// Symbols returns every security symbol referenced by any transaction.
	Symbols(ctx context.Context) ([]string, error)
}

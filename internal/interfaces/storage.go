// Package interfaces defines service contracts for folio
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates all storage backends
type StorageManager interface {
	// Storage accessors
	AccountStore() AccountStore
	TransactionStore() TransactionStore
	PriceStorage() PriceStorage

	// Backend returns the backend name ("memory", "surrealdb", "postgres").
	Backend() string

	// Lifecycle
	Close() error
}

// AccountStore persists accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	// ListAccounts returns every account ordered by Order, then ID.
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
}

// TransactionStore persists the per-account transaction log.
type TransactionStore interface {
	// ListTransactions returns an account's transactions ordered by (date, id).
	ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error)

	// SaveTransaction inserts or replaces a transaction. A zero ID is assigned
	// the next free identifier.
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
}

// PriceStorage persists tickers and their daily price history.
type PriceStorage interface {
	// Tickers
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	SaveTicker(ctx context.Context, ticker *models.Ticker) error

	// GetPrices returns every stored bar for a symbol in ascending date order.
	GetPrices(ctx context.Context, symbol string) ([]models.PriceBar, error)

	// GetPrice returns the bar for an exact date, or ErrNotFound.
	GetPrice(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error)

	// GetPriceBefore returns the most recent bar strictly before date, or ErrNotFound.
	GetPriceBefore(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error)

	// GetPriceAfter returns the earliest bar strictly after date, or ErrNotFound.
	GetPriceAfter(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error)

	// InsertPrices stores bars, ignoring any (symbol, date) already present.
	// Returns the number of rows actually inserted.
	InsertPrices(ctx context.Context, bars []models.PriceBar) (int, error)
}

// Package memory is an in-process storage backend for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

type priceKey struct {
	symbol string
	date   time.Time
}

// Store implements every storage interface over maps. Returned records are
// copies; callers cannot mutate stored state.
type Store struct {
	mu sync.RWMutex

	accounts     map[int64]models.Account
	transactions map[int64]models.Transaction
	nextTxID     int64

	tickers map[string]models.Ticker
	prices  map[priceKey]models.PriceBar
	logger  *common.Logger
}

// NewStore creates an empty store.
func NewStore(logger *common.Logger) *Store {
	return &Store{
		accounts:     make(map[int64]models.Account),
		transactions: make(map[int64]models.Transaction),
		tickers:      make(map[string]models.Ticker),
		prices:       make(map[priceKey]models.PriceBar),
		logger:       logger,
	}
}

func (s *Store) AccountStore() interfaces.AccountStore         { return s }
func (s *Store) TransactionStore() interfaces.TransactionStore { return s }
func (s *Store) PriceStorage() interfaces.PriceStorage         { return s }
func (s *Store) Backend() string                               { return "memory" }
func (s *Store) Close() error                                  { return nil }

// --- AccountStore ---

func (s *Store) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == 0 {
		for id := range s.accounts {
			if id > account.ID {
				account.ID = id
			}
		}
		account.ID++
	}
	s.accounts[account.ID] = *account
	return nil
}

// --- TransactionStore ---

func (s *Store) ListTransactions(_ context.Context, accountID int64) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID {
			continue
		}
		tx := tx
		out = append(out, &tx)
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == 0 {
		s.nextTxID++
		tx.ID = s.nextTxID
	} else if tx.ID > s.nextTxID {
		s.nextTxID = tx.ID
	}
	stored := *tx
	stored.Date = common.Day(tx.Date)
	s.transactions[tx.ID] = stored
	return nil
}

func sortTransactions(txs []*models.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// --- PriceStorage ---

func (s *Store) GetTicker(_ context.Context, symbol string) (*models.Ticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[symbol]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &t, nil
}

func (s *Store) SaveTicker(_ context.Context, ticker *models.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[ticker.Symbol] = *ticker
	return nil
}

// bars returns a symbol's rows in ascending date order. Caller holds mu.
func (s *Store) bars(symbol string) []models.PriceBar {
	var out []models.PriceBar
	for k, b := range s.prices {
		if k.symbol == symbol {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *Store) GetPrices(_ context.Context, symbol string) ([]models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bars(symbol), nil
}

func (s *Store) GetPrice(_ context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.prices[priceKey{symbol, common.Day(date)}]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &b, nil
}

func (s *Store) GetPriceBefore(_ context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = common.Day(date)
	bars := s.bars(symbol)
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Date.Before(date) {
			return &bars[i], nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *Store) GetPriceAfter(_ context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = common.Day(date)
	for _, b := range s.bars(symbol) {
		if b.Date.After(date) {
			b := b
			return &b, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

// InsertPrices keeps the first row stored for each (symbol, date).
func (s *Store) InsertPrices(_ context.Context, bars []models.PriceBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, b := range bars {
		b.Date = common.Day(b.Date)
		k := priceKey{b.Symbol, b.Date}
		if _, exists := s.prices[k]; exists {
			continue
		}
		s.prices[k] = b
		inserted++
	}
	return inserted, nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Store)(nil)

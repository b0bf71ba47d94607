// Package market provides the historical price store
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// TopicPricesBackfilled is the event topic suffix for persisted backfills.
const TopicPricesBackfilled = "prices.backfilled"

// Service implements MarketService. One instance is shared by every report
// in the process; its cache is never evicted.
type Service struct {
	storage interfaces.PriceStorage
	eodhd   interfaces.EODHDClient
	clock   *common.Clock
	logger  *common.Logger

	events     interfaces.EventPublisher
	eventTopic string

	denylist        map[string]bool
	bonds           map[string]bool
	fixed           map[string]decimal.Decimal
	historyStart    time.Time
	backfillTimeout time.Duration

	mu      sync.Mutex
	symbols map[string]*symbolCache
}

// symbolCache holds one symbol's price history. mu covers the whole
// load -> backfill -> refresh sequence so that concurrent lookups for the
// same symbol trigger at most one remote fetch.
type symbolCache struct {
	mu     sync.Mutex
	loaded bool
	ticker *models.Ticker

	dates  []time.Time // ascending
	closes []decimal.Decimal

	// checkedThrough is the "yesterday" the last sync attempt targeted,
	// successful or not. A failed range is not retried for the same day.
	checkedThrough time.Time
	checkedAt      time.Time
	failed         bool
}

// NewService creates a new market service. eodhd may be nil, in which case
// lookups are served from storage only.
func NewService(
	storage interfaces.PriceStorage,
	eodhd interfaces.EODHDClient,
	clock *common.Clock,
	config common.PricesConfig,
	logger *common.Logger,
) *Service {
	s := &Service{
		storage:         storage,
		eodhd:           eodhd,
		clock:           clock,
		logger:          logger,
		denylist:        toSet(config.Denylist),
		bonds:           toSet(config.BondSymbols),
		fixed:           make(map[string]decimal.Decimal, len(config.Fixed)),
		historyStart:    config.GetHistoryStart(),
		backfillTimeout: config.GetBackfillTimeout(),
		symbols:         make(map[string]*symbolCache),
	}

	for symbol, raw := range config.Fixed {
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			logger.Warn().Str("symbol", symbol).Str("value", raw).Msg("Ignoring invalid fixed price")
			continue
		}
		s.fixed[symbol] = price
	}

	return s
}

// SetEventPublisher enables backfill events on the given topic prefix.
func (s *Service) SetEventPublisher(pub interfaces.EventPublisher, prefix string) {
	s.events = pub
	s.eventTopic = TopicPricesBackfilled
	if prefix != "" {
		s.eventTopic = prefix + "." + TopicPricesBackfilled
	}
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}

// Denied reports whether symbol is never fetched from the remote source.
func (s *Service) Denied(symbol string) bool {
	return s.denylist[symbol]
}

// Lookup returns the close for symbol on date, or the most recent close
// strictly before it. Dates after yesterday in the reporting timezone, empty
// and denylisted symbols, and symbols with no earlier history resolve to
// false. It never returns an error: storage and remote failures are logged
// and the lookup continues with whatever is cached.
func (s *Service) Lookup(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool) {
	if symbol == "" {
		s.logger.Warn().Str("date", common.FormatDate(date)).Msg("Price lookup with empty symbol")
		return decimal.Zero, false
	}
	if s.Denied(symbol) {
		return decimal.Zero, false
	}

	date = common.Day(date)
	yesterday := s.clock.Yesterday()
	if date.After(yesterday) {
		return decimal.Zero, false
	}

	entry := s.entry(symbol)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := s.sync(ctx, symbol, entry, yesterday); err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Price sync failed, using cached prices")
	}

	return entry.at(date)
}

// Quote is Lookup with fixed-price resolution, reporting where the price came
// from. Dates after yesterday resolve to nothing, fixed prices included.
func (s *Service) Quote(ctx context.Context, symbol string, date time.Time) models.PriceQuote {
	date = common.Day(date)
	q := models.PriceQuote{Symbol: symbol, Date: date}
	if date.After(s.clock.Yesterday()) {
		return q
	}
	if price, ok := s.FixedPrice(symbol); ok {
		q.Found, q.Close, q.Source = true, &price, "fixed"
		return q
	}
	if price, ok := s.Lookup(ctx, symbol, date); ok {
		q.Found, q.Close, q.Source = true, &price, "history"
	}
	return q
}

// FixedPrice returns a configured constant price.
func (s *Service) FixedPrice(symbol string) (decimal.Decimal, bool) {
	price, ok := s.fixed[symbol]
	return price, ok
}

// CurrentPrice resolves a fixed price first, then yesterday's close.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if price, ok := s.FixedPrice(symbol); ok {
		return price, true
	}
	return s.Lookup(ctx, symbol, s.clock.Yesterday())
}

// AssetClass classifies symbol for net worth breakdowns.
func (s *Service) AssetClass(symbol string) models.AssetClass {
	if s.bonds[symbol] {
		return models.AssetBond
	}
	return models.AssetStock
}

// Refresh re-checks each symbol against the remote source, including
// symbols whose last attempt today failed. Symbols synced successfully
// within FreshnessPriceSync are skipped.
func (s *Service) Refresh(ctx context.Context, symbols []string) error {
	yesterday := s.clock.Yesterday()
	var errs []error

	for _, symbol := range symbols {
		if symbol == "" || s.Denied(symbol) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := s.entry(symbol)
		entry.mu.Lock()
		if entry.loaded && !entry.failed && !entry.checkedThrough.Before(yesterday) && common.IsFresh(entry.checkedAt, common.FreshnessPriceSync) {
			entry.mu.Unlock()
			continue
		}
		entry.checkedThrough = time.Time{}
		if err := s.sync(ctx, symbol, entry, yesterday); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
		entry.mu.Unlock()
	}

	return errors.Join(errs...)
}

// Warm loads and syncs caches for symbols ahead of the first report.
// Failures are logged.
func (s *Service) Warm(ctx context.Context, symbols []string) {
	yesterday := s.clock.Yesterday()
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		s.Lookup(ctx, symbol, yesterday)
	}
}

func (s *Service) entry(symbol string) *symbolCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.symbols[symbol]
	if !ok {
		e = &symbolCache{}
		s.symbols[symbol] = e
	}
	return e
}

// sync loads the symbol from storage on first use and backfills the gap up
// to yesterday once per day. Caller holds entry.mu.
func (s *Service) sync(ctx context.Context, symbol string, entry *symbolCache, yesterday time.Time) error {
	if !entry.loaded {
		if err := s.load(ctx, symbol, entry); err != nil {
			return err
		}
	}

	if !entry.checkedThrough.Before(yesterday) {
		return nil
	}
	prevThrough, prevAt := entry.checkedThrough, entry.checkedAt
	entry.checkedThrough = yesterday
	entry.checkedAt = time.Now()

	from := s.historyStart
	if !entry.ticker.LastDataSync.IsZero() {
		if !entry.ticker.LastDataSync.Before(yesterday) {
			return nil
		}
		from = common.Day(entry.ticker.LastDataSync).AddDate(0, 0, 1)
	}
	if from.After(yesterday) {
		return nil
	}

	err := s.backfill(ctx, symbol, entry, from, yesterday)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the source, so the
		// next lookup may try again.
		entry.checkedThrough, entry.checkedAt = prevThrough, prevAt
		return err
	}
	entry.failed = err != nil
	return err
}

func (s *Service) load(ctx context.Context, symbol string, entry *symbolCache) error {
	ticker, err := s.storage.GetTicker(ctx, symbol)
	if errors.Is(err, interfaces.ErrNotFound) {
		ticker = &models.Ticker{Symbol: symbol}
		if err := s.storage.SaveTicker(ctx, ticker); err != nil {
			return fmt.Errorf("create ticker: %w", err)
		}
		s.logger.Debug().Str("symbol", symbol).Msg("Created ticker")
	} else if err != nil {
		return fmt.Errorf("get ticker: %w", err)
	}

	bars, err := s.storage.GetPrices(ctx, symbol)
	if err != nil {
		return fmt.Errorf("get prices: %w", err)
	}

	entry.ticker = ticker
	entry.dates = entry.dates[:0]
	entry.closes = entry.closes[:0]
	entry.merge(bars)
	entry.loaded = true
	return nil
}

// backfill fetches [from, to] remotely and persists it. LastDataSync moves to
// the latest bar received, never to the requested end, so a close published
// after this fetch is picked up by the next day's range. A remote failure
// leaves the cache and LastDataSync unchanged.
func (s *Service) backfill(ctx context.Context, symbol string, entry *symbolCache, from, to time.Time) error {
	if s.eodhd == nil {
		return nil
	}

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.backfillTimeout)
	defer cancel()

	resp, err := s.eodhd.GetEOD(fetchCtx, symbol, interfaces.WithDateRange(from, to))
	if err != nil {
		return fmt.Errorf("fetch %s..%s: %w", common.FormatDate(from), common.FormatDate(to), err)
	}

	bars := make([]models.PriceBar, 0, len(resp.Data))
	var latest time.Time
	for _, b := range resp.Data {
		bar := b.ToPriceBar(symbol)
		if bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		bars = append(bars, bar)
		if bar.Date.After(latest) {
			latest = bar.Date
		}
	}

	inserted, err := s.storage.InsertPrices(ctx, bars)
	if err != nil {
		return fmt.Errorf("insert prices: %w", err)
	}

	if latest.After(entry.ticker.LastDataSync) {
		ticker := *entry.ticker
		ticker.LastDataSync = latest
		if err := s.storage.SaveTicker(ctx, &ticker); err != nil {
			return fmt.Errorf("save ticker: %w", err)
		}
		entry.ticker = &ticker
	}
	entry.merge(bars)

	s.logger.Info().
		Str("symbol", symbol).
		Str("from", common.FormatDate(from)).
		Str("to", common.FormatDate(to)).
		Int("fetched", len(bars)).
		Int("inserted", inserted).
		Dur("elapsed", time.Since(start)).
		Msg("Price backfill complete")

	if inserted > 0 && s.events != nil {
		event := models.PricesBackfilled{Symbol: symbol, From: from, To: to, Inserted: inserted}
		if err := s.events.Publish(ctx, s.eventTopic, event); err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to publish backfill event")
		}
	}

	return nil
}

// at returns the close on date or the nearest strictly earlier close.
func (e *symbolCache) at(date time.Time) (decimal.Decimal, bool) {
	i := sort.Search(len(e.dates), func(i int) bool { return !e.dates[i].Before(date) })
	if i < len(e.dates) && e.dates[i].Equal(date) {
		return e.closes[i], true
	}
	if i == 0 {
		return decimal.Zero, false
	}
	return e.closes[i-1], true
}

// merge adds bars to the cache. A date already cached keeps its close,
// matching storage where the first row for (symbol, date) wins.
func (e *symbolCache) merge(bars []models.PriceBar) {
	if len(bars) == 0 {
		return
	}
	byDate := make(map[time.Time]decimal.Decimal, len(e.dates)+len(bars))
	for i, d := range e.dates {
		byDate[d] = e.closes[i]
	}
	for _, b := range bars {
		d := common.Day(b.Date)
		if _, ok := byDate[d]; !ok {
			byDate[d] = b.Close
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	closes := make([]decimal.Decimal, len(dates))
	for i, d := range dates {
		closes[i] = byDate[d]
	}
	e.dates, e.closes = dates, closes
}

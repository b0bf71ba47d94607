package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// PriceStore implements interfaces.PriceStorage using SurrealDB.
type PriceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

type tickerRecord struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Exchange     string `json:"exchange"`
	Currency     string `json:"currency"`
	LastDataSync string `json:"last_data_sync"`
}

// priceRecord keeps dates as YYYY-MM-DD strings so ordering and range
// comparisons in SurrealQL are plain string comparisons.
type priceRecord struct {
	ID     *surrealmodels.RecordID `json:"id,omitempty"`
	Symbol string                  `json:"symbol"`
	Date   string                  `json:"date"`
	Close  string                  `json:"close"`
	Open   string                  `json:"open"`
	High   string                  `json:"high"`
	Low    string                  `json:"low"`
	Volume string                  `json:"volume"`
}

// priceRecordID is the array id [symbol, date]. A second insert of the same
// day collides on it; distinct symbols never do, whatever characters they hold.
func priceRecordID(symbol string, date time.Time) []any {
	return []any{symbol, common.FormatDate(date)}
}

func newPriceRecord(b models.PriceBar) priceRecord {
	rid := surrealmodels.NewRecordID(tablePrice, priceRecordID(b.Symbol, b.Date))
	return priceRecord{
		ID:     &rid,
		Symbol: b.Symbol,
		Date:   common.FormatDate(b.Date),
		Close:  b.Close.String(),
		Open:   b.Open.String(),
		High:   b.High.String(),
		Low:    b.Low.String(),
		Volume: b.Volume.String(),
	}
}

func (r priceRecord) toModel() (models.PriceBar, error) {
	date, err := common.ParseDate(r.Date)
	if err != nil {
		return models.PriceBar{}, err
	}
	bar := models.PriceBar{Symbol: r.Symbol, Date: date}
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&bar.Close, r.Close},
		{&bar.Open, r.Open},
		{&bar.High, r.High},
		{&bar.Low, r.Low},
		{&bar.Volume, r.Volume},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("price %s %s: %w", r.Symbol, r.Date, err)
		}
		*f.dst = d
	}
	return bar, nil
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *surrealdb.DB, logger *common.Logger) *PriceStore {
	return &PriceStore{db: db, logger: logger}
}

func (s *PriceStore) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	record, err := surrealdb.Select[tickerRecord](ctx, s.db, surrealmodels.NewRecordID(tableTicker, symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select ticker %s: %w", symbol, err)
	}
	if record == nil {
		return nil, interfaces.ErrNotFound
	}

	ticker := &models.Ticker{
		Symbol:   record.Symbol,
		Name:     record.Name,
		Exchange: record.Exchange,
		Currency: record.Currency,
	}
	if record.LastDataSync != "" {
		if ticker.LastDataSync, err = common.ParseDate(record.LastDataSync); err != nil {
			return nil, fmt.Errorf("ticker %s: %w", symbol, err)
		}
	}
	return ticker, nil
}

func (s *PriceStore) SaveTicker(ctx context.Context, ticker *models.Ticker) error {
	record := tickerRecord{
		Symbol:   ticker.Symbol,
		Name:     ticker.Name,
		Exchange: ticker.Exchange,
		Currency: ticker.Currency,
	}
	if !ticker.LastDataSync.IsZero() {
		record.LastDataSync = common.FormatDate(ticker.LastDataSync)
	}

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableTicker, ticker.Symbol), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]tickerRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save ticker after retries: %w", lastErr)
}

// queryBars runs a SELECT over the price table and decodes every row.
func (s *PriceStore) queryBars(ctx context.Context, sql string, vars map[string]any) ([]models.PriceBar, error) {
	results, err := surrealdb.Query[[]priceRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}

	var bars []models.PriceBar
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			bar, err := r.toModel()
			if err != nil {
				return nil, err
			}
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func (s *PriceStore) GetPrices(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	sql := "SELECT * FROM price WHERE symbol = $symbol ORDER BY date ASC"
	bars, err := s.queryBars(ctx, sql, map[string]any{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	return bars, nil
}

func (s *PriceStore) GetPrice(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, "SELECT * FROM price WHERE symbol = $symbol AND date = $date LIMIT 1", symbol, date)
}

func (s *PriceStore) GetPriceBefore(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, "SELECT * FROM price WHERE symbol = $symbol AND date < $date ORDER BY date DESC LIMIT 1", symbol, date)
}

func (s *PriceStore) GetPriceAfter(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, "SELECT * FROM price WHERE symbol = $symbol AND date > $date ORDER BY date ASC LIMIT 1", symbol, date)
}

func (s *PriceStore) one(ctx context.Context, sql, symbol string, date time.Time) (*models.PriceBar, error) {
	vars := map[string]any{"symbol": symbol, "date": common.FormatDate(date)}
	bars, err := s.queryBars(ctx, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s on %s: %w", symbol, common.FormatDate(date), err)
	}
	if len(bars) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &bars[0], nil
}

// InsertPrices writes rows that are not already stored. Existing rows are
// never overwritten; the count excludes skipped duplicates.
func (s *PriceStore) InsertPrices(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	bySymbol := make(map[string][]models.PriceBar)
	for _, b := range bars {
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}

	inserted := 0
	for symbol, group := range bySymbol {
		n, err := s.insertSymbol(ctx, symbol, group)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (s *PriceStore) insertSymbol(ctx context.Context, symbol string, bars []models.PriceBar) (int, error) {
	dates := make([]string, 0, len(bars))
	for _, b := range bars {
		dates = append(dates, common.FormatDate(b.Date))
	}

	type dateRow struct {
		Date string `json:"date"`
	}
	existing := make(map[string]bool)
	results, err := surrealdb.Query[[]dateRow](ctx, s.db,
		"SELECT date FROM price WHERE symbol = $symbol AND date IN $dates",
		map[string]any{"symbol": symbol, "dates": dates})
	if err != nil {
		return 0, fmt.Errorf("failed to check existing prices for %s: %w", symbol, err)
	}
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			existing[r.Date] = true
		}
	}

	var records []priceRecord
	for _, b := range bars {
		r := newPriceRecord(b)
		if existing[r.Date] {
			continue
		}
		existing[r.Date] = true
		records = append(records, r)
	}
	if len(records) == 0 {
		return 0, nil
	}

	// IGNORE keeps the stored row when a concurrent writer got there first.
	if _, err := surrealdb.Query[[]priceRecord](ctx, s.db, "INSERT IGNORE INTO price $rows", map[string]any{"rows": records}); err != nil {
		return 0, fmt.Errorf("failed to insert prices for %s: %w", symbol, err)
	}

	s.logger.Debug().Str("symbol", symbol).Int("rows", len(records)).Msg("Prices inserted")
	return len(records), nil
}

// Compile-time check
var _ interfaces.PriceStorage = (*PriceStore)(nil)

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// PriceStore implements interfaces.PriceStorage. UNIQUE(symbol, date) plus
// ON CONFLICT DO NOTHING makes inserts idempotent.
type PriceStore struct {
	db     *sql.DB
	logger *common.Logger
}

func (s *PriceStore) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	var t models.Ticker
	var synced sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, name, exchange, currency, last_data_sync FROM tickers WHERE symbol = $1`, symbol).
		Scan(&t.Symbol, &t.Name, &t.Exchange, &t.Currency, &synced)
	if err != nil {
		return nil, notFound(err)
	}
	if synced.Valid {
		t.LastDataSync = common.Day(synced.Time)
	}
	return &t, nil
}

func (s *PriceStore) SaveTicker(ctx context.Context, t *models.Ticker) error {
	var synced sql.NullTime
	if !t.LastDataSync.IsZero() {
		synced = sql.NullTime{Time: common.Day(t.LastDataSync), Valid: true}
	}
	const query = `INSERT INTO tickers (symbol, name, exchange, currency, last_data_sync)
	VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (symbol) DO UPDATE SET
		name = EXCLUDED.name, exchange = EXCLUDED.exchange,
		currency = EXCLUDED.currency, last_data_sync = EXCLUDED.last_data_sync`
	if _, err := s.db.ExecContext(ctx, query, t.Symbol, t.Name, t.Exchange, t.Currency, synced); err != nil {
		return fmt.Errorf("failed to save ticker %s: %w", t.Symbol, err)
	}
	return nil
}

const priceColumns = `symbol, date, close, open, high, low, volume`

func scanPrice(row scanner) (models.PriceBar, error) {
	var b models.PriceBar
	if err := row.Scan(&b.Symbol, &b.Date, &b.Close, &b.Open, &b.High, &b.Low, &b.Volume); err != nil {
		return models.PriceBar{}, err
	}
	b.Date = common.Day(b.Date)
	return b, nil
}

func (s *PriceStore) GetPrices(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+priceColumns+` FROM prices WHERE symbol = $1 ORDER BY date`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		b, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func (s *PriceStore) one(ctx context.Context, query, symbol string, date time.Time) (*models.PriceBar, error) {
	b, err := scanPrice(s.db.QueryRowContext(ctx, query, symbol, common.Day(date)))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *PriceStore) GetPrice(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, `SELECT `+priceColumns+` FROM prices WHERE symbol = $1 AND date = $2`, symbol, date)
}

func (s *PriceStore) GetPriceBefore(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, `SELECT `+priceColumns+` FROM prices WHERE symbol = $1 AND date < $2 ORDER BY date DESC LIMIT 1`, symbol, date)
}

func (s *PriceStore) GetPriceAfter(ctx context.Context, symbol string, date time.Time) (*models.PriceBar, error) {
	return s.one(ctx, `SELECT `+priceColumns+` FROM prices WHERE symbol = $1 AND date > $2 ORDER BY date ASC LIMIT 1`, symbol, date)
}

func (s *PriceStore) InsertPrices(ctx context.Context, bars []models.PriceBar) (n int, err error) {
	if len(bars) == 0 {
		return 0, nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	stmt, err := dbTx.PrepareContext(ctx, `INSERT INTO prices (`+priceColumns+`)
	VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (symbol, date) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range bars {
		res, err := stmt.ExecContext(ctx, b.Symbol, common.Day(b.Date), b.Close, b.Open, b.High, b.Low, b.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price %s %s: %w", b.Symbol, common.FormatDate(b.Date), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}

	if err = dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices: %w", err)
	}
	return inserted, nil
}

// Compile-time check
var _ interfaces.PriceStorage = (*PriceStore)(nil)

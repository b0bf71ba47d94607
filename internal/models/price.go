package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is the persisted identity of a priced symbol.
// LastDataSync is the last calendar date the remote history is known to cover.
type Ticker struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name,omitempty"`
	Exchange     string    `json:"exchange,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	LastDataSync time.Time `json:"last_data_sync"`
}

// PriceBar is one stored daily price row. At most one bar exists per (Symbol, Date).
type PriceBar struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Volume decimal.Decimal `json:"volume"`
}

// EODBar represents a single day's price data as returned by the remote source
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse is the response from the EOD endpoint
type EODResponse struct {
	Data []EODBar `json:"data"`
}

// ToPriceBar converts a remote bar into a stored row for symbol.
func (b EODBar) ToPriceBar(symbol string) PriceBar {
	return PriceBar{
		Symbol: symbol,
		Date:   time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, time.UTC),
		Close:  decimal.NewFromFloat(b.Close),
		Open:   decimal.NewFromFloat(b.Open),
		High:   decimal.NewFromFloat(b.High),
		Low:    decimal.NewFromFloat(b.Low),
		Volume: decimal.NewFromInt(b.Volume),
	}
}

// PriceQuote is the answer to a historical price lookup.
type PriceQuote struct {
	Symbol string           `json:"symbol"`
	Date   time.Time        `json:"date"`
	Found  bool             `json:"found"`
	Close  *decimal.Decimal `json:"close,omitempty"`
	Source string           `json:"source,omitempty"` // "history", "fixed"
}

// PricesBackfilled is published after new rows are persisted for a symbol.
type PricesBackfilled struct {
	Symbol   string    `json:"symbol"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Inserted int       `json:"inserted"`
}

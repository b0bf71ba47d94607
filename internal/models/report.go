// Package models defines data structures for folio
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySnapshot is the ledger state at the end of one reporting day.
type DailySnapshot struct {
	Date        time.Time       `json:"date"`
	Cash        decimal.Decimal `json:"cash"`
	Invested    decimal.Decimal `json:"invested"`
	Valuation   decimal.Decimal `json:"valuation"`
	ReturnPct   decimal.Decimal `json:"return_pct"`
	CapitalGain decimal.Decimal `json:"capital_gain"`
	Interest    decimal.Decimal `json:"interest"`
	Dividend    decimal.Decimal `json:"dividend"`
	TotalIncome decimal.Decimal `json:"total_income"`
}

// Label is the date label used on charts and in tabular output.
func (s DailySnapshot) Label() string {
	return s.Date.Format("2006-01-02")
}

// Timeseries is the ordered list of snapshots for one account.
type Timeseries struct {
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Snapshots []DailySnapshot `json:"snapshots"`
}

// Last returns the most recent snapshot, if any.
func (t *Timeseries) Last() (DailySnapshot, bool) {
	if t == nil || len(t.Snapshots) == 0 {
		return DailySnapshot{}, false
	}
	return t.Snapshots[len(t.Snapshots)-1], true
}

// SummaryRow is one symbol's line in the holdings table.
type SummaryRow struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceFound     bool            `json:"price_found"`
	Valuation      decimal.Decimal `json:"valuation"`
	Invested       decimal.Decimal `json:"invested"`
	Unrealized     decimal.Decimal `json:"unrealized"`
	UnrealizedPct  decimal.Decimal `json:"unrealized_pct"`
	RealizedGain   decimal.Decimal `json:"realized_gain"`
	DividendTotal  decimal.Decimal `json:"dividend_total"`
	DividendPct    decimal.Decimal `json:"dividend_pct"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
	TotalProfitPct decimal.Decimal `json:"total_profit_pct"`
	ValuationShare decimal.Decimal `json:"valuation_share"`
}

// SummaryTotals are the account-level sums of the additive row fields.
// Percentages are derived from the sums, never averaged.
type SummaryTotals struct {
	Valuation      decimal.Decimal `json:"valuation"`
	Invested       decimal.Decimal `json:"invested"`
	Unrealized     decimal.Decimal `json:"unrealized"`
	UnrealizedPct  decimal.Decimal `json:"unrealized_pct"`
	RealizedGain   decimal.Decimal `json:"realized_gain"`
	DividendTotal  decimal.Decimal `json:"dividend_total"`
	DividendPct    decimal.Decimal `json:"dividend_pct"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
	TotalProfitPct decimal.Decimal `json:"total_profit_pct"`
}

// Summary is the holdings table plus its totals.
type Summary struct {
	Date   time.Time     `json:"date"`
	Rows   []SummaryRow  `json:"rows"`
	Totals SummaryTotals `json:"totals"`
}

// Report is everything produced for one account in one request.
type Report struct {
	Account     Account         `json:"account"`
	GeneratedAt time.Time       `json:"generated_at"`
	Cash        decimal.Decimal `json:"cash"`
	Invested    decimal.Decimal `json:"invested"`
	CapitalGain decimal.Decimal `json:"capital_gain"`
	Interest    decimal.Decimal `json:"interest"`
	Dividend    decimal.Decimal `json:"dividend"`
	TaxFee      decimal.Decimal `json:"tax_fee"`
	Timeseries  Timeseries      `json:"timeseries"`
	Summary     Summary         `json:"summary"`
	Empty       bool            `json:"empty,omitempty"`
}

// ReportEvent is published after a report is generated.
type ReportEvent struct {
	AccountID   int64     `json:"account_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Snapshots   int       `json:"snapshots"`
	Symbols     int       `json:"symbols"`
	Empty       bool      `json:"empty"`
}

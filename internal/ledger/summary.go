package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

// Summarize flattens the ledger's holdings into a per-symbol table valued on
// date. Every symbol the ledger has seen gets a row, including closed
// positions and dividend-only symbols. Rows are ordered by valuation,
// largest first.
func Summarize(ctx context.Context, l *Ledger, prices interfaces.PriceLookup, date time.Time) models.Summary {
	summary := models.Summary{Date: date, Rows: make([]models.SummaryRow, 0, len(l.holdings))}
	var totals models.SummaryTotals

	for _, symbol := range l.Symbols() {
		h := l.holdings[symbol]

		price, found := decimal.Zero, false
		if prices != nil {
			price, found = prices.Lookup(ctx, symbol, date)
		}
		if !found {
			price = h.AverageCost
		}

		valuation := price.Mul(h.Quantity)
		invested := h.CostBasis()
		unrealized := valuation.Sub(invested)
		totalProfit := unrealized.Add(h.DividendTotal).Add(h.RealizedGain)

		summary.Rows = append(summary.Rows, models.SummaryRow{
			Symbol:         symbol,
			Quantity:       h.Quantity,
			AverageCost:    h.AverageCost,
			CurrentPrice:   price,
			PriceFound:     found,
			Valuation:      valuation,
			Invested:       invested,
			Unrealized:     unrealized,
			UnrealizedPct:  percent(unrealized, invested),
			RealizedGain:   h.RealizedGain,
			DividendTotal:  h.DividendTotal,
			DividendPct:    percent(h.DividendTotal, invested),
			TotalProfit:    totalProfit,
			TotalProfitPct: percent(totalProfit, invested),
		})

		totals.Valuation = totals.Valuation.Add(valuation)
		totals.Invested = totals.Invested.Add(invested)
		totals.Unrealized = totals.Unrealized.Add(unrealized)
		totals.RealizedGain = totals.RealizedGain.Add(h.RealizedGain)
		totals.DividendTotal = totals.DividendTotal.Add(h.DividendTotal)
		totals.TotalProfit = totals.TotalProfit.Add(totalProfit)
	}

	totals.UnrealizedPct = percent(totals.Unrealized, totals.Invested)
	totals.DividendPct = percent(totals.DividendTotal, totals.Invested)
	totals.TotalProfitPct = percent(totals.TotalProfit, totals.Invested)
	summary.Totals = totals

	for i := range summary.Rows {
		summary.Rows[i].ValuationShare = percent(summary.Rows[i].Valuation, totals.Valuation)
	}

	sort.SliceStable(summary.Rows, func(i, j int) bool {
		a, b := summary.Rows[i], summary.Rows[j]
		if !a.Valuation.Equal(b.Valuation) {
			return a.Valuation.GreaterThan(b.Valuation)
		}
		return a.Symbol < b.Symbol
	})

	return summary
}

package ledger

import (
	"context"
	"testing"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_RowsAndTotals(t *testing.T) {
	date := common.Date(2024, 2, 1)
	prices := stubPrices{
		"AAA": {"2024-02-01": d("150")},
		"BBB": {"2024-01-31": d("40")},
	}
	l := New(prices)
	l.Buy(d("1000"), "AAA", d("10"), d("100"))
	l.Buy(d("2000"), "BBB", d("50"), d("40"))
	require.NoError(t, l.Sell(d("500"), "BBB", d("10"), d("50")))
	l.ReceiveDividend(d("20"), "AAA", date)
	l.ReceiveDividend(d("10"), "CCC", date)

	s := Summarize(context.Background(), l, prices, date)
	require.Len(t, s.Rows, 3)

	// valuation descending: AAA 1500, BBB 1600 -> BBB first
	assert.Equal(t, "BBB", s.Rows[0].Symbol)
	assert.Equal(t, "AAA", s.Rows[1].Symbol)
	assert.Equal(t, "CCC", s.Rows[2].Symbol)

	aaa := s.Rows[1]
	assertDec(t, "150", aaa.CurrentPrice)
	assert.True(t, aaa.PriceFound)
	assertDec(t, "1500", aaa.Valuation)
	assertDec(t, "1000", aaa.Invested)
	assertDec(t, "500", aaa.Unrealized)
	assertDec(t, "50", aaa.UnrealizedPct)
	assertDec(t, "2", aaa.DividendPct)
	assertDec(t, "520", aaa.TotalProfit)
	assertDec(t, "52", aaa.TotalProfitPct)

	// nearest earlier price is used
	bbb := s.Rows[0]
	assertDec(t, "40", bbb.CurrentPrice)
	assertDec(t, "1600", bbb.Valuation)
	assertDec(t, "100", bbb.RealizedGain)
	assertDec(t, "100", bbb.TotalProfit)

	// dividend-only symbol: nothing invested, percentages are zero
	ccc := s.Rows[2]
	assert.True(t, ccc.Quantity.IsZero())
	assert.False(t, ccc.PriceFound)
	assert.True(t, ccc.Invested.IsZero())
	assert.True(t, ccc.DividendPct.IsZero())
	assert.True(t, ccc.TotalProfitPct.IsZero())
	assertDec(t, "10", ccc.TotalProfit)
	assert.True(t, ccc.ValuationShare.IsZero())

	// totals are sums; percentages re-derived from the sums
	assertDec(t, "3100", s.Totals.Valuation)
	assertDec(t, "2600", s.Totals.Invested)
	assertDec(t, "500", s.Totals.Unrealized)
	assertDec(t, "100", s.Totals.RealizedGain)
	assertDec(t, "30", s.Totals.DividendTotal)
	assertDec(t, "630", s.Totals.TotalProfit)
	assert.True(t, s.Totals.TotalProfitPct.Sub(d("24.2307692307692308")).Abs().LessThan(d("0.0000001")))

	share := aaa.ValuationShare.Add(bbb.ValuationShare)
	assert.True(t, share.Sub(d("100")).Abs().LessThan(d("0.0000001")))
}

func TestSummarize_FallsBackToAverageCost(t *testing.T) {
	l := New(nil)
	l.Buy(d("300"), "X", d("3"), d("100"))

	s := Summarize(context.Background(), l, nil, common.Date(2024, 2, 1))
	require.Len(t, s.Rows, 1)
	assertDec(t, "100", s.Rows[0].CurrentPrice)
	assert.False(t, s.Rows[0].PriceFound)
	assert.True(t, s.Rows[0].Unrealized.IsZero())
	assertDec(t, "100", s.Rows[0].ValuationShare)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(context.Background(), New(nil), nil, common.Date(2024, 2, 1))
	assert.Empty(t, s.Rows)
	assert.True(t, s.Totals.Valuation.IsZero())
	assert.True(t, s.Totals.TotalProfitPct.IsZero())
}

func TestSummarize_TieBreaksOnSymbol(t *testing.T) {
	l := New(nil)
	l.Buy(d("100"), "ZZZ", d("1"), d("100"))
	l.Buy(d("100"), "AAA", d("1"), d("100"))

	s := Summarize(context.Background(), l, nil, common.Date(2024, 2, 1))
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "AAA", s.Rows[0].Symbol)
	assert.Equal(t, "ZZZ", s.Rows[1].Symbol)
}

package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Replay walks every calendar day from the first transaction through the
// given day (normally yesterday in the reporting timezone), applying each
// day's transactions in list order and recording a snapshot for every
// weekday. Transactions dated after through are applied to the final ledger
// state but produce no snapshot.
//
// txs are expected in (date, id) order; same-day transactions keep their
// relative order. A validation error aborts the replay.
func Replay(ctx context.Context, txs []*models.Transaction, l *Ledger, through time.Time) (*models.Timeseries, error) {
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	ordered := byDay(txs)
	start := common.Day(ordered[0].Date)
	end := common.Day(through)
	ts := &models.Timeseries{StartDate: start, EndDate: end}

	idx := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for idx < len(ordered) && !common.Day(ordered[idx].Date).After(day) {
			if err := l.Apply(ordered[idx]); err != nil {
				return nil, err
			}
			idx++
		}

		if common.IsWeekend(day) {
			continue
		}
		ts.Snapshots = append(ts.Snapshots, l.Snapshot(ctx, day))
	}

	// today's (or later) entries still count toward the end state
	for ; idx < len(ordered); idx++ {
		if err := l.Apply(ordered[idx]); err != nil {
			return nil, err
		}
	}

	return ts, nil
}

// ApplyAll applies every transaction in day order without emitting
// snapshots. It is the end state Replay would reach, at a fraction of the cost.
func (l *Ledger) ApplyAll(txs []*models.Transaction) error {
	for _, tx := range byDay(txs) {
		if err := l.Apply(tx); err != nil {
			return err
		}
	}
	return nil
}

// byDay returns a copy of txs stably sorted by calendar day.
func byDay(txs []*models.Transaction) []*models.Transaction {
	ordered := make([]*models.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return common.Day(ordered[i].Date).Before(common.Day(ordered[j].Date))
	})
	return ordered
}

// Snapshot captures the ledger as of date.
func (l *Ledger) Snapshot(ctx context.Context, date time.Time) models.DailySnapshot {
	invested := l.Invest
	valuation := l.Valuation(ctx, date)
	return models.DailySnapshot{
		Date:        date,
		Cash:        l.Cash,
		Invested:    invested,
		Valuation:   valuation,
		ReturnPct:   percent(valuation.Sub(invested), invested),
		CapitalGain: l.CapitalGain,
		Interest:    l.Interest,
		Dividend:    l.Dividend,
		TotalIncome: l.TotalIncome(),
	}
}

// percent is num/den × 100, or zero when den is zero.
func percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred)
}

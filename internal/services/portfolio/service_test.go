package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/ledger"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/memory"
)

// --- stub market ---

type stubMarket struct {
	closes map[string]decimal.Decimal
	fixed  map[string]decimal.Decimal
	bonds  map[string]bool
}

func (m *stubMarket) Lookup(_ context.Context, symbol string, _ time.Time) (decimal.Decimal, bool) {
	p, ok := m.closes[symbol]
	return p, ok
}

func (m *stubMarket) Quote(ctx context.Context, symbol string, date time.Time) models.PriceQuote {
	q := models.PriceQuote{Symbol: symbol, Date: date}
	if p, ok := m.Lookup(ctx, symbol, date); ok {
		q.Found, q.Close, q.Source = true, models.Dec(p), "history"
	}
	return q
}

func (m *stubMarket) FixedPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := m.fixed[symbol]
	return p, ok
}

func (m *stubMarket) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if p, ok := m.FixedPrice(symbol); ok {
		return p, true
	}
	return m.Lookup(ctx, symbol, time.Time{})
}

func (m *stubMarket) AssetClass(symbol string) models.AssetClass {
	if m.bonds[symbol] {
		return models.AssetBond
	}
	return models.AssetStock
}

func (m *stubMarket) Refresh(context.Context, []string) error { return nil }
func (m *stubMarket) Warm(context.Context, []string)          {}

// --- stub publisher ---

type recordingPublisher struct {
	topics []string
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event interface{}) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// --- fixtures ---

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal { return models.Dec(d(s)) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

type fixture struct {
	store   *memory.Store
	market  *stubMarket
	service *Service
}

// newFixture freezes the clock on Wednesday 2024-01-10, so reports run through 2024-01-09.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(common.NewSilentLogger())
	market := &stubMarket{
		closes: map[string]decimal.Decimal{"AAPL": d("110"), "GOOG": d("60")},
		fixed:  map[string]decimal.Decimal{"KR-BOND": d("101")},
		bonds:  map[string]bool{"KR-BOND": true},
	}
	clock := common.NewFixedClock(time.UTC, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, market, clock, common.PortfolioConfig{MaxConcurrentReports: 2}, common.NewSilentLogger())
	return &fixture{store: store, market: market, service: svc}
}

func (f *fixture) account(t *testing.T, a *models.Account) int64 {
	t.Helper()
	require.NoError(t, f.store.SaveAccount(context.Background(), a))
	return a.ID
}

func (f *fixture) tx(t *testing.T, accountID int64, date string, typ models.TransactionType, amount string, opts ...func(*models.Transaction)) {
	t.Helper()
	day, err := common.ParseDate(date)
	require.NoError(t, err)
	tx := &models.Transaction{AccountID: accountID, Date: day, Type: typ, Amount: d(amount)}
	for _, opt := range opts {
		opt(tx)
	}
	require.NoError(t, f.store.SaveTransaction(context.Background(), tx))
}

func trade(symbol, qty, price string) func(*models.Transaction) {
	return func(tx *models.Transaction) {
		tx.Symbol = symbol
		tx.Quantity = dp(qty)
		tx.Price = dp(price)
	}
}

func onSymbol(symbol string) func(*models.Transaction) {
	return func(tx *models.Transaction) { tx.Symbol = symbol }
}

// brokerage seeds a USD brokerage account ending with 3 AAPL and 750 cash.
func (f *fixture) brokerage(t *testing.T) int64 {
	id := f.account(t, &models.Account{Name: "Brokerage", Currency: "USD", Country: "US", Type: models.AccountStock, Category: models.CategoryPersonal})
	f.tx(t, id, "2024-01-02", models.TxDeposit, "1000")
	f.tx(t, id, "2024-01-03", models.TxBuy, "500", trade("AAPL", "5", "100"))
	f.tx(t, id, "2024-01-05", models.TxDividend, "10", onSymbol("AAPL"))
	f.tx(t, id, "2024-01-08", models.TxSell, "240", trade("AAPL", "2", "120"))
	return id
}

// --- Report ---

func TestReport_ReplaysThroughYesterday(t *testing.T) {
	f := newFixture(t)
	id := f.brokerage(t)

	report, err := f.service.Report(context.Background(), id)
	require.NoError(t, err)

	assert.False(t, report.Empty)
	assert.Equal(t, "Brokerage", report.Account.Name)
	assertDec(t, "750", report.Cash, "cash")
	assertDec(t, "300", report.Invested, "invested")
	assertDec(t, "40", report.CapitalGain, "capital gain")
	assertDec(t, "10", report.Dividend, "dividend")

	// Jan 2,3,4,5,8,9
	require.Len(t, report.Timeseries.Snapshots, 6)
	assert.Equal(t, common.Date(2024, 1, 9), report.Timeseries.EndDate)
	last, ok := report.Timeseries.Last()
	require.True(t, ok)
	assertDec(t, "330", last.Valuation, "valuation")

	require.Len(t, report.Summary.Rows, 1)
	row := report.Summary.Rows[0]
	assert.Equal(t, "AAPL", row.Symbol)
	assert.True(t, row.PriceFound)
	assertDec(t, "3", row.Quantity, "quantity")
	assertDec(t, "330", row.Valuation, "row valuation")
}

func TestReport_ValuesFromHistoryNotFixedPrice(t *testing.T) {
	f := newFixture(t)
	f.market.closes["KR-BOND"] = d("90")
	id := f.account(t, &models.Account{Name: "Bonds", Currency: "KRW", Type: models.AccountStock})
	f.tx(t, id, "2024-01-02", models.TxBuy, "1000", trade("KR-BOND", "10", "100"))

	report, err := f.service.Report(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, report.Summary.Rows, 1)
	row := report.Summary.Rows[0]
	assert.True(t, row.PriceFound)
	assertDec(t, "90", row.CurrentPrice, "price")
	assertDec(t, "900", row.Valuation, "valuation")

	first := report.Timeseries.Snapshots[0]
	assertDec(t, "900", first.Valuation, "first day valuation")
}

func TestReport_FixedPriceWithoutHistoryHeldAtCost(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Bonds", Currency: "KRW", Type: models.AccountStock})
	f.tx(t, id, "2024-01-02", models.TxDeposit, "1000")
	f.tx(t, id, "2024-01-02", models.TxBuy, "1000", trade("KR-BOND", "10", "100"))

	report, err := f.service.Report(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, report.Summary.Rows, 1)
	row := report.Summary.Rows[0]
	assert.False(t, row.PriceFound)
	assertDec(t, "100", row.CurrentPrice, "price")
	assertDec(t, "1000", row.Valuation, "valuation")
	assertDec(t, "0", row.Unrealized, "unrealized")

	for _, snap := range report.Timeseries.Snapshots {
		assertDec(t, "1000", snap.Valuation, "valuation on "+snap.Label())
		assertDec(t, "0", snap.ReturnPct, "return on "+snap.Label())
	}

	// net worth is a current figure and uses the configured price
	nw, err := f.service.NetWorth(context.Background())
	require.NoError(t, err)
	require.Len(t, nw.Accounts, 1)
	assertDec(t, "1010", nw.Accounts[0].Breakdown.Bond, "bond net worth")
}

func TestReport_EmptyAccount(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Empty", Currency: "USD", Type: models.AccountStock})

	report, err := f.service.Report(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, report.Empty)
	assert.Empty(t, report.Timeseries.Snapshots)
	assert.Empty(t, report.Summary.Rows)
}

func TestReport_MissingAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Report(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestReport_OversellIsValidationError(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Bad", Currency: "USD", Type: models.AccountStock})
	f.tx(t, id, "2024-01-02", models.TxBuy, "100", trade("AAPL", "1", "100"))
	f.tx(t, id, "2024-01-03", models.TxSell, "200", trade("AAPL", "2", "100"))

	_, err := f.service.Report(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	assert.True(t, errors.Is(err, ledger.ErrInsufficientHoldings))
}

func TestReport_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	f.service.SetEventPublisher(pub, "folio")
	id := f.brokerage(t)

	// a failing publisher never fails the report
	_, err := f.service.Report(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "folio.reports.generated", pub.topics[0])
	event, ok := pub.events[0].(models.ReportEvent)
	require.True(t, ok)
	assert.Equal(t, id, event.AccountID)
	assert.Equal(t, 6, event.Snapshots)
	assert.Equal(t, 1, event.Symbols)
}

func TestReports_PartialFailure(t *testing.T) {
	f := newFixture(t)
	good := f.brokerage(t)

	reports, err := f.service.Reports(context.Background(), []int64{good, 999})
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
	require.Len(t, reports, 1)
	assert.Contains(t, reports, good)
}

func TestReports_CancelledContext(t *testing.T) {
	f := newFixture(t)
	id := f.brokerage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := f.service.Reports(ctx, []int64{id})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, reports)
}

// --- NetWorth ---

func TestNetWorth_PerAccountAndCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	brokerage := f.brokerage(t)

	checking := f.account(t, &models.Account{Name: "Checking", Currency: "KRW", Type: models.AccountChecking})
	f.tx(t, checking, "2024-01-02", models.TxBalanceSnapshot, "1000000")
	f.tx(t, checking, "2024-01-05", models.TxBalanceSnapshot, "1200000")

	saving := f.account(t, &models.Account{Name: "Saving", Currency: "USD", Type: models.AccountSaving})
	f.tx(t, saving, "2024-01-02", models.TxDeposit, "100")
	f.tx(t, saving, "2024-01-03", models.TxInterest, "5")
	f.tx(t, saving, "2024-01-04", models.TxWithdrawal, "20")

	nw, err := f.service.NetWorth(ctx)
	require.NoError(t, err)
	require.Len(t, nw.Accounts, 3)

	byID := make(map[int64]models.AccountNetWorth)
	for _, a := range nw.Accounts {
		assert.Empty(t, a.Error)
		byID[a.AccountID] = a
	}

	b := byID[brokerage].Breakdown
	assertDec(t, "750", b.Cash, "brokerage cash")
	assertDec(t, "330", b.Stock, "brokerage stock")
	assertDec(t, "300", b.Invested, "brokerage invested")
	assertDec(t, "40", b.Profit, "brokerage profit")
	assertDec(t, "1080", byID[brokerage].NetWorth, "brokerage net worth")

	assertDec(t, "1200000", byID[checking].NetWorth, "checking")
	assertDec(t, "85", byID[saving].Breakdown.Saving, "saving")

	usd := nw.ByCurrency["USD"]
	assertDec(t, "750", usd.Cash, "usd cash")
	assertDec(t, "85", usd.Saving, "usd saving")
	assertDec(t, "1165", usd.Total(), "usd total")
	assertDec(t, "1200000", nw.ByCurrency["KRW"].Cash, "krw cash")
}

func TestNetWorth_BondsAndRSU(t *testing.T) {
	f := newFixture(t)

	bonds := f.account(t, &models.Account{Name: "Bonds", Currency: "KRW", Type: models.AccountStock})
	f.tx(t, bonds, "2024-01-02", models.TxDeposit, "1000")
	f.tx(t, bonds, "2024-01-02", models.TxBuy, "1000", trade("KR-BOND", "10", "100"))

	rsu := f.account(t, &models.Account{Name: "Grants", Currency: "USD", Type: models.AccountStock, Category: models.CategoryRSU})
	f.tx(t, rsu, "2024-01-03", models.TxVesting, "200", trade("GOOG", "4", "50"))

	nw, err := f.service.NetWorth(context.Background())
	require.NoError(t, err)
	require.Len(t, nw.Accounts, 2)

	bond := nw.Accounts[0].Breakdown
	assertDec(t, "1010", bond.Bond, "bond valuation")
	assertDec(t, "0", bond.Stock, "bond account stock")
	assertDec(t, "10", bond.Profit, "bond profit")

	grant := nw.Accounts[1].Breakdown
	assertDec(t, "0", grant.Cash, "rsu cash")
	assertDec(t, "240", grant.Stock, "rsu stock")
	assertDec(t, "200", grant.Invested, "rsu invested")
}

func TestNetWorth_FallsBackToAverageCost(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Unlisted", Currency: "USD", Type: models.AccountStock})
	f.tx(t, id, "2024-01-02", models.TxBuy, "50", trade("PRIVATE", "5", "10"))

	nw, err := f.service.NetWorth(context.Background())
	require.NoError(t, err)
	b := nw.Accounts[0].Breakdown
	assertDec(t, "50", b.Stock, "stock at cost")
	assertDec(t, "0", b.Profit, "profit")
}

func TestNetWorth_FailingAccountExcludedFromTotals(t *testing.T) {
	f := newFixture(t)
	good := f.brokerage(t)
	bad := f.account(t, &models.Account{Name: "Bad", Currency: "USD", Type: models.AccountStock})
	f.tx(t, bad, "2024-01-02", models.TxSell, "100", trade("AAPL", "1", "100"))

	nw, err := f.service.NetWorth(context.Background())
	require.NoError(t, err)
	require.Len(t, nw.Accounts, 2)

	for _, a := range nw.Accounts {
		if a.AccountID == bad {
			assert.NotEmpty(t, a.Error)
		}
		if a.AccountID == good {
			assert.Empty(t, a.Error)
		}
	}
	assertDec(t, "1080", nw.ByCurrency["USD"].Total(), "usd total")
}

func TestNetWorth_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.brokerage(t)
	f.account(t, &models.Account{Name: "Checking", Currency: "KRW", Type: models.AccountChecking})
	f.service.maxConcurrent = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	var (
		nw  *models.NetWorth
		err error
	)
	go func() {
		defer close(done)
		nw, err = f.service.NetWorth(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("NetWorth did not return after cancellation")
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, nw)
}

// --- AnnotatedTransactions ---

func TestAnnotatedTransactions_Brokerage(t *testing.T) {
	f := newFixture(t)
	id := f.brokerage(t)

	got, err := f.service.AnnotatedTransactions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got, 4)

	// newest first
	assert.Equal(t, models.TxSell, got[0].Type)
	assert.Equal(t, models.TxDeposit, got[3].Type)

	wantBalance := []string{"750", "510", "500", "1000"}
	for i, want := range wantBalance {
		assertDec(t, want, got[i].Balance, string(got[i].Type))
	}

	require.NotNil(t, got[0].QuantityBalance)
	assertDec(t, "3", *got[0].QuantityBalance, "after sell")
	require.NotNil(t, got[1].QuantityBalance)
	assertDec(t, "5", *got[1].QuantityBalance, "after dividend")
	assert.Nil(t, got[3].QuantityBalance)
}

func TestAnnotatedTransactions_Checking(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Checking", Currency: "KRW", Type: models.AccountChecking})
	f.tx(t, id, "2024-01-02", models.TxBalanceSnapshot, "500")
	f.tx(t, id, "2024-01-03", models.TxDeposit, "100")
	f.tx(t, id, "2024-01-04", models.TxBalanceSnapshot, "700")

	got, err := f.service.AnnotatedTransactions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assertDec(t, "700", got[0].Balance, "latest")
	assertDec(t, "500", got[1].Balance, "carried")
	assertDec(t, "500", got[2].Balance, "first")
	assert.Nil(t, got[0].QuantityBalance)
}

func TestAnnotatedTransactions_RSUTracksUnits(t *testing.T) {
	f := newFixture(t)
	id := f.account(t, &models.Account{Name: "Grants", Currency: "USD", Type: models.AccountStock, Category: models.CategoryRSU})
	f.tx(t, id, "2024-01-02", models.TxVesting, "200", trade("GOOG", "4", "50"))
	f.tx(t, id, "2024-01-03", models.TxVesting, "120", trade("GOOG", "2", "60"))

	got, err := f.service.AnnotatedTransactions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assertDec(t, "6", got[0].Balance, "vested units")
	assertDec(t, "6", *got[0].QuantityBalance, "quantity")
}

func TestAnnotatedTransactions_MissingAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.AnnotatedTransactions(context.Background(), 12)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

// --- Symbols ---

func TestSymbols_SortedAndDistinct(t *testing.T) {
	f := newFixture(t)
	f.brokerage(t)
	rsu := f.account(t, &models.Account{Name: "Grants", Currency: "USD", Type: models.AccountStock, Category: models.CategoryRSU})
	f.tx(t, rsu, "2024-01-02", models.TxVesting, "200", trade("GOOG", "4", "50"))
	f.tx(t, rsu, "2024-01-03", models.TxVesting, "200", trade("AAPL", "1", "200"))

	symbols, err := f.service.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOG"}, symbols)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(sql.ErrNoRows), interfaces.ErrNotFound)
	other := errors.New("boom")
	assert.Equal(t, other, notFound(other))
}

func TestAccounts(t *testing.T) {
	mgr := testManager(t)
	store := mgr.AccountStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAccount(ctx, &models.Account{ID: 5, Order: 2, Name: "Checking", Type: models.AccountChecking}))
	fresh := &models.Account{Order: 1, Name: "Brokerage", Type: models.AccountStock, Category: models.CategoryRothIRA}
	require.NoError(t, store.SaveAccount(ctx, fresh))
	assert.Equal(t, int64(6), fresh.ID, "sequence follows explicit ids")

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Brokerage", accounts[0].Name)
	assert.Equal(t, models.CategoryRothIRA, accounts[0].Category)

	_, err = store.GetAccount(ctx, 99)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestTransactions(t *testing.T) {
	mgr := testManager(t)
	store := mgr.TransactionStore()
	ctx := context.Background()
	d := common.Date(2024, 3, 4)

	qty := decimal.RequireFromString("1.5")
	price := decimal.RequireFromString("200.125")
	require.NoError(t, store.SaveTransaction(ctx, &models.Transaction{AccountID: 1, Date: d, Type: models.TxBuy,
		Symbol: "MSFT", Amount: decimal.RequireFromString("300.19"), Quantity: &qty, Price: &price}))
	require.NoError(t, store.SaveTransaction(ctx, &models.Transaction{AccountID: 1, Date: d.AddDate(0, 0, -1),
		Type: models.TxDeposit, Amount: decimal.NewFromInt(1000)}))

	txs, err := store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxDeposit, txs[0].Type)
	assert.Nil(t, txs[0].Quantity)
	assert.Equal(t, d, txs[1].Date)
	require.NotNil(t, txs[1].Price)
	assert.True(t, price.Equal(*txs[1].Price))
}

func TestPrices(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PriceStorage()
	ctx := context.Background()
	d := common.Date(2024, 1, 2)

	mk := func(day time.Time, close string) models.PriceBar {
		return models.PriceBar{Symbol: "VOO", Date: day, Close: decimal.RequireFromString(close)}
	}

	n, err := store.InsertPrices(ctx, []models.PriceBar{mk(d, "400"), mk(d.AddDate(0, 0, 3), "405")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.InsertPrices(ctx, []models.PriceBar{mk(d, "1")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := store.GetPrice(ctx, "VOO", d)
	require.NoError(t, err)
	assert.True(t, got.Close.Equal(decimal.NewFromInt(400)))

	before, err := store.GetPriceBefore(ctx, "VOO", d.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, d, before.Date)

	after, err := store.GetPriceAfter(ctx, "VOO", d)
	require.NoError(t, err)
	assert.Equal(t, d.AddDate(0, 0, 3), after.Date)

	_, err = store.GetPriceAfter(ctx, "VOO", d.AddDate(0, 0, 3))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.SaveTicker(ctx, &models.Ticker{Symbol: "VOO", LastDataSync: d.AddDate(0, 0, 3)}))
	ticker, err := store.GetTicker(ctx, "VOO")
	require.NoError(t, err)
	assert.Equal(t, d.AddDate(0, 0, 3), ticker.LastDataSync)
}

func TestPrices_ConcurrentInsertSameDay(t *testing.T) {
	store := testManager(t).PriceStorage()
	ctx := context.Background()
	d := common.Date(2024, 1, 2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.InsertPrices(ctx, []models.PriceBar{{Symbol: "X", Date: d, Close: decimal.NewFromInt(1)}})
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, total)
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/memory"
)

const seedJSON = `{
	"accounts": [
		{"id": 1, "order": 1, "owner": "kim", "bank_name": "Fidelity", "name": "Brokerage", "country": "US", "currency": "USD", "type": "Stock", "category": "personal"},
		{"id": 2, "order": 2, "owner": "kim", "bank_name": "Shinhan", "name": "Checking", "country": "KOR", "currency": "KRW", "type": "Checking", "category": "personal"}
	],
	"transactions": [
		{"account_id": 1, "date": "2024-01-02", "type": "DEPOSIT", "amount": "1000"},
		{"account_id": 1, "date": "2024-01-03", "type": "buy", "symbol": "AAPL", "amount": "500", "quantity": "5", "price": 100},
		{"account_id": 2, "date": "2024-01-02", "type": "BALANCE_SNAPSHOT", "amount": 2500000}
	]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportSeedFile_Success(t *testing.T) {
	store := memory.NewStore(common.NewSilentLogger())
	ctx := context.Background()

	result, err := ImportSeedFile(ctx, store, common.NewSilentLogger(), writeSeed(t, seedJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accounts)
	assert.Equal(t, 3, result.Transactions)
	assert.Equal(t, 0, result.Skipped)

	account, err := store.GetAccount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.AccountChecking, account.Type)
	assert.Equal(t, "KRW", account.Currency)

	txs, err := store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxBuy, txs[1].Type)
	assert.Equal(t, common.Date(2024, 1, 3), txs[1].Date)
	require.NotNil(t, txs[1].Quantity)
	assert.True(t, txs[1].Quantity.Equal(decimal.NewFromInt(5)))
}

func TestImportSeedFile_Idempotent(t *testing.T) {
	store := memory.NewStore(common.NewSilentLogger())
	ctx := context.Background()
	path := writeSeed(t, seedJSON)

	_, err := ImportSeedFile(ctx, store, common.NewSilentLogger(), path)
	require.NoError(t, err)

	result, err := ImportSeedFile(ctx, store, common.NewSilentLogger(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accounts)
	assert.Equal(t, 0, result.Transactions)
	assert.Equal(t, 5, result.Skipped)

	txs, err := store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestImportSeedFile_Errors(t *testing.T) {
	ctx := context.Background()
	logger := common.NewSilentLogger()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"accounts": [`},
		{"missing account id", `{"accounts": [{"name": "x"}]}`},
		{"unknown type", `{"accounts": [{"id": 1}], "transactions": [{"account_id": 1, "date": "2024-01-02", "type": "GIFT", "amount": "1"}]}`},
		{"bad date", `{"accounts": [{"id": 1}], "transactions": [{"account_id": 1, "date": "02/01/2024", "type": "DEPOSIT", "amount": "1"}]}`},
		{"negative amount", `{"accounts": [{"id": 1}], "transactions": [{"account_id": 1, "date": "2024-01-02", "type": "DEPOSIT", "amount": "-1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore(logger)
			_, err := ImportSeedFile(ctx, store, logger, writeSeed(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestImportSeedFile_MissingFile(t *testing.T) {
	var store interfaces.StorageManager = memory.NewStore(common.NewSilentLogger())
	_, err := ImportSeedFile(context.Background(), store, common.NewSilentLogger(), filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

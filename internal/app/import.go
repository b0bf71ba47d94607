package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

type seedFile struct {
	Accounts     []models.Account  `json:"accounts"`
	Transactions []seedTransaction `json:"transactions"`
}

// seedTransaction carries the date as YYYY-MM-DD rather than RFC 3339.
type seedTransaction struct {
	AccountID   int64            `json:"account_id"`
	Date        string           `json:"date"`
	Type        string           `json:"type"`
	Symbol      string           `json:"symbol"`
	Amount      decimal.Decimal  `json:"amount"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Fee         *decimal.Decimal `json:"fee"`
	FXRate      *decimal.Decimal `json:"fx_rate"`
	Description string           `json:"description"`
}

// ImportResult counts what a seed import wrote and skipped.
type ImportResult struct {
	Accounts     int `json:"accounts"`
	Transactions int `json:"transactions"`
	Skipped      int `json:"skipped"`
}

// ImportSeedFile reads a JSON seed of accounts and transactions into storage.
// Accounts that already exist are skipped along with their transactions, so
// importing the same file on every start is idempotent.
func ImportSeedFile(ctx context.Context, storage interfaces.StorageManager, logger *common.Logger, filePath string) (*ImportResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", filePath, err)
	}

	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", filePath, err)
	}

	return importSeed(ctx, storage, logger, &file)
}

func importSeed(ctx context.Context, storage interfaces.StorageManager, logger *common.Logger, file *seedFile) (*ImportResult, error) {
	result := &ImportResult{}
	accounts := storage.AccountStore()
	imported := make(map[int64]bool)

	for i := range file.Accounts {
		account := file.Accounts[i]
		if account.ID == 0 {
			return nil, fmt.Errorf("seed account %q has no id", account.Name)
		}
		_, err := accounts.GetAccount(ctx, account.ID)
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("check account %d: %w", account.ID, err)
		}
		if err := accounts.SaveAccount(ctx, &account); err != nil {
			return nil, fmt.Errorf("save account %d: %w", account.ID, err)
		}
		imported[account.ID] = true
		result.Accounts++
	}

	txs := storage.TransactionStore()
	for i, st := range file.Transactions {
		if !imported[st.AccountID] {
			result.Skipped++
			continue
		}
		tx, err := st.toTransaction()
		if err != nil {
			return nil, fmt.Errorf("seed transaction %d: %w", i, err)
		}
		if err := txs.SaveTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("save transaction %d: %w", i, err)
		}
		result.Transactions++
	}

	logger.Info().
		Int("accounts", result.Accounts).
		Int("transactions", result.Transactions).
		Int("skipped", result.Skipped).
		Msg("Seed import complete")

	return result, nil
}

func (st seedTransaction) toTransaction() (*models.Transaction, error) {
	date, err := common.ParseDate(st.Date)
	if err != nil {
		return nil, err
	}
	typ, err := models.ParseTransactionType(st.Type)
	if err != nil {
		return nil, err
	}
	if st.Amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", st.Amount)
	}
	return &models.Transaction{
		AccountID:   st.AccountID,
		Date:        date,
		Type:        typ,
		Symbol:      st.Symbol,
		Amount:      st.Amount,
		Price:       st.Price,
		Quantity:    st.Quantity,
		Fee:         st.Fee,
		FXRate:      st.FXRate,
		Description: st.Description,
	}, nil
}

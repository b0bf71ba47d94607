package surrealdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// TransactionStore implements interfaces.TransactionStore using SurrealDB.
type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	idMu   sync.Mutex
}

// transactionRecord stores decimals as strings so no precision is lost in CBOR floats.
type transactionRecord struct {
	TxID        int64   `json:"tx_id"`
	AccountID   int64   `json:"account_id"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Symbol      string  `json:"symbol"`
	Amount      string  `json:"amount"`
	Price       *string `json:"price,omitempty"`
	Quantity    *string `json:"quantity,omitempty"`
	Fee         *string `json:"fee,omitempty"`
	FXRate      *string `json:"fx_rate,omitempty"`
	Description string  `json:"description"`
}

func newTransactionRecord(tx *models.Transaction) transactionRecord {
	return transactionRecord{
		TxID:        tx.ID,
		AccountID:   tx.AccountID,
		Date:        common.FormatDate(tx.Date),
		Type:        string(tx.Type),
		Symbol:      tx.Symbol,
		Amount:      tx.Amount.String(),
		Price:       optString(tx.Price),
		Quantity:    optString(tx.Quantity),
		Fee:         optString(tx.Fee),
		FXRate:      optString(tx.FXRate),
		Description: tx.Description,
	}
}

func (r transactionRecord) toModel() (*models.Transaction, error) {
	date, err := common.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	tx := &models.Transaction{
		ID:          r.TxID,
		AccountID:   r.AccountID,
		Date:        date,
		Type:        models.TransactionType(r.Type),
		Symbol:      r.Symbol,
		Amount:      amount,
		Description: r.Description,
	}
	if tx.Price, err = optDecimal(r.Price); err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	if tx.Quantity, err = optDecimal(r.Quantity); err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	if tx.Fee, err = optDecimal(r.Fee); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if tx.FXRate, err = optDecimal(r.FXRate); err != nil {
		return nil, fmt.Errorf("fx_rate: %w", err)
	}
	return tx, nil
}

func optString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func optDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

func (s *TransactionStore) ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	sql := "SELECT * FROM txn WHERE account_id = $account_id ORDER BY date ASC, tx_id ASC"
	vars := map[string]any{"account_id": accountID}

	results, err := surrealdb.Query[[]transactionRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var txs []*models.Transaction
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			tx, err := r.toModel()
			if err != nil {
				return nil, fmt.Errorf("failed to decode transaction %d: %w", r.TxID, err)
			}
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (s *TransactionStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if tx.ID == 0 {
		next, err := nextID(ctx, s.db, "SELECT tx_id FROM txn ORDER BY tx_id DESC LIMIT 1")
		if err != nil {
			return fmt.Errorf("failed to assign transaction id: %w", err)
		}
		tx.ID = next
	}

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(tableTransaction, tx.ID),
		"record": newTransactionRecord(tx),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]transactionRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save transaction after retries: %w", lastErr)
}

// Compile-time check
var _ interfaces.TransactionStore = (*TransactionStore)(nil)

package surrealdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// AccountStore implements interfaces.AccountStore using SurrealDB.
type AccountStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	idMu   sync.Mutex
}

// accountRecord is the SurrealDB record shape for the account table.
type accountRecord struct {
	AccountID int64  `json:"account_id"`
	Order     int    `json:"sort_order"`
	Owner     string `json:"owner"`
	BankName  string `json:"bank_name"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Category  string `json:"category"`
}

func newAccountRecord(a *models.Account) accountRecord {
	return accountRecord{
		AccountID: a.ID,
		Order:     a.Order,
		Owner:     a.Owner,
		BankName:  a.BankName,
		Name:      a.Name,
		Country:   a.Country,
		Currency:  a.Currency,
		Type:      string(a.Type),
		Category:  string(a.Category),
	}
}

func (r accountRecord) toModel() *models.Account {
	return &models.Account{
		ID:       r.AccountID,
		Order:    r.Order,
		Owner:    r.Owner,
		BankName: r.BankName,
		Name:     r.Name,
		Country:  r.Country,
		Currency: r.Currency,
		Type:     models.AccountType(r.Type),
		Category: models.AccountCategory(r.Category),
	}
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *surrealdb.DB, logger *common.Logger) *AccountStore {
	return &AccountStore{db: db, logger: logger}
}

func (s *AccountStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	record, err := surrealdb.Select[accountRecord](ctx, s.db, surrealmodels.NewRecordID(tableAccount, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select account %d: %w", id, err)
	}
	if record == nil {
		return nil, interfaces.ErrNotFound
	}
	return record.toModel(), nil
}

func (s *AccountStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	sql := "SELECT * FROM account ORDER BY sort_order ASC, account_id ASC"

	results, err := surrealdb.Query[[]accountRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var accounts []*models.Account
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			accounts = append(accounts, r.toModel())
		}
	}
	return accounts, nil
}

// SaveAccount upserts by ID. A zero ID is replaced with one past the current maximum.
func (s *AccountStore) SaveAccount(ctx context.Context, account *models.Account) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if account.ID == 0 {
		next, err := nextID(ctx, s.db, "SELECT account_id FROM account ORDER BY account_id DESC LIMIT 1")
		if err != nil {
			return fmt.Errorf("failed to assign account id: %w", err)
		}
		account.ID = next
	}

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(tableAccount, account.ID),
		"record": newAccountRecord(account),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]accountRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save account after retries: %w", lastErr)
}

// nextID runs a query selecting the single highest id row and returns that id plus one.
func nextID(ctx context.Context, db *surrealdb.DB, sql string) (int64, error) {
	type idRow struct {
		AccountID int64 `json:"account_id"`
		TxID      int64 `json:"tx_id"`
	}
	results, err := surrealdb.Query[[]idRow](ctx, db, sql, nil)
	if err != nil {
		return 0, err
	}
	var highest int64
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			if r.AccountID > highest {
				highest = r.AccountID
			}
			if r.TxID > highest {
				highest = r.TxID
			}
		}
	}
	return highest + 1, nil
}

// Compile-time check
var _ interfaces.AccountStore = (*AccountStore)(nil)

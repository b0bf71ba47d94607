// Package surrealdb implements the storage interfaces on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Table names.
const (
	tableAccount     = "account"
	tableTransaction = "txn"
	tableTicker      = "ticker"
	tablePrice       = "price"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	accountStore     *AccountStore
	transactionStore *TransactionStore
	priceStore       *PriceStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(ctx context.Context, logger *common.Logger, config *common.SurrealConfig) (*Manager, error) {
	// Connect to SurrealDB
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		db.Close(context.Background())
		return nil, err
	}

	m := newManager(db, logger)

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:               db,
		logger:           logger,
		accountStore:     NewAccountStore(db, logger),
		transactionStore: NewTransactionStore(db, logger),
		priceStore:       NewPriceStore(db, logger),
	}
}

// defineSchema creates the tables (SurrealDB v3 errors on querying non-existent tables)
// and the (symbol, date) unique index that backs duplicate-free price inserts.
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	tables := []string{tableAccount, tableTransaction, tableTicker, tablePrice}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS price_symbol_date ON TABLE price FIELDS symbol, date UNIQUE",
		"DEFINE INDEX IF NOT EXISTS txn_account ON TABLE txn FIELDS account_id",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) AccountStore() interfaces.AccountStore {
	return m.accountStore
}

func (m *Manager) TransactionStore() interfaces.TransactionStore {
	return m.transactionStore
}

func (m *Manager) PriceStorage() interfaces.PriceStorage {
	return m.priceStore
}

func (m *Manager) Backend() string {
	return "surrealdb"
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError matches the driver's wording for a missing record or table.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)

// Package postgres implements the storage interfaces on Postgres via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         BIGSERIAL PRIMARY KEY,
	sort_order INTEGER NOT NULL DEFAULT 0,
	owner      TEXT NOT NULL DEFAULT '',
	bank_name  TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	currency   TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transactions (
	id          BIGSERIAL PRIMARY KEY,
	account_id  BIGINT NOT NULL,
	date        DATE NOT NULL,
	type        TEXT NOT NULL,
	symbol      TEXT NOT NULL DEFAULT '',
	amount      NUMERIC NOT NULL,
	price       NUMERIC,
	quantity    NUMERIC,
	fee         NUMERIC,
	fx_rate     NUMERIC,
	description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS transactions_account_date ON transactions (account_id, date, id);

CREATE TABLE IF NOT EXISTS tickers (
	symbol         TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	exchange       TEXT NOT NULL DEFAULT '',
	currency       TEXT NOT NULL DEFAULT '',
	last_data_sync DATE
);

CREATE TABLE IF NOT EXISTS prices (
	symbol TEXT NOT NULL,
	date   DATE NOT NULL,
	close  NUMERIC NOT NULL,
	open   NUMERIC NOT NULL DEFAULT 0,
	high   NUMERIC NOT NULL DEFAULT 0,
	low    NUMERIC NOT NULL DEFAULT 0,
	volume NUMERIC NOT NULL DEFAULT 0,
	UNIQUE (symbol, date)
);
`

// Manager implements interfaces.StorageManager on a single *sql.DB.
type Manager struct {
	db     *sql.DB
	logger *common.Logger

	accountStore     *AccountStore
	transactionStore *TransactionStore
	priceStore       *PriceStore
}

// NewManager opens the database, verifies the connection and applies the schema.
func NewManager(ctx context.Context, logger *common.Logger, config *common.PostgresConfig) (*Manager, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info().Msg("Postgres storage manager initialized")

	return newManager(db, logger), nil
}

func newManager(db *sql.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:               db,
		logger:           logger,
		accountStore:     &AccountStore{db: db, logger: logger},
		transactionStore: &TransactionStore{db: db, logger: logger},
		priceStore:       &PriceStore{db: db, logger: logger},
	}
}

func (m *Manager) AccountStore() interfaces.AccountStore         { return m.accountStore }
func (m *Manager) TransactionStore() interfaces.TransactionStore { return m.transactionStore }
func (m *Manager) PriceStorage() interfaces.PriceStorage         { return m.priceStore }
func (m *Manager) Backend() string                               { return "postgres" }

func (m *Manager) Close() error {
	return m.db.Close()
}

// notFound maps sql.ErrNoRows onto the shared sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	return err
}

// bumpSequence keeps a BIGSERIAL ahead of explicitly inserted ids.
func bumpSequence(ctx context.Context, db *sql.DB, table string) error {
	query := fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %s), 1))`,
		table, table)
	_, err := db.ExecContext(ctx, query)
	return err
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)

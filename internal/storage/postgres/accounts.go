package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// AccountStore implements interfaces.AccountStore.
type AccountStore struct {
	db     *sql.DB
	logger *common.Logger
}

const accountColumns = `id, sort_order, owner, bank_name, name, country, currency, type, category`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	var typ, category string
	if err := row.Scan(&a.ID, &a.Order, &a.Owner, &a.BankName, &a.Name, &a.Country, &a.Currency, &typ, &category); err != nil {
		return nil, err
	}
	a.Type = models.AccountType(typ)
	a.Category = models.AccountCategory(category)
	return &a, nil
}

func (s *AccountStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *AccountStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *AccountStore) SaveAccount(ctx context.Context, a *models.Account) error {
	if a.ID == 0 {
		const query = `INSERT INTO accounts (sort_order, owner, bank_name, name, country, currency, type, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
		err := s.db.QueryRowContext(ctx, query,
			a.Order, a.Owner, a.BankName, a.Name, a.Country, a.Currency, string(a.Type), string(a.Category)).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	}

	const query = `INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (id) DO UPDATE SET
		sort_order = EXCLUDED.sort_order, owner = EXCLUDED.owner, bank_name = EXCLUDED.bank_name,
		name = EXCLUDED.name, country = EXCLUDED.country, currency = EXCLUDED.currency,
		type = EXCLUDED.type, category = EXCLUDED.category`
	if _, err := s.db.ExecContext(ctx, query,
		a.ID, a.Order, a.Owner, a.BankName, a.Name, a.Country, a.Currency, string(a.Type), string(a.Category)); err != nil {
		return fmt.Errorf("failed to save account %d: %w", a.ID, err)
	}
	return bumpSequence(ctx, s.db, "accounts")
}

// TransactionStore implements interfaces.TransactionStore.
type TransactionStore struct {
	db     *sql.DB
	logger *common.Logger
}

const transactionColumns = `id, account_id, date, type, symbol, amount, price, quantity, fee, fx_rate, description`

func optional(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	return &n.Decimal
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (s *TransactionStore) ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY date, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var typ string
		var price, qty, fee, fx decimal.NullDecimal
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Date, &typ, &tx.Symbol, &tx.Amount,
			&price, &qty, &fee, &fx, &tx.Description); err != nil {
			return nil, err
		}
		tx.Date = common.Day(tx.Date)
		tx.Type = models.TransactionType(typ)
		tx.Price, tx.Quantity, tx.Fee, tx.FXRate = optional(price), optional(qty), optional(fee), optional(fx)
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

func (s *TransactionStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	args := []any{tx.AccountID, common.Day(tx.Date), string(tx.Type), tx.Symbol, tx.Amount,
		nullable(tx.Price), nullable(tx.Quantity), nullable(tx.Fee), nullable(tx.FXRate), tx.Description}

	if tx.ID == 0 {
		const query = `INSERT INTO transactions (account_id, date, type, symbol, amount, price, quantity, fee, fx_rate, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&tx.ID); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return nil
	}

	const query = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($11,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		account_id = EXCLUDED.account_id, date = EXCLUDED.date, type = EXCLUDED.type, symbol = EXCLUDED.symbol,
		amount = EXCLUDED.amount, price = EXCLUDED.price, quantity = EXCLUDED.quantity, fee = EXCLUDED.fee,
		fx_rate = EXCLUDED.fx_rate, description = EXCLUDED.description`
	if _, err := s.db.ExecContext(ctx, query, append(args, tx.ID)...); err != nil {
		return fmt.Errorf("failed to save transaction %d: %w", tx.ID, err)
	}
	return bumpSequence(ctx, s.db, "transactions")
}

var (
	_ interfaces.AccountStore     = (*AccountStore)(nil)
	_ interfaces.TransactionStore = (*TransactionStore)(nil)
)

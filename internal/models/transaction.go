package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of ledger transaction kinds.
type TransactionType string

const (
	TxDeposit         TransactionType = "DEPOSIT"
	TxWithdrawal      TransactionType = "WITHDRAWAL"
	TxFXDeposit       TransactionType = "FX_DEPOSIT"
	TxFXWithdrawal    TransactionType = "FX_WITHDRAWAL"
	TxInterest        TransactionType = "INTEREST"
	TxDividend        TransactionType = "DIVIDEND"
	TxBuy             TransactionType = "BUY"
	TxSell            TransactionType = "SELL"
	TxVesting         TransactionType = "VESTING"
	TxFX              TransactionType = "FX"
	TxBalanceSnapshot TransactionType = "BALANCE_SNAPSHOT"
	TxTaxFee          TransactionType = "TAX_FEE"
)

var allTransactionTypes = []TransactionType{
	TxDeposit,
	TxWithdrawal,
	TxFXDeposit,
	TxFXWithdrawal,
	TxInterest,
	TxDividend,
	TxBuy,
	TxSell,
	TxVesting,
	TxFX,
	TxBalanceSnapshot,
	TxTaxFee,
}

// AllTransactionTypes returns every member of the closed set, in declaration order.
func AllTransactionTypes() []TransactionType {
	return append([]TransactionType(nil), allTransactionTypes...)
}

// Valid returns true if t is a member of the closed set.
func (t TransactionType) Valid() bool {
	for _, v := range allTransactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseTransactionType accepts the upper-snake name, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

// RequiresSecurity reports whether the type needs symbol, quantity and price.
func (t TransactionType) RequiresSecurity() bool {
	switch t {
	case TxBuy, TxSell, TxVesting:
		return true
	default:
		return false
	}
}

// IsInflow returns true if the type adds cash to a brokerage account's running balance.
func (t TransactionType) IsInflow() bool {
	switch t {
	case TxDeposit, TxFXDeposit, TxInterest, TxDividend, TxSell:
		return true
	default:
		return false
	}
}

// IsOutflow returns true if the type removes cash from a brokerage account's running balance.
func (t TransactionType) IsOutflow() bool {
	switch t {
	case TxWithdrawal, TxFXWithdrawal, TxBuy, TxTaxFee:
		return true
	default:
		return false
	}
}

// Transaction is a single immutable entry in an account's log.
// Amount is always non-negative; its direction comes from Type.
type Transaction struct {
	ID          int64            `json:"id"`
	AccountID   int64            `json:"account_id"`
	Date        time.Time        `json:"date"`
	Type        TransactionType  `json:"type"`
	Symbol      string           `json:"symbol,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Fee         *decimal.Decimal `json:"fee,omitempty"`
	FXRate      *decimal.Decimal `json:"fx_rate,omitempty"`
	Description string           `json:"description,omitempty"`
}

// PriceOrZero returns the trade price or zero when absent.
func (t *Transaction) PriceOrZero() decimal.Decimal {
	if t.Price == nil {
		return decimal.Zero
	}
	return *t.Price
}

// QuantityOrZero returns the unit count or zero when absent.
func (t *Transaction) QuantityOrZero() decimal.Decimal {
	if t.Quantity == nil {
		return decimal.Zero
	}
	return *t.Quantity
}

// Dec is a small helper for building optional decimal fields.
func Dec(v decimal.Decimal) *decimal.Decimal {
	return &v
}

// AnnotatedTransaction is a transaction paired with the running totals of
// its account immediately after it was applied.
type AnnotatedTransaction struct {
	Transaction
	Balance         decimal.Decimal  `json:"balance"`
	QuantityBalance *decimal.Decimal `json:"quantity_balance,omitempty"`
}

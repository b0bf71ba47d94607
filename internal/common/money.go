package common

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders a decimal amount with the currency's symbol, grouping
// and minor-unit precision (e.g. "$1,234.50", "₩1,235").
func FormatMoney(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	// money.New never returns a nil currency, unlike money.GetCurrency
	cur := *money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// CurrencyFraction returns the number of minor-unit digits of a currency (2 for USD, 0 for KRW).
func CurrencyFraction(currency string) int32 {
	if currency == "" {
		return 2
	}
	return int32(money.New(0, currency).Currency().Fraction)
}

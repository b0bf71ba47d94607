// Package ledger replays an account's transaction log into cash, holdings,
// and daily valuation snapshots.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/shopspring/decimal"
)

// DividendPayment is one dividend received for a holding.
type DividendPayment struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Holding is the running position in one symbol.
type Holding struct {
	Symbol        string            `json:"symbol"`
	Quantity      decimal.Decimal   `json:"quantity"`
	AverageCost   decimal.Decimal   `json:"average_cost"`
	DividendTotal decimal.Decimal   `json:"dividend_total"`
	Dividends     []DividendPayment `json:"dividends,omitempty"`
	RealizedGain  decimal.Decimal   `json:"realized_gain"`
}

// CostBasis is the invested capital still held in the position.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(h.Quantity)
}

// acquire folds quantity units at price into the weighted average cost.
func (h *Holding) acquire(quantity, price decimal.Decimal) {
	total := h.AverageCost.Mul(h.Quantity).Add(quantity.Mul(price))
	h.Quantity = h.Quantity.Add(quantity)
	if h.Quantity.IsZero() {
		return
	}
	h.AverageCost = total.Div(h.Quantity)
}

// Ledger is the bookkeeping state of a single account during one replay.
// It is not safe for concurrent use; each report builds its own.
type Ledger struct {
	Cash        decimal.Decimal
	Invest      decimal.Decimal
	CapitalGain decimal.Decimal
	Interest    decimal.Decimal
	Dividend    decimal.Decimal
	TaxFee      decimal.Decimal

	holdings map[string]*Holding
	prices   interfaces.PriceLookup
}

// New creates an empty ledger. prices may be nil, in which case every
// valuation falls back to average cost.
func New(prices interfaces.PriceLookup) *Ledger {
	return &Ledger{
		holdings: make(map[string]*Holding),
		prices:   prices,
	}
}

// holding returns the position for symbol, creating it on first use.
// Only mutating operations call this.
func (l *Ledger) holding(symbol string) *Holding {
	h, ok := l.holdings[symbol]
	if !ok {
		h = &Holding{Symbol: symbol}
		l.holdings[symbol] = h
	}
	return h
}

// Holding returns a copy of the position for symbol without creating one.
func (l *Ledger) Holding(symbol string) (Holding, bool) {
	h, ok := l.holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	out := *h
	out.Dividends = append([]DividendPayment(nil), h.Dividends...)
	return out, true
}

// Symbols returns every symbol the ledger has seen, sorted.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.holdings))
	for s := range l.holdings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TotalIncome is realized gains plus interest plus dividends.
func (l *Ledger) TotalIncome() decimal.Decimal {
	return l.CapitalGain.Add(l.Interest).Add(l.Dividend)
}

func (l *Ledger) Deposit(amount decimal.Decimal) {
	l.Cash = l.Cash.Add(amount)
}

// Withdraw allows the balance to go negative.
func (l *Ledger) Withdraw(amount decimal.Decimal) {
	l.Cash = l.Cash.Sub(amount)
}

// Buy debits amount from cash and adds quantity × price to cost basis.
// amount is the authoritative cash flow; the two are not cross-checked.
func (l *Ledger) Buy(amount decimal.Decimal, symbol string, quantity, price decimal.Decimal) {
	l.Cash = l.Cash.Sub(amount)
	l.holding(symbol).acquire(quantity, price)
	l.Invest = l.Invest.Add(quantity.Mul(price))
}

// Sell realizes quantity units at price against the average cost.
// The ledger is unchanged when the sell is rejected.
func (l *Ledger) Sell(amount decimal.Decimal, symbol string, quantity, price decimal.Decimal) error {
	held := decimal.Zero
	if h, ok := l.holdings[symbol]; ok {
		held = h.Quantity
	}
	if quantity.GreaterThan(held) {
		return &ValidationError{
			Type:   models.TxSell,
			Symbol: symbol,
			Reason: fmt.Sprintf("selling %s, holding %s", quantity, held),
			Err:    ErrInsufficientHoldings,
		}
	}

	h := l.holding(symbol)
	revenue := quantity.Mul(price)
	costBasis := h.AverageCost.Mul(quantity)
	realized := revenue.Sub(costBasis)

	l.Cash = l.Cash.Add(revenue)
	h.Quantity = h.Quantity.Sub(quantity)
	h.RealizedGain = h.RealizedGain.Add(realized)
	l.CapitalGain = l.CapitalGain.Add(realized)
	l.Invest = l.Invest.Sub(costBasis)
	return nil
}

func (l *Ledger) PayTaxFee(amount decimal.Decimal) {
	l.Cash = l.Cash.Sub(amount)
	l.TaxFee = l.TaxFee.Add(amount)
}

func (l *Ledger) ReceiveInterest(amount decimal.Decimal) {
	l.Cash = l.Cash.Add(amount)
	l.Interest = l.Interest.Add(amount)
}

// ReceiveDividend credits cash and records the payment against symbol, creating a
// zero-quantity holding if the symbol was never held.
func (l *Ledger) ReceiveDividend(amount decimal.Decimal, symbol string, date time.Time) {
	l.Cash = l.Cash.Add(amount)
	l.Dividend = l.Dividend.Add(amount)

	h := l.holding(symbol)
	h.DividendTotal = h.DividendTotal.Add(amount)
	h.Dividends = append(h.Dividends, DividendPayment{Date: date, Amount: amount})
}

// Vest is a non-cash acquisition: cost basis moves like a buy, invested
// capital grows by amount, cash is untouched.
func (l *Ledger) Vest(amount decimal.Decimal, symbol string, quantity, price decimal.Decimal) {
	l.holding(symbol).acquire(quantity, price)
	l.Invest = l.Invest.Add(amount)
}

// Apply dispatches one transaction. FX and BALANCE_SNAPSHOT do not move the
// ledger; values outside the known set are ignored.
func (l *Ledger) Apply(tx *models.Transaction) error {
	if err := validate(tx); err != nil {
		return err
	}

	switch tx.Type {
	case models.TxDeposit, models.TxFXDeposit:
		l.Deposit(tx.Amount)
	case models.TxWithdrawal, models.TxFXWithdrawal:
		l.Withdraw(tx.Amount)
	case models.TxBuy:
		l.Buy(tx.Amount, tx.Symbol, *tx.Quantity, *tx.Price)
	case models.TxSell:
		if err := l.Sell(tx.Amount, tx.Symbol, *tx.Quantity, *tx.Price); err != nil {
			if verr, ok := err.(*ValidationError); ok {
				verr.TxID = tx.ID
				verr.Date = tx.Date
			}
			return err
		}
	case models.TxTaxFee:
		l.PayTaxFee(tx.Amount)
	case models.TxInterest:
		l.ReceiveInterest(tx.Amount)
	case models.TxDividend:
		l.ReceiveDividend(tx.Amount, tx.Symbol, tx.Date)
	case models.TxVesting:
		l.Vest(tx.Amount, tx.Symbol, *tx.Quantity, *tx.Price)
	case models.TxFX, models.TxBalanceSnapshot:
		// consumed by net worth, not replay
	}
	return nil
}

func validate(tx *models.Transaction) error {
	if tx.Type.RequiresSecurity() {
		switch {
		case tx.Symbol == "":
			return newValidationError(tx, ErrMissingField, "symbol")
		case tx.Quantity == nil:
			return newValidationError(tx, ErrMissingField, "quantity")
		case tx.Price == nil:
			return newValidationError(tx, ErrMissingField, "price")
		case tx.Quantity.IsNegative():
			return newValidationError(tx, ErrValidation, "negative quantity")
		}
	}
	if tx.Type == models.TxDividend && tx.Symbol == "" {
		return newValidationError(tx, ErrMissingField, "symbol")
	}
	return nil
}

// Valuation prices every open position on date, falling back to average cost
// when no price is known. Cash is not included.
func (l *Ledger) Valuation(ctx context.Context, date time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, symbol := range l.Symbols() {
		h := l.holdings[symbol]
		if h.Quantity.IsZero() {
			continue
		}
		price, ok := l.price(ctx, symbol, date)
		if !ok {
			price = h.AverageCost
		}
		total = total.Add(h.Quantity.Mul(price))
	}
	return total
}

func (l *Ledger) price(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool) {
	if l.prices == nil {
		return decimal.Zero, false
	}
	return l.prices.Lookup(ctx, symbol, date)
}

package models

import "github.com/shopspring/decimal"

// AccountType decides how an account's net worth is derived.
type AccountType string

const (
	AccountChecking AccountType = "Checking"
	AccountSaving   AccountType = "Saving"
	AccountStock    AccountType = "Stock"
)

// AccountCategory is the tax/wrapper category of an account.
type AccountCategory string

const (
	CategoryPersonal       AccountCategory = "personal"
	CategoryKorPSA         AccountCategory = "kor_psa"
	CategoryKorIRP         AccountCategory = "kor_irp"
	CategoryKorPension     AccountCategory = "kor_pension"
	CategoryUS401k         AccountCategory = "401k"
	CategoryUS401kPreTax   AccountCategory = "401k_pretax"
	CategoryUS401kRoth     AccountCategory = "401k_roth"
	CategoryUS401kAfterTax AccountCategory = "401k_aftertax"
	CategoryRothIRA        AccountCategory = "roth_ira"
	CategoryHSA            AccountCategory = "hsa"
	CategoryRSU            AccountCategory = "rsu"
)

// Account is a single brokerage, bank or grant account.
type Account struct {
	ID       int64           `json:"id"`
	Order    int             `json:"order"`
	Owner    string          `json:"owner"`
	BankName string          `json:"bank_name"`
	Name     string          `json:"name"`
	Country  string          `json:"country"`  // "US" or "KOR"
	Currency string          `json:"currency"` // "USD" or "KRW"
	Type     AccountType     `json:"type"`
	Category AccountCategory `json:"category"`
}

// AssetClass groups holdings for net worth breakdowns.
type AssetClass string

const (
	AssetCash   AssetClass = "cash"
	AssetSaving AssetClass = "saving"
	AssetBond   AssetClass = "bond"
	AssetStock  AssetClass = "stock"
)

// AssetBreakdown splits an account's (or a household's) value by asset class.
type AssetBreakdown struct {
	Cash     decimal.Decimal `json:"cash"`
	Saving   decimal.Decimal `json:"saving"`
	Bond     decimal.Decimal `json:"bond"`
	Stock    decimal.Decimal `json:"stock"`
	Invested decimal.Decimal `json:"invested"`
	Profit   decimal.Decimal `json:"profit"`
}

// Add returns the field-wise sum of two breakdowns.
func (a AssetBreakdown) Add(b AssetBreakdown) AssetBreakdown {
	return AssetBreakdown{
		Cash:     a.Cash.Add(b.Cash),
		Saving:   a.Saving.Add(b.Saving),
		Bond:     a.Bond.Add(b.Bond),
		Stock:    a.Stock.Add(b.Stock),
		Invested: a.Invested.Add(b.Invested),
		Profit:   a.Profit.Add(b.Profit),
	}
}

// Total is the value of every asset class (invested and profit are views, not assets).
func (a AssetBreakdown) Total() decimal.Decimal {
	return a.Cash.Add(a.Saving).Add(a.Bond).Add(a.Stock)
}

// AccountNetWorth is one account's contribution to household net worth.
type AccountNetWorth struct {
	AccountID int64           `json:"account_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Type      AccountType     `json:"type"`
	NetWorth  decimal.Decimal `json:"net_worth"`
	Breakdown AssetBreakdown  `json:"breakdown"`
	Error     string          `json:"error,omitempty"`
}

// NetWorth aggregates every account, grouped by currency since no FX conversion is applied.
type NetWorth struct {
	Accounts   []AccountNetWorth         `json:"accounts"`
	ByCurrency map[string]AssetBreakdown `json:"by_currency"`
}

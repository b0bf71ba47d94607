package portfolio

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/ledger"
	"github.com/bobmcallan/folio/internal/models"
)

// NetWorth derives every account's current value and sums the breakdowns per
// currency. A failing account is reported with its error and excluded from
// the totals rather than failing the whole request. A cancelled context
// fails the request.
func (s *Service) NetWorth(ctx context.Context) (*models.NetWorth, error) {
	accounts, err := s.storage.AccountStore().ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	results := make([]models.AccountNetWorth, len(accounts))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for i, account := range accounts {
		wg.Add(1)
		go func(i int, account *models.Account) {
			defer wg.Done()

			entry := models.AccountNetWorth{
				AccountID: account.ID,
				Name:      account.Name,
				Currency:  account.Currency,
				Type:      account.Type,
			}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				entry.Error = fmt.Sprintf("account %d: %v", account.ID, ctx.Err())
				results[i] = entry
				return
			}

			breakdown, err := s.accountBreakdown(ctx, account)
			if err != nil {
				s.logger.Warn().Err(err).Int64("account_id", account.ID).Msg("Net worth unavailable for account")
				entry.Error = err.Error()
			} else {
				entry.Breakdown = breakdown
				entry.NetWorth = breakdown.Total()
			}
			results[i] = entry
		}(i, account)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("net worth: %w", err)
	}

	nw := &models.NetWorth{
		Accounts:   results,
		ByCurrency: make(map[string]models.AssetBreakdown),
	}
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		nw.ByCurrency[r.Currency] = nw.ByCurrency[r.Currency].Add(r.Breakdown)
	}
	return nw, nil
}

func (s *Service) accountBreakdown(ctx context.Context, account *models.Account) (models.AssetBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return models.AssetBreakdown{}, err
	}
	txs, err := s.storage.TransactionStore().ListTransactions(ctx, account.ID)
	if err != nil {
		return models.AssetBreakdown{}, fmt.Errorf("failed to load transactions: %w", err)
	}

	switch account.Type {
	case models.AccountChecking:
		return models.AssetBreakdown{Cash: latestSnapshot(txs)}, nil
	case models.AccountSaving:
		return models.AssetBreakdown{Saving: savingBalance(txs)}, nil
	case models.AccountStock:
		return s.stockBreakdown(ctx, account, txs)
	default:
		return models.AssetBreakdown{}, fmt.Errorf("unknown account type %q", account.Type)
	}
}

// latestSnapshot is the amount of the last BALANCE_SNAPSHOT in (date, id) order.
func latestSnapshot(txs []*models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range txs {
		if tx.Type == models.TxBalanceSnapshot {
			balance = tx.Amount
		}
	}
	return balance
}

func savingBalance(txs []*models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(savingDelta(tx))
	}
	return balance
}

func savingDelta(tx *models.Transaction) decimal.Decimal {
	switch tx.Type {
	case models.TxDeposit, models.TxFXDeposit, models.TxInterest:
		return tx.Amount
	case models.TxWithdrawal, models.TxFXWithdrawal:
		return tx.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// stockBreakdown values each open position at its current price and splits
// it into bond or stock. RSU grants hold no cash.
func (s *Service) stockBreakdown(ctx context.Context, account *models.Account, txs []*models.Transaction) (models.AssetBreakdown, error) {
	l := ledger.New(nil)
	if err := l.ApplyAll(txs); err != nil {
		return models.AssetBreakdown{}, err
	}

	var ab models.AssetBreakdown
	if account.Category != models.CategoryRSU {
		ab.Cash = l.Cash
	}

	for _, symbol := range l.Symbols() {
		h, _ := l.Holding(symbol)
		if h.Quantity.IsZero() {
			continue
		}

		price, ok := s.market.CurrentPrice(ctx, symbol)
		if !ok {
			price = h.AverageCost
		}
		valuation := price.Mul(h.Quantity)
		cost := h.CostBasis()

		part := models.AssetBreakdown{
			Invested: cost,
			Profit:   valuation.Sub(cost).Add(h.DividendTotal),
		}
		if s.market.AssetClass(symbol) == models.AssetBond {
			part.Bond = valuation
		} else {
			part.Stock = valuation
		}
		ab = ab.Add(part)
	}
	return ab, nil
}

package portfolio

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// AnnotatedTransactions returns the account's transactions newest first, each
// carrying the account balance and the symbol's quantity right after it.
//
// Balance depends on the account type: checking accounts carry the latest
// balance snapshot forward, saving accounts sum deposits and interest net of
// withdrawals, brokerage accounts track cash, and RSU grants track vested units.
func (s *Service) AnnotatedTransactions(ctx context.Context, accountID int64) ([]models.AnnotatedTransaction, error) {
	account, err := s.storage.AccountStore().GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}

	txs, err := s.storage.TransactionStore().ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for account %d: %w", accountID, err)
	}

	annotated := annotate(account, txs)

	// newest first
	for i, j := 0, len(annotated)-1; i < j; i, j = i+1, j-1 {
		annotated[i], annotated[j] = annotated[j], annotated[i]
	}
	return annotated, nil
}

// annotate walks txs in (date, id) order.
func annotate(account *models.Account, txs []*models.Transaction) []models.AnnotatedTransaction {
	out := make([]models.AnnotatedTransaction, 0, len(txs))
	balance := decimal.Zero
	quantities := make(map[string]decimal.Decimal)
	rsu := account.Type == models.AccountStock && account.Category == models.CategoryRSU

	for _, tx := range txs {
		switch {
		case account.Type == models.AccountChecking:
			if tx.Type == models.TxBalanceSnapshot {
				balance = tx.Amount
			}
		case account.Type == models.AccountSaving:
			balance = balance.Add(savingDelta(tx))
		case rsu:
			if tx.Type == models.TxVesting {
				balance = balance.Add(tx.QuantityOrZero())
			}
		default:
			switch {
			case tx.Type.IsInflow():
				balance = balance.Add(tx.Amount)
			case tx.Type.IsOutflow():
				balance = balance.Sub(tx.Amount)
			}
		}

		entry := models.AnnotatedTransaction{Transaction: *tx, Balance: balance}
		if account.Type == models.AccountStock && tx.Symbol != "" {
			q := quantities[tx.Symbol]
			switch tx.Type {
			case models.TxBuy, models.TxVesting:
				q = q.Add(tx.QuantityOrZero())
			case models.TxSell:
				q = q.Sub(tx.QuantityOrZero())
			}
			quantities[tx.Symbol] = q
			entry.QuantityBalance = models.Dec(q)
		}
		out = append(out, entry)
	}
	return out
}

// Package portfolio builds account reports by replaying stored transactions
// through the ledger.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/ledger"
	"github.com/bobmcallan/folio/internal/models"
)

// TopicReportGenerated is the event topic suffix for finished reports.
const TopicReportGenerated = "reports.generated"

// Service implements PortfolioService
type Service struct {
	storage       interfaces.StorageManager
	market        interfaces.MarketService
	clock         *common.Clock
	logger        *common.Logger
	maxConcurrent int

	events     interfaces.EventPublisher
	eventTopic string
}

// NewService creates a new portfolio service
func NewService(
	storage interfaces.StorageManager,
	market interfaces.MarketService,
	clock *common.Clock,
	config common.PortfolioConfig,
	logger *common.Logger,
) *Service {
	maxConcurrent := config.MaxConcurrentReports
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		storage:       storage,
		market:        market,
		clock:         clock,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// SetEventPublisher enables report events on the given topic prefix.
func (s *Service) SetEventPublisher(pub interfaces.EventPublisher, prefix string) {
	s.events = pub
	s.eventTopic = TopicReportGenerated
	if prefix != "" {
		s.eventTopic = prefix + "." + TopicReportGenerated
	}
}

// Report replays one account through yesterday and summarises its holdings.
// An account with no transactions yields an empty report, not an error.
func (s *Service) Report(ctx context.Context, accountID int64) (*models.Report, error) {
	account, err := s.storage.AccountStore().GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}

	txs, err := s.storage.TransactionStore().ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for account %d: %w", accountID, err)
	}

	start := time.Now()
	through := s.clock.Yesterday()
	l := ledger.New(s.market)

	report := &models.Report{
		Account:     *account,
		GeneratedAt: time.Now().UTC(),
	}

	ts, err := ledger.Replay(ctx, txs, l, through)
	switch {
	case errors.Is(err, ledger.ErrNoTransactions):
		report.Empty = true
		report.Timeseries = models.Timeseries{StartDate: through, EndDate: through}
		report.Summary = models.Summary{Date: through}
		s.publish(ctx, report)
		return report, nil
	case err != nil:
		return nil, fmt.Errorf("replay account %d: %w", accountID, err)
	}

	report.Cash = l.Cash
	report.Invested = l.Invest
	report.CapitalGain = l.CapitalGain
	report.Interest = l.Interest
	report.Dividend = l.Dividend
	report.TaxFee = l.TaxFee
	report.Timeseries = *ts
	report.Summary = ledger.Summarize(ctx, l, s.market, through)

	s.logger.Info().
		Int64("account_id", accountID).
		Int("transactions", len(txs)).
		Int("snapshots", len(ts.Snapshots)).
		Dur("elapsed", time.Since(start)).
		Msg("Report generated")

	s.publish(ctx, report)
	return report, nil
}

// Reports computes several accounts concurrently, bounded by
// portfolio.max_concurrent_reports. Successful reports are returned even
// when others fail; the failures are joined into the error.
func (s *Service) Reports(ctx context.Context, accountIDs []int64) (map[int64]*models.Report, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		errs    []error
		reports = make(map[int64]*models.Report, len(accountIDs))
		sem     = make(chan struct{}, s.maxConcurrent)
	)

	for _, id := range accountIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				errs = append(errs, fmt.Errorf("account %d: %w", id, ctx.Err()))
				mu.Unlock()
				return
			}

			report, err := s.Report(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			reports[id] = report
		}(id)
	}

	wg.Wait()
	return reports, errors.Join(errs...)
}

// Symbols returns every security symbol referenced by any account, sorted.
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	accounts, err := s.storage.AccountStore().ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	seen := make(map[string]bool)
	for _, a := range accounts {
		txs, err := s.storage.TransactionStore().ListTransactions(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions for account %d: %w", a.ID, err)
		}
		for _, tx := range txs {
			if tx.Symbol != "" {
				seen[tx.Symbol] = true
			}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *Service) publish(ctx context.Context, report *models.Report) {
	if s.events == nil {
		return
	}
	event := models.ReportEvent{
		AccountID:   report.Account.ID,
		GeneratedAt: report.GeneratedAt,
		Snapshots:   len(report.Timeseries.Snapshots),
		Symbols:     len(report.Summary.Rows),
		Empty:       report.Empty,
	}
	if err := s.events.Publish(ctx, s.eventTopic, event); err != nil {
		s.logger.Warn().Err(err).Int64("account_id", report.Account.ID).Msg("Failed to publish report event")
	}
}

// Compile-time check
var _ interfaces.PortfolioService = (*Service)(nil)

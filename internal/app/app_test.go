package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Reporting.Timezone = "UTC"
	cfg.Clients.EODHD.APIKey = ""
	cfg.Scheduler.WarmCache = false
	cfg.Scheduler.PriceRefreshInterval = "off"
	return cfg
}

func TestNewAppWithConfig_InitializesServices(t *testing.T) {
	a, err := NewAppWithConfig(testConfig(), common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.Clock)
	assert.NotNil(t, a.MarketService)
	assert.NotNil(t, a.PortfolioService)
	assert.Nil(t, a.EODHDClient, "no api key means no remote client")
	assert.Nil(t, a.Events, "no brokers means no publisher")
	assert.Equal(t, "memory", a.Storage.Backend())
	assert.False(t, a.StartupTime.IsZero())
}

func TestNewAppWithConfig_WithEODHDKey(t *testing.T) {
	cfg := testConfig()
	cfg.Clients.EODHD.APIKey = "demo"

	a, err := NewAppWithConfig(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.EODHDClient)
}

func TestNewAppWithConfig_ImportsSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.SeedFile = writeSeed(t, seedJSON)

	a, err := NewAppWithConfig(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	accounts, err := a.Storage.AccountStore().ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	symbols, err := a.PortfolioService.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)
}

func TestNewAppWithConfig_Errors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Backend = "mongodb"
		_, err := NewAppWithConfig(cfg, common.NewSilentLogger())
		assert.Error(t, err)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		cfg := testConfig()
		cfg.Reporting.Timezone = "Mars/Olympus"
		_, err := NewAppWithConfig(cfg, common.NewSilentLogger())
		assert.Error(t, err)
	})

	t.Run("broken seed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.SeedFile = writeSeed(t, `{"accounts": [{"name": "no id"}]}`)
		_, err := NewAppWithConfig(cfg, common.NewSilentLogger())
		assert.Error(t, err)
	})
}

func TestClose_Idempotent(t *testing.T) {
	a, err := NewAppWithConfig(testConfig(), common.NewSilentLogger())
	require.NoError(t, err)

	a.Close()
	assert.Nil(t, a.Storage)
	a.Close()
}

func TestStartBackground_DisabledByConfig(t *testing.T) {
	a, err := NewAppWithConfig(testConfig(), common.NewSilentLogger())
	require.NoError(t, err)
	defer a.Close()

	a.StartWarmCache()
	a.StartPriceScheduler()
	assert.Nil(t, a.warmCacheCancel)
	assert.Nil(t, a.schedulerCancel)
}

// --- background workers ---

type symbolsOnlyPortfolio struct {
	interfaces.PortfolioService
	symbols []string
	err     error
}

func (p *symbolsOnlyPortfolio) Symbols(context.Context) ([]string, error) {
	return p.symbols, p.err
}

type recordingMarket struct {
	interfaces.MarketService
	mu        sync.Mutex
	refreshed [][]string
	warmed    [][]string
	err       error
}

func (m *recordingMarket) Refresh(_ context.Context, symbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, symbols)
	return m.err
}

func (m *recordingMarket) Warm(_ context.Context, symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmed = append(m.warmed, symbols)
}

func (m *recordingMarket) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refreshed)
}

func TestRefreshPrices(t *testing.T) {
	logger := common.NewSilentLogger()

	t.Run("refreshes every symbol", func(t *testing.T) {
		market := &recordingMarket{err: errors.New("partial failure")}
		refreshPrices(context.Background(), &symbolsOnlyPortfolio{symbols: []string{"AAPL", "005930"}}, market, logger)
		require.Len(t, market.refreshed, 1)
		assert.Equal(t, []string{"AAPL", "005930"}, market.refreshed[0])
	})

	t.Run("no symbols", func(t *testing.T) {
		market := &recordingMarket{}
		refreshPrices(context.Background(), &symbolsOnlyPortfolio{}, market, logger)
		assert.Empty(t, market.refreshed)
	})

	t.Run("symbol listing fails", func(t *testing.T) {
		market := &recordingMarket{}
		refreshPrices(context.Background(), &symbolsOnlyPortfolio{err: errors.New("db down")}, market, logger)
		assert.Empty(t, market.refreshed)
	})
}

func TestStartPriceScheduler_TicksUntilCancelled(t *testing.T) {
	market := &recordingMarket{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		startPriceScheduler(ctx, &symbolsOnlyPortfolio{symbols: []string{"AAPL"}}, market, common.NewSilentLogger(), 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return market.refreshCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestWarmCache(t *testing.T) {
	market := &recordingMarket{}
	warmCache(context.Background(), &symbolsOnlyPortfolio{symbols: []string{"AAPL", "GOOG"}}, market, common.NewSilentLogger())
	require.Len(t, market.warmed, 1)
	assert.Equal(t, []string{"AAPL", "GOOG"}, market.warmed[0])

	empty := &recordingMarket{}
	warmCache(context.Background(), &symbolsOnlyPortfolio{}, empty, common.NewSilentLogger())
	assert.Empty(t, empty.warmed)
}

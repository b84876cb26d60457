package scraper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"market-tools-go/internal/coingecko"
	"market-tools-go/internal/config"
	"market-tools-go/internal/database"
	"market-tools-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockRestClient is a mock implementation of the RestClientInterface.
type MockRestClient struct {
	mock.Mock
}

func (m *MockRestClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRestClient) GetMarkets(ctx context.Context, ids []string, vsCurrency string, windows []string) ([]coingecko.Market, error) {
	args := m.Called(ctx, ids, vsCurrency, windows)
	return args.Get(0).([]coingecko.Market), args.Error(1)
}

func (m *MockRestClient) GetSimplePrices(ctx context.Context, ids []string, vsCurrency string) (map[string]coingecko.SimplePrice, error) {
	args := m.Called(ctx, ids, vsCurrency)
	return args.Get(0).(map[string]coingecko.SimplePrice), args.Error(1)
}

var testCfg = config.Scraper{
	CoinIDs:    []string{"bitcoin", "ethereum", "solana"},
	VsCurrency: "usd",
	Windows:    []string{"1h", "24h", "7d"},
	Interval:   600,
}

// setupTest creates a full test environment with a mock client and a file-backed sqlite DB.
func setupTest(t *testing.T) (*gorm.DB, *MockRestClient) {
	db, err := database.NewDatabase(&config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "scraper.db")})
	require.NoError(t, err)
	return db, new(MockRestClient)
}

func markets() []coingecko.Market {
	return []coingecko.Market{
		{
			ID: "bitcoin", Symbol: "btc", Name: "Bitcoin",
			CurrentPrice:            decimal.RequireFromString("67000.5"),
			MarketCap:               decimal.NewFromInt(1_320_000_000_000),
			PriceChangePercentage1h: decimal.RequireFromString("0.25"),
			PriceChangePercentage1d: decimal.RequireFromString("-1.5"),
			PriceChangePercentage7d: decimal.RequireFromString("3.75"),
		},
		{
			ID: "ethereum", Symbol: "eth", Name: "Ethereum",
			CurrentPrice: decimal.RequireFromString("3500.25"),
			MarketCap:    decimal.NewFromInt(420_000_000_000),
		},
	}
}

func prices() map[string]coingecko.SimplePrice {
	return map[string]coingecko.SimplePrice{
		"bitcoin":  {Price: decimal.RequireFromString("67000.5"), Volume24h: decimal.NewFromInt(35_000_000_000)},
		"ethereum": {Price: decimal.RequireFromString("3500.25"), Volume24h: decimal.NewFromInt(15_000_000_000)},
		"solana":   {Price: decimal.RequireFromString("150.5"), Volume24h: decimal.NewFromInt(2_000_000_000)},
	}
}

func TestCollect_MergesAndSkipsMissing(t *testing.T) {
	db, mockClient := setupTest(t)
	s := NewScraper(zap.NewNop(), &testCfg, mockClient, db)

	mockClient.On("GetMarkets", mock.Anything, testCfg.CoinIDs, "usd", testCfg.Windows).Return(markets(), nil)
	mockClient.On("GetSimplePrices", mock.Anything, testCfg.CoinIDs, "usd").Return(prices(), nil)

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)
	mockClient.AssertExpectations(t)

	// solana has a price but no market entry
	require.Len(t, rows, 2)
	assert.Equal(t, "bitcoin", rows[0].CoinID)
	assert.Equal(t, "Bitcoin", rows[0].Name)
	assert.True(t, decimal.NewFromInt(35_000_000_000).Equal(rows[0].VolumeOneDay))
	assert.True(t, decimal.RequireFromString("-1.5").Equal(rows[0].PercentageChangeOneDay))
	assert.Equal(t, "ethereum", rows[1].CoinID)
}

func TestCollect_Errors(t *testing.T) {
	t.Run("MarketsFail", func(t *testing.T) {
		db, mockClient := setupTest(t)
		s := NewScraper(zap.NewNop(), &testCfg, mockClient, db)
		mockClient.On("GetMarkets", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]coingecko.Market(nil), errors.New("API down"))

		_, err := s.Collect(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API down")
		mockClient.AssertNotCalled(t, "GetSimplePrices", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PricesFail", func(t *testing.T) {
		db, mockClient := setupTest(t)
		s := NewScraper(zap.NewNop(), &testCfg, mockClient, db)
		mockClient.On("GetMarkets", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(markets(), nil)
		mockClient.On("GetSimplePrices", mock.Anything, mock.Anything, mock.Anything).
			Return(map[string]coingecko.SimplePrice(nil), errors.New("rate limited"))

		_, err := s.Collect(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "could not get prices")
	})
}

func TestSave(t *testing.T) {
	db, mockClient := setupTest(t)
	s := NewScraper(zap.NewNop(), &testCfg, mockClient, db)

	rows := []models.MarketData{
		{CoinID: "bitcoin", Name: "Bitcoin", Symbol: "btc", CurrentPrice: decimal.RequireFromString("67000.5")},
		{CoinID: "ethereum", Name: "Ethereum", Symbol: "eth", CurrentPrice: decimal.RequireFromString("3500.25")},
	}
	assert.Equal(t, 2, s.Save(context.Background(), rows))

	var stored []models.MarketData
	require.NoError(t, db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, "ethereum", stored[1].CoinID)
	assert.True(t, decimal.RequireFromString("3500.25").Equal(stored[1].CurrentPrice))
	assert.False(t, stored[0].Timestamp.IsZero())
}

func TestRun_CollectsUntilCancelled(t *testing.T) {
	db, mockClient := setupTest(t)
	cfg := testCfg
	cfg.Interval = 3600
	s := NewScraper(zap.NewNop(), &cfg, mockClient, db)

	mockClient.On("GetMarkets", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(markets(), nil)
	mockClient.On("GetSimplePrices", mock.Anything, mock.Anything, mock.Anything).Return(prices(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The first cycle runs immediately.
	require.Eventually(t, func() bool {
		var count int64
		db.Model(&models.MarketData{}).Count(&count)
		return count == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scraper did not stop after cancel")
	}
}

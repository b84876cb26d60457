package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-tools-go/internal/coingecko"
	"market-tools-go/internal/config"
	"market-tools-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scraper periodically snapshots CoinGecko market data into the database.
type Scraper struct {
	logger *zap.Logger
	cfg    *config.Scraper
	client coingecko.RestClientInterface
	db     *gorm.DB
}

// NewScraper creates a new market data scraper.
func NewScraper(logger *zap.Logger, cfg *config.Scraper, client coingecko.RestClientInterface, db *gorm.DB) *Scraper {
	return &Scraper{
		logger: logger.Named("scraper"),
		cfg:    cfg,
		client: client,
		db:     db,
	}
}

// Run polls once immediately and then every configured interval until ctx
// is cancelled. A failed cycle is logged and the loop carries on.
func (s *Scraper) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting scrape loop",
		zap.Duration("interval", interval),
		zap.Strings("coins", s.cfg.CoinIDs),
	)

	for {
		if err := s.cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Scrape cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scraper...")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scraper) cycle(ctx context.Context) error {
	rows, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	saved := s.Save(ctx, rows)
	s.logger.Info("Scrape cycle complete", zap.Int("collected", len(rows)), zap.Int("saved", saved))
	return nil
}

// Collect fetches both market endpoints and merges them into one row per
// coin. Coins the markets endpoint did not return are skipped.
func (s *Scraper) Collect(ctx context.Context) ([]models.MarketData, error) {
	markets, err := s.client.GetMarkets(ctx, s.cfg.CoinIDs, s.cfg.VsCurrency, s.cfg.Windows)
	if err != nil {
		return nil, fmt.Errorf("could not get markets: %w", err)
	}
	prices, err := s.client.GetSimplePrices(ctx, s.cfg.CoinIDs, s.cfg.VsCurrency)
	if err != nil {
		return nil, fmt.Errorf("could not get prices: %w", err)
	}

	byID := make(map[string]coingecko.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}

	// Walk the configured ids so the output order is stable.
	rows := make([]models.MarketData, 0, len(prices))
	for _, id := range s.cfg.CoinIDs {
		price, ok := prices[id]
		if !ok {
			s.logger.Warn("Coin missing from price response", zap.String("coin_id", id))
			continue
		}
		market, ok := byID[id]
		if !ok {
			s.logger.Warn("Coin missing from markets response", zap.String("coin_id", id))
			continue
		}

		rows = append(rows, models.MarketData{
			CoinID:                  market.ID,
			Name:                    market.Name,
			Symbol:                  market.Symbol,
			CurrentPrice:            market.CurrentPrice,
			MarketCap:               market.MarketCap,
			VolumeOneDay:            price.Volume24h,
			PercentageChangeOneHour: market.PriceChangePercentage1h,
			PercentageChangeOneDay:  market.PriceChangePercentage1d,
			PercentageChangeOneWeek: market.PriceChangePercentage7d,
		})
	}
	return rows, nil
}

// Save inserts each row on its own so one bad row does not lose the rest.
// It returns the number of rows written.
func (s *Scraper) Save(ctx context.Context, rows []models.MarketData) int {
	saved := 0
	for i := range rows {
		if err := s.db.WithContext(ctx).Create(&rows[i]).Error; err != nil {
			s.logger.Error("Failed to save market data",
				zap.String("coin_id", rows[i].CoinID),
				zap.Error(err),
			)
			continue
		}
		saved++
	}
	return saved
}

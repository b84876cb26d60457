package coingecko

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-tools-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
	maxRetries     = 3
)

// RestClientInterface defines the interface for the CoinGecko REST API client.
type RestClientInterface interface {
	Ping(ctx context.Context) error
	GetMarkets(ctx context.Context, ids []string, vsCurrency string, windows []string) ([]Market, error)
	GetSimplePrices(ctx context.Context, ids []string, vsCurrency string) (map[string]SimplePrice, error)
}

// RestClient is a client for the CoinGecko REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	logger    *zap.Logger
	limiter   *rate.Limiter
	retryBase time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new CoinGecko REST API client.
func NewRestClient(cfg *config.CoinGecko, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(url).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	}
	if cfg.ApiKey != "" {
		client.SetHeader(apiKeyHeader, cfg.ApiKey)
	} else {
		logger.Warn("No CoinGecko API key configured, using the public rate limits")
	}

	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &RestClient{
		client:    client,
		logger:    logger.Named("coingecko"),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		retryBase: time.Second,
	}
}

// Market is one entry of the /coins/markets response.
// Missing or null numbers decode as zero.
type Market struct {
	ID                      string          `json:"id"`
	Symbol                  string          `json:"symbol"`
	Name                    string          `json:"name"`
	CurrentPrice            decimal.Decimal `json:"current_price"`
	MarketCap               decimal.Decimal `json:"market_cap"`
	TotalVolume             decimal.Decimal `json:"total_volume"`
	PriceChangePercentage1h decimal.Decimal `json:"price_change_percentage_1h_in_currency"`
	PriceChangePercentage1d decimal.Decimal `json:"price_change_percentage_24h_in_currency"`
	PriceChangePercentage7d decimal.Decimal `json:"price_change_percentage_7d_in_currency"`
}

// SimplePrice is one coin of the /simple/price response.
type SimplePrice struct {
	Price     decimal.Decimal
	Volume24h decimal.Decimal
}

// Ping checks connectivity with the /ping endpoint.
func (c *RestClient) Ping(ctx context.Context) error {
	type pingResponse struct {
		GeckoSays string `json:"gecko_says"`
	}

	req := c.client.R().SetResult(&pingResponse{})
	resp, err := c.doRequest(ctx, http.MethodGet, "/ping", req)
	if err != nil {
		c.logger.Error("Failed to ping CoinGecko", zap.Error(err))
		return fmt.Errorf("failed to ping: %w", err)
	}

	c.logger.Debug("Ping succeeded", zap.String("gecko_says", resp.Result().(*pingResponse).GeckoSays))
	return nil
}

// GetMarkets fetches market data for the given coin ids, including the
// price change percentages for each window (e.g. "1h", "24h", "7d").
func (c *RestClient) GetMarkets(ctx context.Context, ids []string, vsCurrency string, windows []string) ([]Market, error) {
	var markets []Market

	req := c.client.R().
		SetResult(&markets).
		SetQueryParams(map[string]string{
			"vs_currency":             vsCurrency,
			"ids":                     strings.Join(ids, ","),
			"price_change_percentage": strings.Join(windows, ","),
			"precision":               "full",
		})

	resp, err := c.doRequest(ctx, http.MethodGet, "/coins/markets", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}

	return *resp.Result().(*[]Market), nil
}

// GetSimplePrices fetches the price and 24h volume of the given coin ids.
func (c *RestClient) GetSimplePrices(ctx context.Context, ids []string, vsCurrency string) (map[string]SimplePrice, error) {
	raw := make(map[string]map[string]decimal.Decimal)

	req := c.client.R().
		SetResult(&raw).
		SetQueryParams(map[string]string{
			"vs_currencies":    vsCurrency,
			"ids":              strings.Join(ids, ","),
			"precision":        "full",
			"include_24hr_vol": "true",
		})

	resp, err := c.doRequest(ctx, http.MethodGet, "/simple/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get simple prices: %w", err)
	}

	result := *resp.Result().(*map[string]map[string]decimal.Decimal)
	prices := make(map[string]SimplePrice, len(result))
	for id, fields := range result {
		prices[id] = SimplePrice{
			Price:     fields[vsCurrency],
			Volume24h: fields[vsCurrency+"_24h_vol"],
		}
	}
	return prices, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil { // Network or other client-side errors
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = true
		} else {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if !shouldRetry {
			return nil, err
		}
		if i == maxRetries-1 {
			break
		}

		// Exponential backoff: base, 2*base, 4*base
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.retryBase
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"market-tools-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().
		SetBaseURL(server.URL).
		SetHeader(apiKeyHeader, "test_api_key")

	rc := &RestClient{
		client:    client,
		logger:    zap.NewNop(), // Use a no-op logger for tests
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		retryBase: time.Millisecond,
	}

	return rc, server
}

func TestPing(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ping", r.URL.Path)
			assert.Equal(t, "test_api_key", r.Header.Get(apiKeyHeader))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"gecko_says":"(V3) To the Moon!"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		assert.NoError(t, rc.Ping(context.Background()))
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":{"error_code":10002,"error_message":"API Key Missing"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		err := rc.Ping(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping")
		assert.Contains(t, err.Error(), "401")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestGetMarkets(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "bitcoin,ethereum", q.Get("ids"))
		assert.Equal(t, "1h,24h,7d", q.Get("price_change_percentage"))
		assert.Equal(t, "full", q.Get("precision"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":67012.12345678901,"market_cap":1320000000000,
			 "price_change_percentage_1h_in_currency":0.12,"price_change_percentage_24h_in_currency":-1.5,
			 "price_change_percentage_7d_in_currency":3.25},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3500.5,"market_cap":420000000000,
			 "price_change_percentage_1h_in_currency":null,"price_change_percentage_24h_in_currency":2,
			 "price_change_percentage_7d_in_currency":-4}
		]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	markets, err := rc.GetMarkets(context.Background(), []string{"bitcoin", "ethereum"}, "usd", []string{"1h", "24h", "7d"})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	btc := markets[0]
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, "btc", btc.Symbol)
	assert.True(t, decimal.RequireFromString("67012.12345678901").Equal(btc.CurrentPrice), btc.CurrentPrice.String())
	assert.True(t, decimal.NewFromFloat(-1.5).Equal(btc.PriceChangePercentage1d))
	assert.True(t, markets[1].PriceChangePercentage1h.IsZero())
}

func TestGetSimplePrices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currencies"))
		assert.Equal(t, "true", q.Get("include_24hr_vol"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":67000.5,"usd_24h_vol":35000000000.25}}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	prices, err := rc.GetSimplePrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)
	require.Contains(t, prices, "bitcoin")
	assert.True(t, decimal.RequireFromString("67000.5").Equal(prices["bitcoin"].Price))
	assert.True(t, decimal.RequireFromString("35000000000.25").Equal(prices["bitcoin"].Volume24h))
}

func TestDoRequest_Retries(t *testing.T) {
	t.Run("RecoversAfterServerError", func(t *testing.T) {
		var calls atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"gecko_says":"ok"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		assert.NoError(t, rc.Ping(context.Background()))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		var calls atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		err := rc.Ping(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Equal(t, int32(maxRetries), calls.Load())
	})

	t.Run("StopsOnCancelledContext", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()
		rc.retryBase = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		err := rc.Ping(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewRestClient(t *testing.T) {
	cfg := &config.CoinGecko{ApiKey: "key", RateLimit: 1, RateLimitBurst: 0, Timeout: 5}
	rc := NewRestClient(cfg, zap.NewNop())
	assert.NotNil(t, rc)
	assert.Equal(t, DefaultBaseURL, rc.client.BaseURL)
	assert.Equal(t, "key", rc.client.Header.Get(apiKeyHeader))
	assert.Equal(t, 1, rc.limiter.Burst())
}

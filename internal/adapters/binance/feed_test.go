package binance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentarena/arena/internal/adapters/binance"
)

func TestFeed_InitialPrices_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		symbol := r.URL.Query().Get("symbol")
		assert.Equal(t, "BTCUSDT", symbol, "pair converted to Binance form")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"symbol": symbol, "price": "64123.50"})
	}))
	defer srv.Close()

	feed := binance.NewFeed(srv.URL)
	prices, err := feed.InitialPrices(context.Background(), []string{"BTC/USDT"})

	require.NoError(t, err)
	assert.True(t, prices["BTC/USDT"].Equal(decimal.RequireFromString("64123.50")))
}

func TestFeed_InitialPrices_ServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	feed := binance.NewFeed(srv.URL)
	prices, err := feed.InitialPrices(context.Background(), []string{"BTC/USDT", "XYZ/USDT"})

	require.NoError(t, err, "fetch failures degrade to defaults, never error")
	assert.True(t, prices["BTC/USDT"].Equal(decimal.RequireFromString("50000.00")))
	assert.True(t, prices["XYZ/USDT"].Equal(decimal.RequireFromString("100.00")), "unknown symbol quotes at 100")
}

func TestFeed_InitialPrices_GarbagePriceFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"symbol": "ETHUSDT", "price": "not-a-number"})
	}))
	defer srv.Close()

	feed := binance.NewFeed(srv.URL)
	prices, err := feed.InitialPrices(context.Background(), []string{"ETH/USDT"})

	require.NoError(t, err)
	assert.True(t, prices["ETH/USDT"].Equal(decimal.RequireFromString("3000.00")))
}

func TestFeed_InitialPrices_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := binance.NewFeed("http://127.0.0.1:1")
	_, err := feed.InitialPrices(ctx, []string{"BTC/USDT"})
	assert.Error(t, err, "cancellation aborts instead of falling back")
}

func TestStaticFeed_InitialPrices(t *testing.T) {
	feed := binance.NewStaticFeed(map[string]decimal.Decimal{
		"BTC/USDT": decimal.NewFromInt(42000),
	})

	prices, err := feed.InitialPrices(context.Background(), []string{"BTC/USDT", "SOL/USDT"})
	require.NoError(t, err)
	assert.True(t, prices["BTC/USDT"].Equal(decimal.NewFromInt(42000)))
	assert.True(t, prices["SOL/USDT"].Equal(decimal.RequireFromString("150.00")), "falls back to the default table")
}

func TestDefaultPrice(t *testing.T) {
	assert.True(t, binance.DefaultPrice("BTC/USDT").Equal(decimal.RequireFromString("50000.00")))
	assert.True(t, binance.DefaultPrice("WHAT/EVER").Equal(decimal.RequireFromString("100.00")))
}

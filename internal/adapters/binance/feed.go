package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.binance.com"
	tickerPath     = "/api/v3/ticker/price"

	// Well under Binance's public REST budget; match starts are rare.
	requestsPerSec = 10

	maxRetries    = 2
	baseRetryWait = 250 * time.Millisecond
)

// Feed quotes starting prices from Binance's public ticker endpoint.
// Any symbol it cannot quote falls back to the static default table, so
// a match start never depends on the exchange being reachable.
type Feed struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewFeed builds a Feed against baseURL; empty means production.
func NewFeed(baseURL string) *Feed {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Feed{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, 5),
	}
}

// InitialPrices returns a price for every requested symbol. Fetch
// failures degrade per symbol to the default table and are logged, not
// returned; only context cancellation aborts the whole set.
func (f *Feed) InitialPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, err := f.tickerPrice(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("binance.InitialPrices: %w", ctx.Err())
			}
			slog.Warn("ticker fetch failed, using default price", "symbol", symbol, "error", err)
			price = DefaultPrice(symbol)
		}
		prices[symbol] = price
	}
	return prices, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// tickerPrice fetches one symbol, converting "BTC/USDT" to Binance's
// "BTCUSDT" form.
func (f *Feed) tickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s%s?symbol=%s",
		f.baseURL, tickerPath, url.QueryEscape(strings.ReplaceAll(symbol, "/", "")))

	var out tickerResponse
	if err := f.get(ctx, endpoint, &out); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", out.Price, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}
	return price, nil
}

// get does a GET with rate limiting and retries.
func (f *Feed) get(ctx context.Context, endpoint string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			f.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			f.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (f *Feed) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

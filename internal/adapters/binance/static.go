package binance

import (
	"context"

	"github.com/shopspring/decimal"
)

// defaultPrices is the fallback quote table for the common instrument
// set. Anything not listed starts at 100.
var defaultPrices = map[string]decimal.Decimal{
	"BTC/USDT":   decimal.RequireFromString("50000.00"),
	"ETH/USDT":   decimal.RequireFromString("3000.00"),
	"ADA/USDT":   decimal.RequireFromString("1.20"),
	"DOT/USDT":   decimal.RequireFromString("25.00"),
	"LINK/USDT":  decimal.RequireFromString("30.00"),
	"UNI/USDT":   decimal.RequireFromString("20.00"),
	"MATIC/USDT": decimal.RequireFromString("1.50"),
	"AVAX/USDT":  decimal.RequireFromString("80.00"),
	"SOL/USDT":   decimal.RequireFromString("150.00"),
	"ATOM/USDT":  decimal.RequireFromString("40.00"),
}

// DefaultPrice returns the fallback starting price for a symbol.
func DefaultPrice(symbol string) decimal.Decimal {
	if price, ok := defaultPrices[symbol]; ok {
		return price
	}
	return decimal.RequireFromString("100.00")
}

// StaticFeed quotes fixed prices with no network at all. Demo matches
// and tests use it.
type StaticFeed struct {
	prices map[string]decimal.Decimal
}

// NewStaticFeed builds a feed over the given quotes; symbols not in
// prices fall back to the default table.
func NewStaticFeed(prices map[string]decimal.Decimal) *StaticFeed {
	return &StaticFeed{prices: prices}
}

// InitialPrices never fails.
func (f *StaticFeed) InitialPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		if price, ok := f.prices[symbol]; ok {
			out[symbol] = price
			continue
		}
		out[symbol] = DefaultPrice(symbol)
	}
	return out, nil
}

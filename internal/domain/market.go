package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceFloor is the lowest price the synthetic walk can reach. Prices
// never hit zero, so position values stay well defined.
var PriceFloor = decimal.NewFromFloat(0.01)

// Bar is one OHLCV candle for a single instrument over one tick.
type Bar struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// MarketSnapshot is the immutable market state produced for one tick.
type MarketSnapshot struct {
	Tick      int64
	Timestamp time.Time
	Bars      map[string]Bar // symbol -> candle
}

// Close returns the closing price of symbol and whether it is quoted
// in this snapshot.
func (s MarketSnapshot) Close(symbol string) (decimal.Decimal, bool) {
	bar, ok := s.Bars[symbol]
	return bar.Close, ok
}

// ClosePrices extracts the per-symbol closing prices, the carry-over
// input for the next tick's generation.
func (s MarketSnapshot) ClosePrices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(s.Bars))
	for symbol, bar := range s.Bars {
		prices[symbol] = bar.Close
	}
	return prices
}

// Symbols lists the instruments quoted in this snapshot.
func (s MarketSnapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Bars))
	for symbol := range s.Bars {
		symbols = append(symbols, symbol)
	}
	return symbols
}

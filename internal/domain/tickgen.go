package domain

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultVolatility is the per-tick relative price movement bound (0.1%).
const DefaultVolatility = 0.001

// TickGenerator produces synthetic OHLCV candles with a bounded random
// walk. Prices move at most volatility x price per tick and never drop
// below PriceFloor. A generator is owned by a single runner goroutine.
type TickGenerator struct {
	rng        *rand.Rand
	volatility decimal.Decimal
}

// NewTickGenerator builds a generator seeded for reproducible runs.
// volatility <= 0 falls back to DefaultVolatility.
func NewTickGenerator(seed int64, volatility float64) *TickGenerator {
	if volatility <= 0 {
		volatility = DefaultVolatility
	}
	return &TickGenerator{
		rng:        rand.New(rand.NewSource(seed)),
		volatility: decimal.NewFromFloat(volatility),
	}
}

// Next advances the walk one tick from the previous closing prices and
// returns the snapshot for it. Symbols are walked in sorted order so a
// given seed replays the exact same sequence. Non-positive inputs are
// corrected to PriceFloor before walking.
func (g *TickGenerator) Next(prev map[string]decimal.Decimal, tick int64) MarketSnapshot {
	symbols := make([]string, 0, len(prev))
	for symbol := range prev {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	bars := make(map[string]Bar, len(symbols))
	for _, symbol := range symbols {
		open := prev[symbol]
		if !open.IsPositive() {
			open = PriceFloor
		}

		// uniform(-1, 1) x volatility x price
		u := g.rng.Float64()*2 - 1
		change := decimal.NewFromFloat(u).Mul(g.volatility).Mul(open)
		close := open.Add(change)
		if close.LessThan(PriceFloor) {
			close = PriceFloor
		}

		bars[symbol] = Bar{
			Open:   open,
			High:   decimal.Max(open, close),
			Low:    decimal.Min(open, close),
			Close:  close,
			Volume: decimal.NewFromFloat(100 + g.rng.Float64()*900),
		}
	}

	return MarketSnapshot{
		Tick:      tick,
		Timestamp: time.Now().UTC(),
		Bars:      bars,
	}
}

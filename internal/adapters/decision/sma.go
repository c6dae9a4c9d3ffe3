package decision

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/agentarena/arena/internal/domain"
)

const (
	defaultShortWindow = 20
	defaultLongWindow  = 50
)

var defaultOrderQuantity = decimal.NewFromFloat(0.01)

type crossSignal int

const (
	signalHold crossSignal = iota
	signalBuy
	signalSell
)

// smaWindow is a fixed-size ring buffer over the last longWindow close
// prices, with a running sum so the long average is O(1) per tick.
type smaWindow struct {
	short  int
	prices []float64
	head   int
	count  int
	sum    float64

	prevShort float64
	prevLong  float64
}

type windowKey struct {
	participantID int64
	symbol        string
}

// SMA trades simple moving average crossovers on close prices: golden
// cross opens a position, dead cross closes it. Window state is kept
// per participant and symbol so concurrent matches never share history.
// Safe for concurrent use.
type SMA struct {
	short    int
	long     int
	quantity decimal.Decimal

	mu      sync.Mutex
	windows map[windowKey]*smaWindow
}

// NewSMA builds an SMA crossover provider. Non-positive or inverted
// windows fall back to the 20/50 defaults, a non-positive quantity to
// 0.01 units per entry.
func NewSMA(short, long int, quantity float64) *SMA {
	if short <= 0 || long <= 0 || short >= long {
		short, long = defaultShortWindow, defaultLongWindow
	}
	qty := decimal.NewFromFloat(quantity)
	if !qty.IsPositive() {
		qty = defaultOrderQuantity
	}
	return &SMA{
		short:    short,
		long:     long,
		quantity: qty,
		windows:  make(map[windowKey]*smaWindow),
	}
}

// Decide feeds every quoted close into the participant's per-symbol
// windows and emits at most one intent per symbol: buy on a golden
// cross while flat, sell the held position on a dead cross.
func (s *SMA) Decide(_ context.Context, p domain.Participant, snap domain.MarketSnapshot) ([]domain.TradeIntent, error) {
	symbols := snap.Symbols()
	sort.Strings(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	var intents []domain.TradeIntent
	for _, symbol := range symbols {
		price, ok := snap.Close(symbol)
		if !ok {
			continue
		}
		held := p.Position(symbol)

		switch s.window(p.ID, symbol).push(price.InexactFloat64()) {
		case signalBuy:
			if held.IsPositive() {
				continue
			}
			intents = append(intents, domain.TradeIntent{
				ParticipantID: p.ID,
				Action:        domain.ActionBuy,
				Symbol:        symbol,
				Quantity:      s.quantity,
			})
		case signalSell:
			if !held.IsPositive() {
				continue
			}
			intents = append(intents, domain.TradeIntent{
				ParticipantID: p.ID,
				Action:        domain.ActionSell,
				Symbol:        symbol,
				Quantity:      held,
			})
		}
	}
	return intents, nil
}

func (s *SMA) window(participantID int64, symbol string) *smaWindow {
	key := windowKey{participantID: participantID, symbol: symbol}
	w, ok := s.windows[key]
	if !ok {
		w = &smaWindow{short: s.short, prices: make([]float64, s.long)}
		s.windows[key] = w
	}
	return w
}

// push appends a close price and reports whether the averages crossed.
func (w *smaWindow) push(price float64) crossSignal {
	long := len(w.prices)

	// When full, head points at the oldest entry about to be evicted.
	if w.count == long {
		w.sum -= w.prices[w.head]
	}
	w.prices[w.head] = price
	w.sum += price
	w.head = (w.head + 1) % long
	if w.count < long {
		w.count++
	}

	if w.count < long {
		return signalHold
	}

	currLong := w.sum / float64(long)
	currShort := w.shortAvg()

	signal := signalHold
	// No signal until both averages have a previous value to cross from.
	if w.prevShort != 0 && w.prevLong != 0 {
		switch {
		case w.prevShort <= w.prevLong && currShort > currLong:
			signal = signalBuy
		case w.prevShort >= w.prevLong && currShort < currLong:
			signal = signalSell
		}
	}

	w.prevShort = currShort
	w.prevLong = currLong
	return signal
}

// shortAvg walks backwards from the newest entry.
func (w *smaWindow) shortAvg() float64 {
	var sum float64
	idx := w.head
	for i := 0; i < w.short; i++ {
		idx--
		if idx < 0 {
			idx = len(w.prices) - 1
		}
		sum += w.prices[idx]
	}
	return sum / float64(w.short)
}

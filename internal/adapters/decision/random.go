package decision

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/agentarena/arena/internal/domain"
)

// Trading behavior of the mock agent: one decision roughly every ten
// ticks, size between 0.001 and 0.1 units.
const (
	tradeChance = 0.1
	minQuantity = 0.001
	maxQuantity = 0.1
)

// Random is the mock agent brain: occasionally fires a random buy or
// sell of a random instrument. Deterministic for a given seed and call
// sequence. Safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom builds a seeded random provider.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Decide rolls the trade chance and, when it hits, emits exactly one
// intent for a random symbol of the snapshot.
func (r *Random) Decide(_ context.Context, p domain.Participant, snap domain.MarketSnapshot) ([]domain.TradeIntent, error) {
	symbols := snap.Symbols()
	if len(symbols) == 0 {
		return nil, nil
	}
	sort.Strings(symbols) // map order would break seed determinism

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rng.Float64() >= tradeChance {
		return nil, nil
	}

	action := domain.ActionBuy
	if r.rng.Float64() < 0.5 {
		action = domain.ActionSell
	}
	symbol := symbols[r.rng.Intn(len(symbols))]
	qty := minQuantity + r.rng.Float64()*(maxQuantity-minQuantity)

	return []domain.TradeIntent{{
		ParticipantID: p.ID,
		Action:        action,
		Symbol:        symbol,
		Quantity:      decimal.NewFromFloat(qty),
	}}, nil
}

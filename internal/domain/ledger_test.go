package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func makeParticipant(id int64, balance string) *Participant {
	b := dec(balance)
	return &Participant{
		ID:              id,
		MatchID:         1,
		AgentID:         id,
		AgentName:       "agent",
		StartingBalance: b,
		Balance:         b,
		Positions:       map[string]decimal.Decimal{},
		IsActive:        true,
	}
}

func makeSnapshot(tick int64, closes map[string]string) MarketSnapshot {
	bars := make(map[string]Bar, len(closes))
	for symbol, c := range closes {
		price := dec(c)
		bars[symbol] = Bar{Open: price, High: price, Low: price, Close: price, Volume: dec("500")}
	}
	return MarketSnapshot{Tick: tick, Timestamp: time.Now().UTC(), Bars: bars}
}

// portfolioValue is balance plus positions at the snapshot's closes.
func portfolioValue(p *Participant, snap MarketSnapshot) decimal.Decimal {
	total := p.Balance
	for symbol, qty := range p.Positions {
		close, _ := snap.Close(symbol)
		total = total.Add(qty.Mul(close))
	}
	return total
}

// --- buy ---

func TestLedgerApply_BuyDebitsBalanceAndCreditsPosition(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("0.1")},
	}, snap)

	require.Len(t, executed, 1)
	assert.True(t, p.Balance.Equal(dec("5000")), "balance: %s", p.Balance)
	assert.True(t, p.Positions["BTC/USDT"].Equal(dec("0.1")))
	assert.Equal(t, 1, p.TotalTrades)
	assert.Equal(t, ActionBuy, executed[0].Action)
	assert.True(t, executed[0].Cost.Equal(dec("5000")))
	assert.Equal(t, int64(1), executed[0].Tick)
}

func TestLedgerApply_BuyInsufficientBalanceIsNoOp(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "100")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("0.1")},
	}, snap)

	assert.Empty(t, executed)
	assert.True(t, p.Balance.Equal(dec("100")))
	assert.Empty(t, p.Positions)
	assert.Equal(t, 0, p.TotalTrades)
}

func TestLedgerApply_BuyAddsToExistingPosition(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"ETH/USDT": "3000"})

	l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "ETH/USDT", Quantity: dec("1")},
		{ParticipantID: 1, Action: ActionBuy, Symbol: "ETH/USDT", Quantity: dec("0.5")},
	}, snap)

	assert.True(t, p.Positions["ETH/USDT"].Equal(dec("1.5")), "position: %s", p.Positions["ETH/USDT"])
	assert.True(t, p.Balance.Equal(dec("5500")))
	assert.Equal(t, 2, p.TotalTrades)
}

func TestLedgerApply_BuyExactBalanceExecutes(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "5000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("0.1")},
	}, snap)

	require.Len(t, executed, 1)
	assert.True(t, p.Balance.IsZero())
}

func TestLedgerApply_BuyNonPositiveQuantityIsNoOp(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: decimal.Zero},
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("-1")},
	}, snap)

	assert.Empty(t, executed)
	assert.Equal(t, 0, p.TotalTrades)
}

// --- sell ---

func TestLedgerApply_SellLiquidatesFullPosition(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "5000")
	p.Positions["BTC/USDT"] = dec("0.2")
	snap := makeSnapshot(2, map[string]string{"BTC/USDT": "51000"})

	// Requested quantity is ignored: the whole 0.2 goes.
	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionSell, Symbol: "BTC/USDT", Quantity: dec("0.05")},
	}, snap)

	require.Len(t, executed, 1)
	assert.True(t, p.Balance.Equal(dec("15200")), "balance: %s", p.Balance) // 5000 + 0.2x51000
	assert.NotContains(t, p.Positions, "BTC/USDT")
	assert.Equal(t, 1, p.TotalTrades)
	assert.True(t, executed[0].Quantity.Equal(dec("0.2")), "fill reports the liquidated qty")
}

func TestLedgerApply_SellWithoutPositionIsNoOp(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionSell, Symbol: "BTC/USDT", Quantity: dec("0.1")},
	}, snap)

	assert.Empty(t, executed)
	assert.True(t, p.Balance.Equal(dec("10000")))
	assert.Empty(t, p.Positions)
	assert.Equal(t, 0, p.TotalTrades)
}

func TestLedgerApply_UnquotedSymbolIsNoOp(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "DOGE/USDT", Quantity: dec("10")},
	}, snap)

	assert.Empty(t, executed)
	assert.Equal(t, 0, p.TotalTrades)
}

// --- ordering ---

func TestLedgerApply_IntentsSeeEarlierEffects(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000"})

	// Buy then sell in the same tick: the sell liquidates the position
	// the buy just opened.
	executed := l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("0.1")},
		{ParticipantID: 1, Action: ActionSell, Symbol: "BTC/USDT", Quantity: dec("0.1")},
	}, snap)

	require.Len(t, executed, 2)
	assert.True(t, p.Balance.Equal(dec("10000")), "round trip at one price is flat")
	assert.Empty(t, p.Positions)
	assert.Equal(t, 2, p.TotalTrades)
}

func TestLedgerApply_ConservesPortfolioValue(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	snap := makeSnapshot(1, map[string]string{"BTC/USDT": "50000", "ETH/USDT": "3000"})

	before := portfolioValue(p, snap)
	l.Apply(p, []TradeIntent{
		{ParticipantID: 1, Action: ActionBuy, Symbol: "BTC/USDT", Quantity: dec("0.1")},
		{ParticipantID: 1, Action: ActionBuy, Symbol: "ETH/USDT", Quantity: dec("1")},
		{ParticipantID: 1, Action: ActionSell, Symbol: "BTC/USDT", Quantity: dec("0.1")},
		{ParticipantID: 1, Action: ActionSell, Symbol: "DOGE/USDT", Quantity: dec("5")},
	}, snap)
	after := portfolioValue(p, snap)

	assert.True(t, before.Equal(after), "trade mechanics alone must not move value: %s -> %s", before, after)
}

// --- metrics ---

func TestLedgerRecompute_PnLAndReturn(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	p.Balance = dec("10500")

	l.Recompute(p)

	assert.True(t, p.TotalPnL.Equal(dec("500")))
	assert.True(t, p.ReturnPct.Equal(dec("5")), "return: %s", p.ReturnPct)
}

func TestLedgerRecompute_OpenPositionsNotMarked(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "10000")
	p.Balance = dec("5000")
	p.Positions["BTC/USDT"] = dec("0.1")

	l.Recompute(p)

	// Cash-only PnL: the held BTC does not count.
	assert.True(t, p.TotalPnL.Equal(dec("-5000")))
}

func TestLedgerRecompute_ZeroStartingBalance(t *testing.T) {
	l := NewLedger(1)
	p := makeParticipant(1, "0")
	p.Balance = dec("10")

	l.Recompute(p)

	assert.True(t, p.ReturnPct.IsZero(), "zero starting balance must not divide")
}

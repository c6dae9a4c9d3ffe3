package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger executes trade intents against participant accounts at the
// tick's closing prices. No fees, no partial fills: an intent either
// executes in full or is dropped as a no-op.
type Ledger struct {
	matchID int64
}

// NewLedger builds the ledger for one match.
func NewLedger(matchID int64) *Ledger {
	return &Ledger{matchID: matchID}
}

// Apply mutates p with each intent in submission order; later intents
// see the effect of earlier ones. It returns one ExecutedTrade per
// intent that actually executed. No-ops (insufficient balance, missing
// position, unquoted symbol, non-positive quantity) mutate nothing and
// do not count as trades.
func (l *Ledger) Apply(p *Participant, intents []TradeIntent, snap MarketSnapshot) []ExecutedTrade {
	var executed []ExecutedTrade
	for _, intent := range intents {
		price, ok := snap.Close(intent.Symbol)
		if !ok {
			continue
		}

		switch intent.Action {
		case ActionBuy:
			if !intent.Quantity.IsPositive() {
				continue
			}
			cost := intent.Quantity.Mul(price)
			if p.Balance.LessThan(cost) {
				continue
			}
			p.Balance = p.Balance.Sub(cost)
			if p.Positions == nil {
				p.Positions = make(map[string]decimal.Decimal)
			}
			p.Positions[intent.Symbol] = p.Positions[intent.Symbol].Add(intent.Quantity)
			p.TotalTrades++
			executed = append(executed, l.record(p, snap, intent.Action, intent.Symbol, intent.Quantity, price, cost))

		case ActionSell:
			held, ok := p.Positions[intent.Symbol]
			if !ok {
				continue
			}
			// Full-position exit: the requested quantity is ignored.
			revenue := held.Mul(price)
			p.Balance = p.Balance.Add(revenue)
			delete(p.Positions, intent.Symbol)
			p.TotalTrades++
			executed = append(executed, l.record(p, snap, intent.Action, intent.Symbol, held, price, revenue))
		}
	}
	return executed
}

// Recompute refreshes the derived metrics after a tick's intents.
// PnL is the cash delta only: open positions are valued at zero here,
// an explicit simplification of the simulation.
func (l *Ledger) Recompute(p *Participant) {
	p.TotalPnL = p.Balance.Sub(p.StartingBalance)
	if p.StartingBalance.IsZero() {
		p.ReturnPct = decimal.Zero
		return
	}
	p.ReturnPct = p.TotalPnL.Div(p.StartingBalance).Mul(decimal.NewFromInt(100))
}

func (l *Ledger) record(p *Participant, snap MarketSnapshot, action TradeAction, symbol string, qty, price, cost decimal.Decimal) ExecutedTrade {
	return ExecutedTrade{
		ID:            uuid.New().String(),
		MatchID:       l.matchID,
		ParticipantID: p.ID,
		Tick:          snap.Tick,
		Action:        action,
		Symbol:        symbol,
		Quantity:      qty,
		Price:         price,
		Cost:          cost,
		ExecutedAt:    time.Now().UTC(),
	}
}

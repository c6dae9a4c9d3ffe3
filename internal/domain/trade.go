package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is what a decision provider wants to do with a symbol.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// TradeIntent is a single decision emitted by an agent for one tick.
// Intents are ephemeral: the ledger either executes them or drops them.
type TradeIntent struct {
	ParticipantID int64
	Action        TradeAction
	Symbol        string
	Quantity      decimal.Decimal
}

// ExecutedTrade records an intent the ledger actually executed.
// No-ops (insufficient balance, missing position) never produce one.
type ExecutedTrade struct {
	ID            string // uuid
	MatchID       int64
	ParticipantID int64
	Tick          int64
	Action        TradeAction
	Symbol        string
	Quantity      decimal.Decimal
	Price         decimal.Decimal // close price the fill used
	Cost          decimal.Decimal // cash delta magnitude, qty x price
	ExecutedAt    time.Time
}

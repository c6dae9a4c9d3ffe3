package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusRunning   MatchStatus = "running"
	StatusCompleted MatchStatus = "completed"
	StatusCancelled MatchStatus = "cancelled"
)

// Terminal returns true once the match can no longer advance.
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// MatchMode selects how decision providers are wired for a match.
type MatchMode string

const (
	ModeTesting    MatchMode = "testing"
	ModeDemo       MatchMode = "demo"
	ModeProduction MatchMode = "production"
)

// Match is a simulated trading competition between registered agents.
// The runner owns all mutation; everyone else reads persisted rows.
type Match struct {
	ID             int64
	Name           string
	Mode           MatchMode
	Symbols        []string // instrument pairs, e.g. "BTC/USDT"
	TotalTicks     int64
	CurrentTick    int64 // last completed tick, monotone, <= TotalTicks
	InitialBalance decimal.Decimal
	Status         MatchStatus
	WinnerID       *int64 // agent id, set on completion
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// RemainingTicks returns how many ticks are left to simulate.
func (m Match) RemainingTicks() int64 {
	if m.CurrentTick >= m.TotalTicks {
		return 0
	}
	return m.TotalTicks - m.CurrentTick
}

// Participant is one agent's seat in a match: its virtual account.
type Participant struct {
	ID              int64
	MatchID         int64
	AgentID         int64
	AgentName       string // joined from the agents table
	StartingBalance decimal.Decimal
	Balance         decimal.Decimal            // free cash, never negative
	Positions       map[string]decimal.Decimal // symbol -> qty held, absent = none
	TotalTrades     int
	TotalPnL        decimal.Decimal
	ReturnPct       decimal.Decimal
	IsActive        bool
}

// Position returns the held quantity for symbol, zero when none.
func (p *Participant) Position(symbol string) decimal.Decimal {
	if p.Positions == nil {
		return decimal.Zero
	}
	return p.Positions[symbol]
}

// Agent is the cross-match identity of a trading agent, with the
// aggregates the leaderboard ranks on.
type Agent struct {
	ID           int64
	Name         string
	OwnerName    string
	TotalMatches int
	Wins         int
	TotalPnL     decimal.Decimal
	CreatedAt    time.Time
}

// WinRate returns the agent's win percentage, 0 when it never played.
func (a Agent) WinRate() float64 {
	if a.TotalMatches == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.TotalMatches) * 100
}

// Winner picks the participant with the strictly greatest balance;
// ties resolve to the lowest participant ID so reruns stay deterministic.
func Winner(participants []*Participant) *Participant {
	var best *Participant
	for _, p := range participants {
		switch {
		case best == nil:
			best = p
		case p.Balance.GreaterThan(best.Balance):
			best = p
		case p.Balance.Equal(best.Balance) && p.ID < best.ID:
			best = p
		}
	}
	return best
}

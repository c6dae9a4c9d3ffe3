package domain

import (
	"sort"
	"strconv"
	"time"
)

// Event types on the wire.
const (
	EventMatchUpdate       = "match_update"
	EventAgentUpdate       = "agent_update"
	EventLeaderboardUpdate = "leaderboard_update"
)

// LeaderboardChannel is the single fixed channel for leaderboard events.
const LeaderboardChannel = "leaderboard"

// MatchChannel returns the per-match broadcast channel name.
func MatchChannel(matchID int64) string {
	return "match:" + strconv.FormatInt(matchID, 10)
}

// AgentChannel returns the per-agent broadcast channel name.
func AgentChannel(agentID int64) string {
	return "agent:" + strconv.FormatInt(agentID, 10)
}

// Event is the envelope every broadcast carries. Channel routes it and
// never appears on the wire; Data is one of the payload structs below
// (or a decoded map when the event arrived over the bus).
type Event struct {
	Channel   string    `json:"-"`
	Type      string    `json:"type"`
	MatchID   int64     `json:"match_id,omitempty"`
	AgentID   int64     `json:"agent_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantState is the per-participant block of a tick update.
type ParticipantState struct {
	ParticipantID int64   `json:"participant_id"`
	AgentID       int64   `json:"agent_id"`
	AgentName     string  `json:"agent_name"`
	Balance       float64 `json:"balance"`
	PnL           float64 `json:"pnl"`
	ReturnPct     float64 `json:"return_pct"`
	TotalTrades   int     `json:"total_trades"`
}

// BarPayload is the wire form of one OHLCV candle.
type BarPayload struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SnapshotPayload is the wire form of a MarketSnapshot.
type SnapshotPayload struct {
	Tick      int64                 `json:"tick"`
	Timestamp time.Time             `json:"timestamp"`
	Prices    map[string]BarPayload `json:"prices"`
}

// NewSnapshotPayload converts a snapshot to its wire form.
func NewSnapshotPayload(snap MarketSnapshot) SnapshotPayload {
	prices := make(map[string]BarPayload, len(snap.Bars))
	for symbol, bar := range snap.Bars {
		prices[symbol] = BarPayload{
			Open:   bar.Open.InexactFloat64(),
			High:   bar.High.InexactFloat64(),
			Low:    bar.Low.InexactFloat64(),
			Close:  bar.Close.InexactFloat64(),
			Volume: bar.Volume.InexactFloat64(),
		}
	}
	return SnapshotPayload{
		Tick:      snap.Tick,
		Timestamp: snap.Timestamp,
		Prices:    prices,
	}
}

// TickUpdate is the data block broadcast after every completed tick.
type TickUpdate struct {
	Tick         int64              `json:"tick"`
	TotalTicks   int64              `json:"total_ticks"`
	Market       SnapshotPayload    `json:"market_snapshot"`
	Participants []ParticipantState `json:"participants"`
}

// Standing is one row of the final standings, ordered by balance desc.
type Standing struct {
	AgentID      int64   `json:"agent_id"`
	AgentName    string  `json:"agent_name"`
	FinalBalance float64 `json:"final_balance"`
	TotalPnL     float64 `json:"total_pnl"`
	ReturnPct    float64 `json:"return_pct"`
	TotalTrades  int     `json:"total_trades"`
}

// MatchResult is the data block of the completion event.
type MatchResult struct {
	WinnerID   int64      `json:"winner_id"`
	WinnerName string     `json:"winner_name"`
	Standings  []Standing `json:"final_standings"`
}

// AgentMatchSummary is the data block of a per-agent update, emitted
// on the agent's own channel when one of its matches finishes.
type AgentMatchSummary struct {
	MatchID      int64   `json:"match_id"`
	Won          bool    `json:"won"`
	FinalBalance float64 `json:"final_balance"`
	TotalPnL     float64 `json:"total_pnl"`
	ReturnPct    float64 `json:"return_pct"`
	TotalTrades  int     `json:"total_trades"`
}

// AgentRank is one leaderboard row.
type AgentRank struct {
	AgentID      int64   `json:"agent_id"`
	AgentName    string  `json:"agent_name"`
	OwnerName    string  `json:"owner_name"`
	TotalPnL     float64 `json:"total_pnl"`
	TotalMatches int     `json:"total_matches"`
	WinRate      float64 `json:"win_rate"`
}

// LeaderboardUpdate is the data block of a leaderboard event.
type LeaderboardUpdate struct {
	TopAgents []AgentRank `json:"top_agents"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewTickEvent builds the tick-update event for a completed tick.
func NewTickEvent(match *Match, participants []*Participant, snap MarketSnapshot) Event {
	states := make([]ParticipantState, 0, len(participants))
	for _, p := range participants {
		states = append(states, ParticipantState{
			ParticipantID: p.ID,
			AgentID:       p.AgentID,
			AgentName:     p.AgentName,
			Balance:       p.Balance.InexactFloat64(),
			PnL:           p.TotalPnL.InexactFloat64(),
			ReturnPct:     p.ReturnPct.InexactFloat64(),
			TotalTrades:   p.TotalTrades,
		})
	}

	return Event{
		Channel: MatchChannel(match.ID),
		Type:    EventMatchUpdate,
		MatchID: match.ID,
		Data: TickUpdate{
			Tick:         snap.Tick,
			TotalTicks:   match.TotalTicks,
			Market:       NewSnapshotPayload(snap),
			Participants: states,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionEvent builds the final event of a match, standings
// ordered by ending balance descending.
func NewCompletionEvent(match *Match, participants []*Participant, winner *Participant) Event {
	ordered := make([]*Participant, len(participants))
	copy(ordered, participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Balance.GreaterThan(ordered[j].Balance)
	})

	standings := make([]Standing, 0, len(ordered))
	for _, p := range ordered {
		standings = append(standings, Standing{
			AgentID:      p.AgentID,
			AgentName:    p.AgentName,
			FinalBalance: p.Balance.InexactFloat64(),
			TotalPnL:     p.TotalPnL.InexactFloat64(),
			ReturnPct:    p.ReturnPct.InexactFloat64(),
			TotalTrades:  p.TotalTrades,
		})
	}

	return Event{
		Channel: MatchChannel(match.ID),
		Type:    EventMatchUpdate,
		MatchID: match.ID,
		Data: MatchResult{
			WinnerID:   winner.AgentID,
			WinnerName: winner.AgentName,
			Standings:  standings,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentEvent builds the per-agent summary event for a finished
// match, routed to the agent's own channel.
func NewAgentEvent(matchID int64, p *Participant, won bool) Event {
	return Event{
		Channel: AgentChannel(p.AgentID),
		Type:    EventAgentUpdate,
		MatchID: matchID,
		AgentID: p.AgentID,
		Data: AgentMatchSummary{
			MatchID:      matchID,
			Won:          won,
			FinalBalance: p.Balance.InexactFloat64(),
			TotalPnL:     p.TotalPnL.InexactFloat64(),
			ReturnPct:    p.ReturnPct.InexactFloat64(),
			TotalTrades:  p.TotalTrades,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewLeaderboardEvent builds the global leaderboard event from agents
// already ranked by cumulative PnL.
func NewLeaderboardEvent(agents []Agent) Event {
	ranks := make([]AgentRank, 0, len(agents))
	for _, a := range agents {
		ranks = append(ranks, AgentRank{
			AgentID:      a.ID,
			AgentName:    a.Name,
			OwnerName:    a.OwnerName,
			TotalPnL:     a.TotalPnL.InexactFloat64(),
			TotalMatches: a.TotalMatches,
			WinRate:      a.WinRate(),
		})
	}

	now := time.Now().UTC()
	return Event{
		Channel: LeaderboardChannel,
		Type:    EventLeaderboardUpdate,
		Data: LeaderboardUpdate{
			TopAgents: ranks,
			UpdatedAt: now,
		},
		Timestamp: now,
	}
}

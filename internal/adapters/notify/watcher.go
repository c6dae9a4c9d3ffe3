// Package notify renders arena events on the terminal. The Watcher is
// a hub subscriber like any websocket observer; wiring it up is how
// the -watch flag shows a match live.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/agentarena/arena/internal/domain"
)

// Watcher implements ports.Subscriber, printing tick updates as
// compact one-liners and final standings/leaderboards as tables.
type Watcher struct {
	out io.Writer
}

// NewWatcher builds a watcher writing to stdout.
func NewWatcher() *Watcher {
	return &Watcher{out: os.Stdout}
}

// NewWatcherWriter builds a watcher for tests.
func NewWatcherWriter(w io.Writer) *Watcher {
	return &Watcher{out: w}
}

// Deliver renders one event. Events that arrived over the bus carry
// decoded-map data instead of the typed payloads; those are skipped
// rather than half-rendered.
func (w *Watcher) Deliver(_ context.Context, event domain.Event) error {
	switch data := event.Data.(type) {
	case domain.TickUpdate:
		w.printTick(event.MatchID, data)
	case domain.MatchResult:
		w.printResult(event.MatchID, data)
	case domain.LeaderboardUpdate:
		w.printLeaderboard(data)
	}
	return nil
}

// printTick shows the leader of the tick in one line.
func (w *Watcher) printTick(matchID int64, update domain.TickUpdate) {
	now := time.Now().Format("15:04:05")

	var leader domain.ParticipantState
	for i, p := range update.Participants {
		if i == 0 || p.Balance > leader.Balance {
			leader = p
		}
	}

	fmt.Fprintf(w.out, "[%s] match %d tick %d/%d | leader %s $%.2f (%+.2f%%) trades:%d\n",
		now, matchID, update.Tick, update.TotalTicks,
		leader.AgentName, leader.Balance, leader.ReturnPct, leader.TotalTrades)
}

// printResult renders the final standings table.
func (w *Watcher) printResult(matchID int64, result domain.MatchResult) {
	fmt.Fprintf(w.out, "\nmatch %d finished, winner: %s\n", matchID, result.WinnerName)

	table := tablewriter.NewWriter(w.out)
	table.Header("#", "Agent", "Balance", "PnL", "Return%", "Trades")
	for i, s := range result.Standings {
		table.Append(
			fmt.Sprintf("%d", i+1),
			s.AgentName,
			fmt.Sprintf("$%.2f", s.FinalBalance),
			fmt.Sprintf("%+.2f", s.TotalPnL),
			fmt.Sprintf("%+.2f%%", s.ReturnPct),
			fmt.Sprintf("%d", s.TotalTrades),
		)
	}
	table.Render()
}

// printLeaderboard renders the cross-match top agents table.
func (w *Watcher) printLeaderboard(update domain.LeaderboardUpdate) {
	fmt.Fprintf(w.out, "\nleaderboard @ %s\n", update.UpdatedAt.Format("15:04:05"))

	table := tablewriter.NewWriter(w.out)
	table.Header("#", "Agent", "Owner", "Total PnL", "Matches", "Win%")
	for i, a := range update.TopAgents {
		table.Append(
			fmt.Sprintf("%d", i+1),
			a.AgentName,
			a.OwnerName,
			fmt.Sprintf("%+.2f", a.TotalPnL),
			fmt.Sprintf("%d", a.TotalMatches),
			fmt.Sprintf("%.1f%%", a.WinRate),
		)
	}
	table.Render()
}

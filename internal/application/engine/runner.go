// Package engine drives the live match simulations. A Runner owns one
// match's tick loop; the Scheduler keeps at most one Runner per match
// alive and hands out handles for cancellation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentarena/arena/internal/domain"
	"github.com/agentarena/arena/internal/metrics"
	"github.com/agentarena/arena/internal/ports"
)

// ProviderResolver returns the decision provider driving a
// participant. Returning nil leaves the participant without decisions
// for the whole match (it still appears in standings with frozen state).
type ProviderResolver func(p *domain.Participant) ports.DecisionProvider

// Config carries the simulation knobs shared by all runners.
type Config struct {
	// TickInterval is the minimum time between ticks. Zero or negative
	// disables pacing (tests, backfills).
	TickInterval time.Duration

	// Volatility bounds the per-tick relative price movement.
	Volatility float64

	// Seed feeds the tick generator; each match XORs in its own id so
	// concurrent matches walk different price paths but a rerun of the
	// same match replays the same one.
	Seed int64

	// LeaderboardSize caps the top-agents refresh after completion.
	LeaderboardSize int
}

// Runner executes one match from its persisted state to a terminal
// status. It is the single writer of the match's rows; nothing else
// may mutate them while the runner lives.
type Runner struct {
	cfg       Config
	storage   ports.MatchStorage
	feed      ports.PriceFeed
	broadcast ports.Broadcaster
	resolve   ProviderResolver
}

// NewRunner builds a runner over the shared collaborators.
func NewRunner(cfg Config, storage ports.MatchStorage, feed ports.PriceFeed, broadcast ports.Broadcaster, resolve ProviderResolver) *Runner {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &Runner{cfg: cfg, storage: storage, feed: feed, broadcast: broadcast, resolve: resolve}
}

// Run simulates the match until it completes, is cancelled, or a
// persistence failure halts it. It resumes at the persisted
// CurrentTick, so a restarted process never replays completed ticks.
// A cooperative stop (context cancelled, status changed externally) is
// not an error; a halt that leaves the match non-terminal is.
func (r *Runner) Run(ctx context.Context, matchID int64) error {
	match, err := r.storage.GetMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("engine.Runner: load match: %w", err)
	}
	if match.Status.Terminal() {
		slog.Info("match already finished, nothing to run", "match_id", matchID, "status", match.Status)
		return nil
	}
	if match.Status == domain.StatusPending {
		if err := r.storage.SetMatchStatus(ctx, matchID, domain.StatusRunning); err != nil {
			return fmt.Errorf("engine.Runner: mark running: %w", err)
		}
	}
	match.Status = domain.StatusRunning

	participants, err := r.storage.GetParticipants(ctx, matchID)
	if err != nil {
		return fmt.Errorf("engine.Runner: load participants: %w", err)
	}

	prices, err := r.feed.InitialPrices(ctx, match.Symbols)
	if err != nil {
		return fmt.Errorf("engine.Runner: initial prices: %w", err)
	}

	gen := domain.NewTickGenerator(r.cfg.Seed^matchID, r.cfg.Volatility)
	ledger := domain.NewLedger(matchID)

	var limiter *rate.Limiter
	if r.cfg.TickInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.TickInterval), 1)
	}

	slog.Info("match running",
		"match_id", matchID,
		"tick", match.CurrentTick,
		"total_ticks", match.TotalTicks,
		"remaining_ticks", match.RemainingTicks(),
		"participants", len(participants),
	)

	for match.CurrentTick < match.TotalTicks {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				slog.Info("match stopped", "match_id", matchID, "tick", match.CurrentTick, "reason", ctx.Err())
				return nil
			}
		}
		if ctx.Err() != nil {
			slog.Info("match stopped", "match_id", matchID, "tick", match.CurrentTick, "reason", ctx.Err())
			return nil
		}

		// External cancellation is observed here, never mid-tick.
		status, err := r.storage.GetMatchStatus(ctx, matchID)
		if err != nil {
			return fmt.Errorf("engine.Runner: poll status at tick %d: %w", match.CurrentTick, err)
		}
		if status != domain.StatusRunning {
			slog.Info("match status changed externally, stopping",
				"match_id", matchID, "tick", match.CurrentTick, "status", status)
			return nil
		}

		match.CurrentTick++
		snap := gen.Next(prices, match.CurrentTick)
		prices = snap.ClosePrices()

		trades := r.processTick(ctx, match, participants, ledger, snap)

		if err := r.storage.SaveTick(ctx, match, participants, trades); err != nil {
			// Halt with status left non-terminal: retrying here could
			// double-apply the tick. The match stays queryable and an
			// operator (or restart recovery) resumes or cancels it.
			return fmt.Errorf("engine.Runner: persist tick %d: %w", match.CurrentTick, err)
		}

		metrics.TicksTotal.Inc()
		for _, tr := range trades {
			metrics.TradesTotal.WithLabelValues(string(tr.Action)).Inc()
		}

		_ = r.broadcast.Publish(ctx, domain.NewTickEvent(match, participants, snap))
	}

	return r.complete(ctx, match, participants)
}

// processTick collects decisions and settles them for every active
// participant. Provider failures cost that participant the tick only.
func (r *Runner) processTick(ctx context.Context, match *domain.Match, participants []*domain.Participant, ledger *domain.Ledger, snap domain.MarketSnapshot) []domain.ExecutedTrade {
	var trades []domain.ExecutedTrade
	for _, p := range participants {
		if !p.IsActive {
			continue
		}
		provider := r.resolve(p)
		if provider == nil {
			continue
		}
		intents, err := provider.Decide(ctx, *p, snap)
		if err != nil {
			slog.Warn("decision provider failed, skipping participant this tick",
				"match_id", match.ID, "tick", snap.Tick, "participant_id", p.ID, "error", err)
			continue
		}
		trades = append(trades, ledger.Apply(p, intents, snap)...)
	}

	// Metrics refresh for everyone, traded or not.
	for _, p := range participants {
		ledger.Recompute(p)
	}
	return trades
}

// complete finalizes the match: winner, terminal status, completion
// event, then the best-effort aggregate and leaderboard refresh.
func (r *Runner) complete(ctx context.Context, match *domain.Match, participants []*domain.Participant) error {
	winner := domain.Winner(participants)
	if winner == nil {
		if err := r.storage.SetMatchStatus(ctx, match.ID, domain.StatusCompleted); err != nil {
			return fmt.Errorf("engine.Runner: complete empty match: %w", err)
		}
		slog.Info("match completed without participants", "match_id", match.ID)
		return nil
	}

	now := time.Now().UTC()
	if err := r.storage.CompleteMatch(ctx, match.ID, winner.AgentID, now); err != nil {
		return fmt.Errorf("engine.Runner: complete match: %w", err)
	}
	match.Status = domain.StatusCompleted
	match.WinnerID = &winner.AgentID
	match.CompletedAt = &now
	metrics.MatchesCompleted.Inc()

	slog.Info("match completed",
		"match_id", match.ID,
		"winner_agent_id", winner.AgentID,
		"winner", winner.AgentName,
		"final_balance", winner.Balance,
	)

	_ = r.broadcast.Publish(ctx, domain.NewCompletionEvent(match, participants, winner))

	// Everything past this point is a derived refresh, not part of the
	// match's own transaction. Failures are logged and absorbed.
	for _, p := range participants {
		won := p.ID == winner.ID
		if err := r.storage.UpdateAgentAggregates(ctx, p.AgentID, won, p.TotalPnL); err != nil {
			slog.Warn("agent aggregate update failed", "match_id", match.ID, "agent_id", p.AgentID, "error", err)
		}
		_ = r.broadcast.Publish(ctx, domain.NewAgentEvent(match.ID, p, won))
	}

	agents, err := r.storage.TopAgents(ctx, r.cfg.LeaderboardSize)
	if err != nil {
		slog.Warn("leaderboard refresh failed", "match_id", match.ID, "error", err)
		return nil
	}
	_ = r.broadcast.Publish(ctx, domain.NewLeaderboardEvent(agents))
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/agentarena/arena/config"
	"github.com/agentarena/arena/internal/adapters/storage"
	"github.com/agentarena/arena/internal/application/broadcast"
	"github.com/agentarena/arena/internal/application/engine"
	"github.com/agentarena/arena/internal/domain"
)

var demoAgents = []domain.Agent{
	{Name: "alpha-wave", OwnerName: "ada"},
	{Name: "momentum-max", OwnerName: "grace"},
	{Name: "steady-eddy", OwnerName: "linus"},
}

// runDemo seeds a fresh match between the demo agents and runs it to
// completion with the static price feed.
func runDemo(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, sched *engine.Scheduler, hub *broadcast.Hub, ticks int64, watch bool) {
	if ticks <= 0 || ticks > cfg.Arena.MaxTicks {
		ticks = cfg.Arena.MaxTicks
	}
	balance := decimal.NewFromFloat(cfg.Arena.InitialBalance)

	match := &domain.Match{
		Name:           "demo match",
		Mode:           domain.ModeDemo,
		Symbols:        []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
		TotalTicks:     ticks,
		InitialBalance: balance,
	}
	if err := store.CreateMatch(ctx, match); err != nil {
		slog.Error("failed to create demo match", "err", err)
		os.Exit(1)
	}

	for i := range demoAgents {
		agent := demoAgents[i]
		if err := store.CreateAgent(ctx, &agent); err != nil {
			slog.Error("failed to create demo agent", "err", err, "agent", agent.Name)
			os.Exit(1)
		}
		p := &domain.Participant{
			MatchID:         match.ID,
			AgentID:         agent.ID,
			AgentName:       agent.Name,
			StartingBalance: balance,
			Balance:         balance,
			IsActive:        true,
		}
		if err := store.AddParticipant(ctx, p); err != nil {
			slog.Error("failed to seat demo agent", "err", err, "agent", agent.Name)
			os.Exit(1)
		}
	}

	if watch {
		hub.Subscribe(watcherID, domain.MatchChannel(match.ID))
	}

	slog.Info("demo match starting",
		"match_id", match.ID,
		"agents", len(demoAgents),
		"ticks", ticks,
		"initial_balance", balance,
	)

	h, err := sched.Start(ctx, match.ID)
	if err != nil {
		slog.Error("failed to start demo match", "err", err)
		os.Exit(1)
	}
	h.Wait()

	final, err := store.GetMatch(ctx, match.ID)
	if err != nil {
		slog.Error("failed to reload demo match", "err", err)
		return
	}
	attrs := []any{"match_id", final.ID, "status", final.Status, "ticks", final.CurrentTick}
	if final.WinnerID != nil {
		attrs = append(attrs, "winner_agent_id", *final.WinnerID)
	}
	slog.Info("demo match finished", attrs...)
}

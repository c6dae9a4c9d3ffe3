package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentarena/arena/internal/adapters/storage"
	"github.com/agentarena/arena/internal/domain"
)

func openStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeAgent(name string) *domain.Agent {
	return &domain.Agent{Name: name, OwnerName: "owner-" + name, TotalPnL: decimal.Zero}
}

func makeMatch(name string) *domain.Match {
	return &domain.Match{
		Name:           name,
		Mode:           domain.ModeTesting,
		Symbols:        []string{"BTC/USDT", "ETH/USDT"},
		TotalTicks:     100,
		InitialBalance: decimal.NewFromInt(10000),
	}
}

// seedMatch creates an agent, a match and one seat, returning all three.
func seedMatch(t *testing.T, db *storage.SQLiteStorage) (*domain.Agent, *domain.Match, *domain.Participant) {
	t.Helper()
	ctx := context.Background()

	agent := makeAgent("alpha")
	require.NoError(t, db.CreateAgent(ctx, agent))

	match := makeMatch("test match")
	require.NoError(t, db.CreateMatch(ctx, match))

	p := &domain.Participant{
		MatchID:         match.ID,
		AgentID:         agent.ID,
		StartingBalance: match.InitialBalance,
		Balance:         match.InitialBalance,
		Positions:       map[string]decimal.Decimal{},
		TotalPnL:        decimal.Zero,
		ReturnPct:       decimal.Zero,
		IsActive:        true,
	}
	require.NoError(t, db.AddParticipant(ctx, p))
	return agent, match, p
}

func TestSQLiteStorage_CreateAndGetMatch(t *testing.T) {
	db := openStore(t)
	_, match, _ := seedMatch(t, db)
	require.NotZero(t, match.ID)

	got, err := db.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)

	assert.Equal(t, "test match", got.Name)
	assert.Equal(t, domain.ModeTesting, got.Mode)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, got.Symbols)
	assert.Equal(t, int64(100), got.TotalTicks)
	assert.Equal(t, int64(0), got.CurrentTick)
	assert.True(t, got.InitialBalance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.WinnerID)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestSQLiteStorage_GetMatch_NotFound(t *testing.T) {
	db := openStore(t)
	_, err := db.GetMatch(context.Background(), 999)
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteStorage_SetMatchStatus_StampsStartedAt(t *testing.T) {
	db := openStore(t)
	_, match, _ := seedMatch(t, db)
	ctx := context.Background()

	require.NoError(t, db.SetMatchStatus(ctx, match.ID, domain.StatusRunning))

	got, err := db.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)

	status, err := db.GetMatchStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, status)
}

func TestSQLiteStorage_SaveTick_RoundTrip(t *testing.T) {
	db := openStore(t)
	_, match, p := seedMatch(t, db)
	ctx := context.Background()

	match.Status = domain.StatusRunning
	match.CurrentTick = 5
	p.Balance = decimal.NewFromInt(5000)
	p.Positions["BTC/USDT"] = decimal.RequireFromString("0.1")
	p.TotalTrades = 1
	p.TotalPnL = decimal.NewFromInt(-5000)
	p.ReturnPct = decimal.NewFromInt(-50)

	trade := domain.ExecutedTrade{
		ID:            "trade-1",
		MatchID:       match.ID,
		ParticipantID: p.ID,
		Tick:          5,
		Action:        domain.ActionBuy,
		Symbol:        "BTC/USDT",
		Quantity:      decimal.RequireFromString("0.1"),
		Price:         decimal.NewFromInt(50000),
		Cost:          decimal.NewFromInt(5000),
		ExecutedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.SaveTick(ctx, match, []*domain.Participant{p}, []domain.ExecutedTrade{trade}))

	gotMatch, err := db.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), gotMatch.CurrentTick)
	assert.Equal(t, domain.StatusRunning, gotMatch.Status)

	participants, err := db.GetParticipants(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	got := participants[0]
	assert.Equal(t, "alpha", got.AgentName)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, got.Positions["BTC/USDT"].Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, 1, got.TotalTrades)
	assert.True(t, got.TotalPnL.Equal(decimal.NewFromInt(-5000)))
	assert.True(t, got.IsActive)
}

func TestSQLiteStorage_SaveTick_NoTrades(t *testing.T) {
	db := openStore(t)
	_, match, p := seedMatch(t, db)

	match.CurrentTick = 1
	err := db.SaveTick(context.Background(), match, []*domain.Participant{p}, nil)
	assert.NoError(t, err)
}

func TestSQLiteStorage_CompleteMatch(t *testing.T) {
	db := openStore(t)
	agent, match, _ := seedMatch(t, db)
	ctx := context.Background()

	completedAt := time.Now().UTC()
	require.NoError(t, db.CompleteMatch(ctx, match.ID, agent.ID, completedAt))

	got, err := db.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, agent.ID, *got.WinnerID)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteStorage_RunningMatches(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	agent := makeAgent("solo")
	require.NoError(t, db.CreateAgent(ctx, agent))

	running := makeMatch("running")
	pending := makeMatch("pending")
	require.NoError(t, db.CreateMatch(ctx, running))
	require.NoError(t, db.CreateMatch(ctx, pending))
	require.NoError(t, db.SetMatchStatus(ctx, running.ID, domain.StatusRunning))

	ids, err := db.RunningMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{running.ID}, ids)
}

func TestSQLiteStorage_AgentAggregatesAndTopAgents(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	first := makeAgent("first")
	second := makeAgent("second")
	require.NoError(t, db.CreateAgent(ctx, first))
	require.NoError(t, db.CreateAgent(ctx, second))

	require.NoError(t, db.UpdateAgentAggregates(ctx, first.ID, true, decimal.NewFromInt(500)))
	require.NoError(t, db.UpdateAgentAggregates(ctx, first.ID, false, decimal.NewFromInt(-100)))
	require.NoError(t, db.UpdateAgentAggregates(ctx, second.ID, true, decimal.NewFromInt(900)))

	top, err := db.TopAgents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "second", top[0].Name)
	assert.True(t, top[0].TotalPnL.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, 1, top[0].Wins)
	assert.Equal(t, 1, top[0].TotalMatches)

	assert.Equal(t, "first", top[1].Name)
	assert.True(t, top[1].TotalPnL.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 1, top[1].Wins)
	assert.Equal(t, 2, top[1].TotalMatches)
}

func TestSQLiteStorage_UpdateAgentAggregates_UnknownAgent(t *testing.T) {
	db := openStore(t)
	err := db.UpdateAgentAggregates(context.Background(), 404, false, decimal.Zero)
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteStorage_TopAgents_Limit(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, db.CreateAgent(ctx, makeAgent(name)))
	}

	top, err := db.TopAgents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestSQLiteStorage_SaveTick_PreservesExternalStatusChange(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	_, match, p := seedMatch(t, db)
	require.NoError(t, db.SetMatchStatus(ctx, match.ID, domain.StatusRunning))

	// An external cancel lands while the runner's in-memory copy still
	// says running; the next checkpoint must not revert it.
	match.Status = domain.StatusRunning
	require.NoError(t, db.SetMatchStatus(ctx, match.ID, domain.StatusCancelled))

	match.CurrentTick = 2
	require.NoError(t, db.SaveTick(ctx, match, []*domain.Participant{p}, nil))

	reloaded, err := db.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, reloaded.Status)
	assert.Equal(t, int64(2), reloaded.CurrentTick)
}

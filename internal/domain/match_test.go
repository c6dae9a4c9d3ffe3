package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinner_HighestBalance(t *testing.T) {
	a := makeParticipant(1, "10000")
	b := makeParticipant(2, "10000")
	b.Balance = dec("12000")

	w := Winner([]*Participant{a, b})
	require.NotNil(t, w)
	assert.Equal(t, int64(2), w.ID)
}

func TestWinner_TieGoesToLowestID(t *testing.T) {
	// Balances [100, 100, 90] for participants [3, 1, 2] -> winner is 1.
	p3 := makeParticipant(3, "100")
	p1 := makeParticipant(1, "100")
	p2 := makeParticipant(2, "90")

	w := Winner([]*Participant{p3, p1, p2})
	require.NotNil(t, w)
	assert.Equal(t, int64(1), w.ID)
}

func TestWinner_Empty(t *testing.T) {
	assert.Nil(t, Winner(nil))
}

func TestMatchStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestMatch_RemainingTicks(t *testing.T) {
	m := Match{TotalTicks: 10, CurrentTick: 3}
	assert.Equal(t, int64(7), m.RemainingTicks())

	m.CurrentTick = 10
	assert.Equal(t, int64(0), m.RemainingTicks())

	m.CurrentTick = 12
	assert.Equal(t, int64(0), m.RemainingTicks(), "over-advanced tick clamps to zero")
}

func TestAgent_WinRate(t *testing.T) {
	a := Agent{TotalMatches: 4, Wins: 3}
	assert.InDelta(t, 75.0, a.WinRate(), 0.001)

	assert.Equal(t, 0.0, Agent{}.WinRate())
}

func TestParticipant_Position(t *testing.T) {
	p := makeParticipant(1, "10000")
	assert.True(t, p.Position("BTC/USDT").IsZero())

	p.Positions["BTC/USDT"] = dec("0.5")
	assert.True(t, p.Position("BTC/USDT").Equal(dec("0.5")))

	p.Positions = nil
	assert.True(t, p.Position("BTC/USDT").IsZero())
}

package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentarena/arena/internal/domain"
)

// MatchStorage persists matches, participants, agents and executed
// trades. The runner checkpoints through it after every tick, so a
// crashed match is always recoverable from here.
type MatchStorage interface {
	// CreateAgent inserts a new agent and assigns its ID.
	CreateAgent(ctx context.Context, agent *domain.Agent) error

	// CreateMatch inserts a new match in pending state and assigns its ID.
	CreateMatch(ctx context.Context, match *domain.Match) error

	// AddParticipant seats an agent in a match and assigns the row ID.
	AddParticipant(ctx context.Context, p *domain.Participant) error

	// GetMatch loads a match by id.
	GetMatch(ctx context.Context, id int64) (*domain.Match, error)

	// GetMatchStatus reads just the status column. The runner polls it
	// every tick to observe external cancellation.
	GetMatchStatus(ctx context.Context, id int64) (domain.MatchStatus, error)

	// GetParticipants loads all participants of a match with the agent
	// name joined in.
	GetParticipants(ctx context.Context, matchID int64) ([]*domain.Participant, error)

	// SetMatchStatus transitions a match. Moving to running stamps
	// started_at the first time.
	SetMatchStatus(ctx context.Context, id int64, status domain.MatchStatus) error

	// SaveTick checkpoints one completed tick atomically: the tick
	// counter, every participant and the trades executed this tick.
	// It must never write the status column — transitions go through
	// SetMatchStatus and CompleteMatch, so a concurrent external
	// status change cannot be clobbered by a checkpoint.
	SaveTick(ctx context.Context, match *domain.Match, participants []*domain.Participant, trades []domain.ExecutedTrade) error

	// CompleteMatch finalizes a match: status completed, winner and
	// completion time.
	CompleteMatch(ctx context.Context, matchID, winnerAgentID int64, completedAt time.Time) error

	// RunningMatches returns ids of matches left in running state,
	// used to resume them after a restart.
	RunningMatches(ctx context.Context) ([]int64, error)

	// UpdateAgentAggregates folds a finished match into the agent's
	// cross-match record.
	UpdateAgentAggregates(ctx context.Context, agentID int64, won bool, pnl decimal.Decimal) error

	// TopAgents returns up to limit agents ordered by cumulative PnL
	// descending, for the leaderboard.
	TopAgents(ctx context.Context, limit int) ([]domain.Agent, error)

	// Close releases the underlying database handle.
	Close() error
}

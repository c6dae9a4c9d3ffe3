package ports

import (
	"context"

	"github.com/agentarena/arena/internal/domain"
)

// DecisionProvider is an agent's brain: given the participant's current
// account and the tick's market snapshot, it returns the trades the
// agent wants to make. The runner treats provider errors as "no trades
// this tick" — a slow or broken agent never stalls the match.
type DecisionProvider interface {
	// Decide returns the trade intents for one tick. The participant is
	// passed by value; providers cannot touch account state.
	Decide(ctx context.Context, p domain.Participant, snap domain.MarketSnapshot) ([]domain.TradeIntent, error)
}

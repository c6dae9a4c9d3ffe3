package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentarena/arena/internal/domain"
)

const defaultAgentTimeout = 5 * time.Second

// HTTP asks an external agent container for its decisions. Each tick
// the participant's state and the market snapshot are POSTed to the
// agent URL and the returned intents compete like any built-in brain.
// A slow or broken agent costs its participant the tick, never the
// match: the runner logs the error and moves on.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP builds a provider for an agent served at url. A non-positive
// timeout falls back to 5s.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	return &HTTP{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// agentRequest is the body the agent container receives each tick.
type agentRequest struct {
	Participant agentParticipant       `json:"participant"`
	Market      domain.SnapshotPayload `json:"market"`
}

type agentParticipant struct {
	ParticipantID int64              `json:"participant_id"`
	AgentID       int64              `json:"agent_id"`
	Balance       float64            `json:"balance"`
	Positions     map[string]float64 `json:"positions"`
	TotalTrades   int                `json:"total_trades"`
}

// agentResponse is the agent's answer. Quantities may arrive as JSON
// numbers or strings.
type agentResponse struct {
	Intents []agentIntent `json:"intents"`
}

type agentIntent struct {
	Action   string          `json:"action"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Decide POSTs the tick to the agent and converts its answer into
// intents. Unknown actions are dropped; transport and protocol errors
// are returned for the caller to log.
func (h *HTTP) Decide(ctx context.Context, p domain.Participant, snap domain.MarketSnapshot) ([]domain.TradeIntent, error) {
	positions := make(map[string]float64, len(p.Positions))
	for symbol, qty := range p.Positions {
		positions[symbol] = qty.InexactFloat64()
	}

	body, err := json.Marshal(agentRequest{
		Participant: agentParticipant{
			ParticipantID: p.ID,
			AgentID:       p.AgentID,
			Balance:       p.Balance.InexactFloat64(),
			Positions:     positions,
			TotalTrades:   p.TotalTrades,
		},
		Market: domain.NewSnapshotPayload(snap),
	})
	if err != nil {
		return nil, fmt.Errorf("decision.HTTP: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decision.HTTP: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decision.HTTP: call agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("decision.HTTP: agent status %d: %s", resp.StatusCode, b)
	}

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decision.HTTP: decode response: %w", err)
	}

	intents := make([]domain.TradeIntent, 0, len(out.Intents))
	for _, in := range out.Intents {
		action := domain.TradeAction(strings.ToLower(strings.TrimSpace(in.Action)))
		if action != domain.ActionBuy && action != domain.ActionSell {
			continue
		}
		intents = append(intents, domain.TradeIntent{
			ParticipantID: p.ID,
			Action:        action,
			Symbol:        in.Symbol,
			Quantity:      in.Quantity,
		})
	}
	return intents, nil
}

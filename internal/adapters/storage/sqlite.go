package storage

// sqlite.go — match persistence on SQLite (pure Go driver, no CGo).
//
// Layout:
//   - `agents`: one row per registered agent with cross-match aggregates.
//   - `matches`: the match row the runner checkpoints every tick.
//   - `participants`: per-match virtual accounts, positions as JSON.
//   - `trades`: append-only log of executed trades.
//
// Money columns are stored as decimal strings to keep arithmetic exact
// across save/load; ordering casts to REAL where needed.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/agentarena/arena/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT     NOT NULL UNIQUE,
    owner_name    TEXT     NOT NULL DEFAULT '',
    total_matches INTEGER  NOT NULL DEFAULT 0,
    wins          INTEGER  NOT NULL DEFAULT 0,
    total_pnl     TEXT     NOT NULL DEFAULT '0',
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT     NOT NULL,
    mode            TEXT     NOT NULL DEFAULT 'testing',
    symbols         TEXT     NOT NULL,              -- JSON array of pairs
    total_ticks     INTEGER  NOT NULL,
    current_tick    INTEGER  NOT NULL DEFAULT 0,
    initial_balance TEXT     NOT NULL,
    status          TEXT     NOT NULL DEFAULT 'pending',
    winner_id       INTEGER,
    created_at      DATETIME NOT NULL,
    started_at      DATETIME,
    completed_at    DATETIME
);

CREATE TABLE IF NOT EXISTS participants (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    match_id         INTEGER NOT NULL REFERENCES matches(id),
    agent_id         INTEGER NOT NULL REFERENCES agents(id),
    starting_balance TEXT    NOT NULL,
    balance          TEXT    NOT NULL,
    positions        TEXT    NOT NULL DEFAULT '{}', -- JSON symbol -> qty
    total_trades     INTEGER NOT NULL DEFAULT 0,
    total_pnl        TEXT    NOT NULL DEFAULT '0',
    return_pct       TEXT    NOT NULL DEFAULT '0',
    is_active        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS trades (
    id             TEXT PRIMARY KEY,
    match_id       INTEGER  NOT NULL REFERENCES matches(id),
    participant_id INTEGER  NOT NULL REFERENCES participants(id),
    tick           INTEGER  NOT NULL,
    action         TEXT     NOT NULL,
    symbol         TEXT     NOT NULL,
    quantity       TEXT     NOT NULL,
    price          TEXT     NOT NULL,
    cost           TEXT     NOT NULL,
    executed_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_status     ON matches(status);
CREATE INDEX IF NOT EXISTS idx_participants_match ON participants(match_id);
CREATE INDEX IF NOT EXISTS idx_trades_match       ON trades(match_id, tick);
`

// SQLiteStorage implements ports.MatchStorage on SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and applies
// the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// CreateAgent inserts the agent and fills in its assigned ID.
func (s *SQLiteStorage) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (name, owner_name, total_matches, wins, total_pnl, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		agent.Name, agent.OwnerName, agent.TotalMatches, agent.Wins, agent.TotalPnL.String(), agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.CreateAgent: insert %q: %w", agent.Name, err)
	}
	agent.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.CreateAgent: last insert id: %w", err)
	}
	return nil
}

// CreateMatch inserts the match in pending state and fills in its ID.
func (s *SQLiteStorage) CreateMatch(ctx context.Context, match *domain.Match) error {
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	if match.Status == "" {
		match.Status = domain.StatusPending
	}
	symbols, err := json.Marshal(match.Symbols)
	if err != nil {
		return fmt.Errorf("storage.CreateMatch: marshal symbols: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (name, mode, symbols, total_ticks, current_tick, initial_balance, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		match.Name, string(match.Mode), string(symbols), match.TotalTicks, match.CurrentTick,
		match.InitialBalance.String(), string(match.Status), match.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.CreateMatch: insert %q: %w", match.Name, err)
	}
	match.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.CreateMatch: last insert id: %w", err)
	}
	return nil
}

// AddParticipant seats an agent in a match and fills in the row ID.
func (s *SQLiteStorage) AddParticipant(ctx context.Context, p *domain.Participant) error {
	positions, err := marshalPositions(p.Positions)
	if err != nil {
		return fmt.Errorf("storage.AddParticipant: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (match_id, agent_id, starting_balance, balance, positions, total_trades, total_pnl, return_pct, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.MatchID, p.AgentID, p.StartingBalance.String(), p.Balance.String(), positions,
		p.TotalTrades, p.TotalPnL.String(), p.ReturnPct.String(), boolToInt(p.IsActive),
	)
	if err != nil {
		return fmt.Errorf("storage.AddParticipant: insert agent %d into match %d: %w", p.AgentID, p.MatchID, err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.AddParticipant: last insert id: %w", err)
	}
	return nil
}

// GetMatch loads one match by id.
func (s *SQLiteStorage) GetMatch(ctx context.Context, id int64) (*domain.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, mode, symbols, total_ticks, current_tick, initial_balance, status,
		        winner_id, created_at, started_at, completed_at
		 FROM matches WHERE id = ?`, id)

	var (
		m           domain.Match
		mode        string
		symbols     string
		balance     string
		status      string
		winner      sql.NullInt64
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.Name, &mode, &symbols, &m.TotalTicks, &m.CurrentTick,
		&balance, &status, &winner, &m.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("storage.GetMatch: match %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetMatch: scan match %d: %w", id, err)
	}

	m.Mode = domain.MatchMode(mode)
	m.Status = domain.MatchStatus(status)
	if err := json.Unmarshal([]byte(symbols), &m.Symbols); err != nil {
		return nil, fmt.Errorf("storage.GetMatch: unmarshal symbols: %w", err)
	}
	if m.InitialBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("storage.GetMatch: parse initial balance %q: %w", balance, err)
	}
	if winner.Valid {
		m.WinnerID = &winner.Int64
	}
	if startedAt.Valid {
		t := startedAt.Time
		m.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		m.CompletedAt = &t
	}
	return &m, nil
}

// GetMatchStatus reads only the status column.
func (s *SQLiteStorage) GetMatchStatus(ctx context.Context, id int64) (domain.MatchStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM matches WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("storage.GetMatchStatus: match %d not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("storage.GetMatchStatus: match %d: %w", id, err)
	}
	return domain.MatchStatus(status), nil
}

// GetParticipants loads all participants of a match, agent name joined.
func (s *SQLiteStorage) GetParticipants(ctx context.Context, matchID int64) ([]*domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.match_id, p.agent_id, a.name,
		       p.starting_balance, p.balance, p.positions,
		       p.total_trades, p.total_pnl, p.return_pct, p.is_active
		FROM participants p
		JOIN agents a ON a.id = p.agent_id
		WHERE p.match_id = ?
		ORDER BY p.id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetParticipants: query match %d: %w", matchID, err)
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		var (
			p         domain.Participant
			starting  string
			balance   string
			positions string
			pnl       string
			returnPct string
			active    int
		)
		if err := rows.Scan(&p.ID, &p.MatchID, &p.AgentID, &p.AgentName,
			&starting, &balance, &positions, &p.TotalTrades, &pnl, &returnPct, &active); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: scan row: %w", err)
		}
		if p.StartingBalance, err = decimal.NewFromString(starting); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: parse starting balance %q: %w", starting, err)
		}
		if p.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: parse balance %q: %w", balance, err)
		}
		if p.TotalPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: parse pnl %q: %w", pnl, err)
		}
		if p.ReturnPct, err = decimal.NewFromString(returnPct); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: parse return pct %q: %w", returnPct, err)
		}
		if p.Positions, err = unmarshalPositions(positions); err != nil {
			return nil, fmt.Errorf("storage.GetParticipants: %w", err)
		}
		p.IsActive = active == 1
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

// SetMatchStatus transitions a match; the first move to running stamps
// started_at.
func (s *SQLiteStorage) SetMatchStatus(ctx context.Context, id int64, status domain.MatchStatus) error {
	var err error
	if status == domain.StatusRunning {
		_, err = s.db.ExecContext(ctx,
			`UPDATE matches SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			string(status), time.Now().UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE matches SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("storage.SetMatchStatus: match %d -> %s: %w", id, status, err)
	}
	return nil
}

// SaveTick checkpoints one tick atomically: tick counter, all
// participant accounts and the trades executed this tick. The status
// column is deliberately left alone: transitions go through
// SetMatchStatus/CompleteMatch only, so an external cancel landing
// mid-tick is never reverted by the checkpoint.
func (s *SQLiteStorage) SaveTick(ctx context.Context, match *domain.Match, participants []*domain.Participant, trades []domain.ExecutedTrade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveTick: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE matches SET current_tick = ? WHERE id = ?`,
		match.CurrentTick, match.ID,
	); err != nil {
		return fmt.Errorf("storage.SaveTick: update match %d: %w", match.ID, err)
	}

	pstmt, err := tx.PrepareContext(ctx, `
		UPDATE participants
		SET balance = ?, positions = ?, total_trades = ?, total_pnl = ?, return_pct = ?, is_active = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveTick: prepare participants: %w", err)
	}
	defer pstmt.Close()

	for _, p := range participants {
		positions, err := marshalPositions(p.Positions)
		if err != nil {
			return fmt.Errorf("storage.SaveTick: %w", err)
		}
		if _, err := pstmt.ExecContext(ctx,
			p.Balance.String(), positions, p.TotalTrades,
			p.TotalPnL.String(), p.ReturnPct.String(), boolToInt(p.IsActive), p.ID,
		); err != nil {
			return fmt.Errorf("storage.SaveTick: update participant %d: %w", p.ID, err)
		}
	}

	if len(trades) > 0 {
		tstmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (id, match_id, participant_id, tick, action, symbol, quantity, price, cost, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("storage.SaveTick: prepare trades: %w", err)
		}
		defer tstmt.Close()

		for _, tr := range trades {
			if _, err := tstmt.ExecContext(ctx,
				tr.ID, tr.MatchID, tr.ParticipantID, tr.Tick, string(tr.Action), tr.Symbol,
				tr.Quantity.String(), tr.Price.String(), tr.Cost.String(), tr.ExecutedAt,
			); err != nil {
				return fmt.Errorf("storage.SaveTick: insert trade %s: %w", tr.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveTick: commit: %w", err)
	}
	return nil
}

// CompleteMatch finalizes the match row.
func (s *SQLiteStorage) CompleteMatch(ctx context.Context, matchID, winnerAgentID int64, completedAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, winner_id = ?, completed_at = ? WHERE id = ?`,
		string(domain.StatusCompleted), winnerAgentID, completedAt.UTC(), matchID,
	); err != nil {
		return fmt.Errorf("storage.CompleteMatch: match %d: %w", matchID, err)
	}
	return nil
}

// RunningMatches lists matches left in running state, oldest first.
func (s *SQLiteStorage) RunningMatches(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM matches WHERE status = ? ORDER BY id`, string(domain.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("storage.RunningMatches: query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.RunningMatches: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateAgentAggregates folds one finished match into the agent row.
// PnL addition happens in Go so the decimal string stays exact.
func (s *SQLiteStorage) UpdateAgentAggregates(ctx context.Context, agentID int64, won bool, pnl decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpdateAgentAggregates: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT total_pnl FROM agents WHERE id = ?`, agentID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("storage.UpdateAgentAggregates: agent %d not found", agentID)
	}
	if err != nil {
		return fmt.Errorf("storage.UpdateAgentAggregates: read agent %d: %w", agentID, err)
	}
	total, err := decimal.NewFromString(current)
	if err != nil {
		return fmt.Errorf("storage.UpdateAgentAggregates: parse pnl %q: %w", current, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE agents SET total_matches = total_matches + 1, wins = wins + ?, total_pnl = ? WHERE id = ?`,
		boolToInt(won), total.Add(pnl).String(), agentID,
	); err != nil {
		return fmt.Errorf("storage.UpdateAgentAggregates: update agent %d: %w", agentID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.UpdateAgentAggregates: commit: %w", err)
	}
	return nil
}

// TopAgents returns up to limit agents by cumulative PnL descending.
func (s *SQLiteStorage) TopAgents(ctx context.Context, limit int) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_name, total_matches, wins, total_pnl, created_at
		FROM agents
		ORDER BY CAST(total_pnl AS REAL) DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.TopAgents: query: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var (
			a   domain.Agent
			pnl string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerName, &a.TotalMatches, &a.Wins, &pnl, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage.TopAgents: scan row: %w", err)
		}
		if a.TotalPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("storage.TopAgents: parse pnl %q: %w", pnl, err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers ---

func marshalPositions(positions map[string]decimal.Decimal) (string, error) {
	if len(positions) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(positions)
	if err != nil {
		return "", fmt.Errorf("marshal positions: %w", err)
	}
	return string(raw), nil
}

func unmarshalPositions(raw string) (map[string]decimal.Decimal, error) {
	positions := make(map[string]decimal.Decimal)
	if raw == "" {
		return positions, nil
	}
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions %q: %w", raw, err)
	}
	return positions, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentarena/arena/internal/domain"
	"github.com/agentarena/arena/internal/metrics"
	"github.com/agentarena/arena/internal/ports"
)

// Handle is the scheduler's grip on one running match.
type Handle struct {
	MatchID int64

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the runner goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the runner goroutine has exited.
func (h *Handle) Wait() {
	<-h.done
}

// Scheduler owns the set of live runners. Its core invariant: at most
// one Runner per match id at any time — a second concurrent runner
// would double-apply every trade.
type Scheduler struct {
	runner  *Runner
	storage ports.MatchStorage

	mu      sync.Mutex
	running map[int64]*Handle
	wg      sync.WaitGroup
}

// NewScheduler builds a scheduler sharing one Runner across matches.
func NewScheduler(cfg Config, storage ports.MatchStorage, feed ports.PriceFeed, broadcast ports.Broadcaster, resolve ProviderResolver) *Scheduler {
	return &Scheduler{
		runner:  NewRunner(cfg, storage, feed, broadcast, resolve),
		storage: storage,
		running: make(map[int64]*Handle),
	}
}

// Start launches the match's runner, or returns the existing handle if
// the match is already running. Idempotent by design: racing start
// requests for the same id yield the same single runner.
func (s *Scheduler) Start(ctx context.Context, matchID int64) (*Handle, error) {
	s.mu.Lock()
	if h, ok := s.running[matchID]; ok {
		s.mu.Unlock()
		slog.Debug("match already running, returning existing handle", "match_id", matchID)
		return h, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{MatchID: matchID, cancel: cancel, done: make(chan struct{})}
	s.running[matchID] = h
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.RunningMatches.Inc()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, matchID)
			s.mu.Unlock()
			metrics.RunningMatches.Dec()
			cancel()
			close(h.done)
			s.wg.Done()
		}()

		if err := s.runner.Run(runCtx, matchID); err != nil {
			// The runner halted without reaching a terminal status.
			// Deliberately not retried: the persisted state is the
			// recovery point and an operator (or a restart) decides.
			slog.Error("match run halted", "match_id", matchID, "error", err)
		}
	}()

	return h, nil
}

// Cancel stops a running match: the match row is marked cancelled so
// the stop survives a restart, then the runner's context is cut.
// Cancelling a match that is not running is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, matchID int64) {
	s.mu.Lock()
	h, ok := s.running[matchID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.storage.SetMatchStatus(ctx, matchID, domain.StatusCancelled); err != nil {
		slog.Warn("failed to persist cancellation", "match_id", matchID, "error", err)
	}
	h.cancel()
}

// IsRunning reports whether the scheduler currently owns a runner for
// the match.
func (s *Scheduler) IsRunning(matchID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[matchID]
	return ok
}

// Running lists the ids of all matches with a live runner.
func (s *Scheduler) Running() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// ResumeRunning restarts runners for every match the database still
// shows as running — the recovery path after a process restart. Each
// resumed runner picks up at its persisted tick.
func (s *Scheduler) ResumeRunning(ctx context.Context) error {
	ids, err := s.storage.RunningMatches(ctx)
	if err != nil {
		return fmt.Errorf("engine.Scheduler: list running matches: %w", err)
	}
	for _, id := range ids {
		if _, err := s.Start(ctx, id); err != nil {
			return fmt.Errorf("engine.Scheduler: resume match %d: %w", id, err)
		}
		slog.Info("resumed match from persisted state", "match_id", id)
	}
	return nil
}

// Shutdown cancels every runner and waits for all of them to exit.
// Matches stay in running status and are resumed on the next start.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for _, h := range s.running {
		h.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Package lifecycle drives time-triggered group transitions.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/trust"
	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultPeriod      = 60 * time.Second
	DefaultConcurrency = 8
)

// Config holds scheduler configuration.
type Config struct {
	Period      time.Duration // default: 60s
	Timeout     time.Duration // per tick, default: 3/4 of Period
	Concurrency int           // groups processed in parallel, default: 8
	Rules       group.Rules
	Subjects    events.Subjects
	Now         func() time.Time
}

// TickResult summarizes one sweep.
type TickResult struct {
	Visited      int
	Transitioned int
	Failed       int
	Skipped      bool
}

// Scheduler sweeps live groups on a fixed period and commits whatever
// transition group.Advance decides for each of them.
type Scheduler struct {
	cfg       Config
	store     group.Store
	ledger    *trust.Ledger
	locks     *group.Locks
	publisher events.Publisher
	logger    *slog.Logger

	running atomic.Bool

	mu      sync.Mutex
	pending map[uuid.UUID][]trust.Delta // committed transitions whose deltas are not applied yet
}

// NewScheduler creates a scheduler. locks must be the table the membership
// registry uses so both writers serialize on the same group.
func NewScheduler(cfg Config, store group.Store, ledger *trust.Ledger, locks *group.Locks, publisher events.Publisher, logger *slog.Logger) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Timeout <= 0 || cfg.Timeout >= cfg.Period {
		cfg.Timeout = cfg.Period * 3 / 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Subjects.Prefix == "" {
		cfg.Subjects = events.NewSubjects("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if locks == nil {
		locks = group.NewLocks()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		ledger:    ledger,
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		pending:   make(map[uuid.UUID][]trust.Delta),
	}
}

// Run ticks every Period until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("lifecycle scheduler started", "period", s.cfg.Period, "concurrency", s.cfg.Concurrency)

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle scheduler stopped")
			return nil
		case <-ticker.C:
			res, err := s.Tick(ctx)
			if err != nil {
				s.logger.Error("lifecycle tick failed", "error", err)
				continue
			}
			if res.Transitioned > 0 || res.Failed > 0 {
				s.logger.Info("lifecycle tick finished",
					"visited", res.Visited,
					"transitioned", res.Transitioned,
					"failed", res.Failed,
				)
			}
		}
	}
}

// Tick runs one sweep. A tick that starts while another is still running is
// skipped. Failures of single groups are logged and counted, never returned.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous lifecycle tick still running, skipping")
		return TickResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	groups, err := s.store.ListLiveGroups(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("list live groups: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(groups))
	seen := make(map[uuid.UUID]struct{}, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
		seen[g.ID] = struct{}{}
	}
	// Groups that expired with deltas still pending are no longer live.
	for _, id := range s.pendingGroups() {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}

	var transitioned, failed atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		id := id // per-iteration copy (go directive < 1.22)
		eg.Go(func() error {
			changed, err := s.processGroup(ctx, id)
			if err != nil {
				failed.Add(1)
				s.logger.Error("lifecycle commit failed", "group_id", id, "error", err)
			}
			if changed {
				transitioned.Add(1)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return TickResult{
		Visited:      len(ids),
		Transitioned: int(transitioned.Load()),
		Failed:       int(failed.Load()),
	}, nil
}

// processGroup settles pending deltas and then advances one group under its
// lock. It reports whether a transition was committed.
func (s *Scheduler) processGroup(ctx context.Context, id uuid.UUID) (bool, error) {
	var decision group.Decision
	var committed bool
	var at time.Time

	err := s.locks.With(id, func() error {
		if err := s.flushPending(ctx, id); err != nil {
			return err
		}

		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if g.Status.IsTerminal() {
			return nil
		}
		members, err := s.store.ListMembers(ctx, id)
		if err != nil {
			return err
		}

		at = s.cfg.Now()
		decision = group.Advance(g, members, at, s.cfg.Rules)
		if !decision.Changed() {
			return nil
		}

		if err := s.store.TransitionGroup(ctx, id, decision.From, decision.To, decision.Removals); err != nil {
			return fmt.Errorf("commit %s -> %s: %w", decision.From, decision.To, err)
		}
		committed = true

		if len(decision.Deltas) > 0 {
			s.mu.Lock()
			s.pending[id] = append(s.pending[id], decision.Deltas...)
			s.mu.Unlock()
		}
		return s.flushPending(ctx, id)
	})

	if committed {
		s.logger.Info("group transitioned",
			"group_id", id,
			"from", decision.From,
			"to", decision.To,
			"removed", len(decision.Removals),
			"deltas", len(decision.Deltas),
		)
		s.publish(ctx, id, decision, at)
	}
	return committed, err
}

// flushPending applies the deltas held for a group. Whatever fails stays
// pending for the next visit.
func (s *Scheduler) flushPending(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	deltas := s.pending[id]
	s.mu.Unlock()
	if len(deltas) == 0 {
		return nil
	}

	applied, err := s.ledger.ApplyAll(ctx, deltas)

	s.mu.Lock()
	if applied >= len(deltas) {
		delete(s.pending, id)
	} else {
		s.pending[id] = deltas[applied:]
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("apply trust deltas (%d of %d pending): %w", len(deltas)-applied, len(deltas), err)
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, id uuid.UUID, d group.Decision, at time.Time) {
	ev := events.StatusChanged{GroupID: id, From: d.From, To: d.To, At: at}
	if err := s.publisher.Publish(ctx, s.cfg.Subjects.GroupStatus(id), ev); err != nil {
		s.logger.Warn("publish status change failed", "group_id", id, "error", err)
	}
}

func (s *Scheduler) pendingGroups() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

// Pending returns the number of trust deltas waiting to be applied.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, deltas := range s.pending {
		n += len(deltas)
	}
	return n
}

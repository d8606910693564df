package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/localgroup/pkg/domain"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/group"
	"github.com/tendant/localgroup/pkg/repository/memstore"
	"github.com/tendant/localgroup/pkg/trust"
	"go.uber.org/goleak"
)

var eventAt = time.Date(2026, 6, 3, 19, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// flakyScores fails the first `failures` score updates.
type flakyScores struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyScores) AddTrustScore(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return 0, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.AddTrustScore(ctx, userID, delta)
}

type harness struct {
	store     *memstore.Store
	clock     *clock
	registry  *group.Registry
	scheduler *Scheduler
	events    *events.Recorder
}

// newHarness wires a registry and scheduler over store. groups and scores
// default to store and let tests inject failures.
func newHarness(t *testing.T, store *memstore.Store, groups group.Store, scores trust.Store) *harness {
	t.Helper()
	if store == nil {
		store = memstore.New()
	}
	if groups == nil {
		groups = store
	}
	if scores == nil {
		scores = store
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{now: eventAt.Add(-72 * time.Hour)}
	locks := group.NewLocks()
	rec := &events.Recorder{}

	registry := group.NewRegistry(group.RegistryConfig{Rules: group.DefaultRules(), Now: clk.Now}, groups, store, nil, locks, logger)
	scheduler := NewScheduler(Config{
		Period:      time.Minute,
		Concurrency: 4,
		Rules:       group.DefaultRules(),
		Now:         clk.Now,
	}, groups, trust.NewLedger(scores, logger), locks, rec, logger)

	return &harness{store: store, clock: clk, registry: registry, scheduler: scheduler, events: rec}
}

func (h *harness) create(t *testing.T, maxSize int) (*domain.Group, uuid.UUID) {
	t.Helper()
	creator := uuid.New()
	snap, err := h.registry.CreateGroup(context.Background(), group.CreateGroupInput{
		CreatorID:  creator,
		PlaceID:    uuid.New(),
		DateTime:   eventAt,
		MaxSize:    maxSize,
		Visibility: domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	return snap.Group, creator
}

func (h *harness) tick(t *testing.T) TickResult {
	t.Helper()
	res, err := h.scheduler.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	return res
}

func (h *harness) status(t *testing.T, id uuid.UUID) domain.GroupStatus {
	t.Helper()
	g, err := h.store.GetGroup(context.Background(), id)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	return g.Status
}

func (h *harness) score(t *testing.T, id uuid.UUID) int {
	t.Helper()
	s, _ := h.store.GetTrustScore(context.Background(), id)
	return s
}

func TestScheduler_NoShowExpiresGroup(t *testing.T) {
	// A lone confirmed creator expires and the no-show is penalized once.
	ctx := context.Background()
	h := newHarness(t, nil, nil, nil)
	g, creator := h.create(t, 2)
	user := uuid.New()
	if _, err := h.registry.Join(ctx, user, g.ID); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	h.tick(t)
	if got := h.status(t, g.ID); got != domain.GroupStatusJoinable {
		t.Fatalf("status before window = %s, want JOINABLE", got)
	}

	h.clock.Set(eventAt)
	h.tick(t)
	if got := h.status(t, g.ID); got != domain.GroupStatusConfirmation {
		t.Fatalf("status after first tick = %s, want CONFIRMATION", got)
	}

	res := h.tick(t)
	if res.Transitioned != 1 {
		t.Errorf("Transitioned = %d, want 1", res.Transitioned)
	}
	if got := h.status(t, g.ID); got != domain.GroupStatusExpired {
		t.Errorf("status = %s, want EXPIRED", got)
	}
	if _, err := h.store.GetMember(ctx, g.ID, user); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no-show membership error = %v, want ErrNotFound", err)
	}
	if got := h.score(t, user); got != -2 {
		t.Errorf("no-show score = %d, want -2", got)
	}
	if got := h.score(t, creator); got != 0 {
		t.Errorf("creator score = %d, want 0", got)
	}

	// Further ticks never apply the penalty again.
	h.tick(t)
	if got := h.score(t, user); got != -2 {
		t.Errorf("score after extra tick = %d, want -2", got)
	}
}

func TestScheduler_AttendedGroup(t *testing.T) {
	// Two confirmed members go ACTIVE and are rewarded at expiry.
	ctx := context.Background()
	h := newHarness(t, nil, nil, nil)
	g, creator := h.create(t, 2)
	user := uuid.New()
	if _, err := h.registry.Join(ctx, user, g.ID); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	h.clock.Set(eventAt.Add(-time.Hour))
	h.tick(t)
	if _, err := h.registry.Confirm(ctx, user, g.ID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	h.clock.Set(eventAt)
	h.tick(t)
	if got := h.status(t, g.ID); got != domain.GroupStatusActive {
		t.Fatalf("status at event time = %s, want ACTIVE", got)
	}

	h.clock.Set(eventAt.Add(31 * time.Minute))
	h.tick(t)
	if got := h.status(t, g.ID); got != domain.GroupStatusExpired {
		t.Fatalf("status after buffer = %s, want EXPIRED", got)
	}

	h.tick(t)
	for _, id := range []uuid.UUID{creator, user} {
		if got := h.score(t, id); got != 1 {
			t.Errorf("score(%s) = %d, want 1", id, got)
		}
	}
}

func TestScheduler_PublishesTransitions(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	g, _ := h.create(t, 3)

	h.clock.Set(eventAt.Add(-time.Hour))
	h.tick(t)

	msgs := h.events.Messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d events, want 1", len(msgs))
	}
	want := events.NewSubjects("").GroupStatus(g.ID)
	if msgs[0].Subject != want {
		t.Errorf("subject = %q, want %q", msgs[0].Subject, want)
	}
}

func TestScheduler_RetriesPendingDeltas(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	scores := &flakyScores{Store: store, failures: 1}
	h := newHarness(t, store, nil, scores)

	g, _ := h.create(t, 3)
	user := uuid.New()
	if _, err := h.registry.Join(ctx, user, g.ID); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	h.clock.Set(eventAt)
	h.tick(t)

	res := h.tick(t)
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if got := h.status(t, g.ID); got != domain.GroupStatusExpired {
		t.Fatalf("status = %s, want EXPIRED even though the ledger failed", got)
	}
	if h.scheduler.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.scheduler.Pending())
	}
	if got := h.score(t, user); got != 0 {
		t.Errorf("score before retry = %d, want 0", got)
	}

	// The group is no longer live but its pending delta is still retried.
	res = h.tick(t)
	if res.Failed != 0 {
		t.Errorf("Failed on retry = %d, want 0", res.Failed)
	}
	if h.scheduler.Pending() != 0 {
		t.Errorf("Pending() after retry = %d, want 0", h.scheduler.Pending())
	}
	if got := h.score(t, user); got != -2 {
		t.Errorf("score after retry = %d, want -2", got)
	}

	h.tick(t)
	if got := h.score(t, user); got != -2 {
		t.Errorf("score after extra tick = %d, want -2", got)
	}
}

// brokenGroupStore refuses to commit transitions for one group.
type brokenGroupStore struct {
	*memstore.Store
	broken uuid.UUID
}

func (b *brokenGroupStore) TransitionGroup(ctx context.Context, id uuid.UUID, from, to domain.GroupStatus, removals []uuid.UUID) error {
	if id == b.broken {
		return errors.New("deadlock detected")
	}
	return b.Store.TransitionGroup(ctx, id, from, to, removals)
}

func TestScheduler_IsolatesGroupFailures(t *testing.T) {
	store := memstore.New()
	broken := &brokenGroupStore{Store: store}
	h := newHarness(t, store, broken, nil)

	bad, _ := h.create(t, 3)
	good, _ := h.create(t, 3)
	broken.broken = bad.ID

	h.clock.Set(eventAt.Add(-time.Hour))
	res := h.tick(t)

	if res.Visited != 2 || res.Failed != 1 || res.Transitioned != 1 {
		t.Errorf("TickResult = %+v, want 2 visited, 1 failed, 1 transitioned", res)
	}
	if got := h.status(t, good.ID); got != domain.GroupStatusConfirmation {
		t.Errorf("healthy group status = %s, want CONFIRMATION", got)
	}
	if got := h.status(t, bad.ID); got != domain.GroupStatusJoinable {
		t.Errorf("failing group status = %s, want JOINABLE", got)
	}

	broken.broken = uuid.Nil
	h.tick(t)
	if got := h.status(t, bad.ID); got != domain.GroupStatusConfirmation {
		t.Errorf("failing group status after recovery = %s, want CONFIRMATION", got)
	}
}

// slowStore blocks ListLiveGroups until released.
type slowStore struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) ListLiveGroups(ctx context.Context) ([]*domain.Group, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.Store.ListLiveGroups(ctx)
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memstore.New()
	slow := &slowStore{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, store, slow, nil)

	done := make(chan TickResult)
	go func() {
		res, _ := h.scheduler.Tick(context.Background())
		done <- res
	}()
	<-slow.entered

	res := h.tick(t)
	if !res.Skipped {
		t.Error("second Tick() should be skipped while the first is running")
	}

	close(slow.release)
	if first := <-done; first.Skipped {
		t.Error("first Tick() should not be skipped")
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, nil, nil, nil)
	h.scheduler.cfg.Period = 5 * time.Millisecond
	h.scheduler.cfg.Timeout = 4 * time.Millisecond
	g, _ := h.create(t, 3)
	h.clock.Set(eventAt.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.scheduler.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for h.status(t, g.ID) != domain.GroupStatusConfirmation {
		select {
		case <-deadline:
			t.Fatal("Run() never advanced the group")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(Config{Period: 10 * time.Second, Timeout: time.Minute}, memstore.New(), nil, nil, nil, nil)

	if s.cfg.Timeout >= s.cfg.Period {
		t.Errorf("Timeout = %v, want below Period %v", s.cfg.Timeout, s.cfg.Period)
	}
	if s.cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", s.cfg.Concurrency, DefaultConcurrency)
	}
}

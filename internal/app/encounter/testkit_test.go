package encounter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"combatd/internal/adapter/repo/memory"
	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

type stubStats map[string]combat.Stats

func (s stubStats) GetCombatStats(_ context.Context, ref string) (combat.Stats, error) {
	st, ok := s[ref]
	if !ok {
		return combat.Stats{}, ports.ErrNotFound
	}
	return st, nil
}

// gatedStats parks lookups of ref once armed, until release is closed.
type gatedStats struct {
	stubStats
	ref     string
	armed   atomic.Bool
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStats(ref string) *gatedStats {
	return &gatedStats{
		stubStats: defaultStats(),
		ref:       ref,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedStats) GetCombatStats(ctx context.Context, ref string) (combat.Stats, error) {
	if g.armed.Load() && ref == g.ref {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.stubStats.GetCombatStats(ctx, ref)
}

type fixedStrategy struct {
	damage int
	heal   int
}

func (f fixedStrategy) Strike(_ *rand.Rand, _, _ combat.Stats, powerPct int, _ bool) combat.Hit {
	return combat.Hit{Landed: true, Amount: f.damage * powerPct / 100}
}

func (f fixedStrategy) Heal(_ *rand.Rand, _ combat.Stats) int {
	return f.heal
}

type stubActionMetrics struct {
	mu       sync.Mutex
	success  map[combat.ActionType]int
	rejected map[string]int
	conflict int
	failure  int
}

func newStubActionMetrics() *stubActionMetrics {
	return &stubActionMetrics{success: map[combat.ActionType]int{}, rejected: map[string]int{}}
}

func (m *stubActionMetrics) RecordSuccess(actionType combat.ActionType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success[actionType]++
}

func (m *stubActionMetrics) RecordRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *stubActionMetrics) RecordConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflict++
}

func (m *stubActionMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure++
}

type stubSessionMetrics struct {
	started int
	ended   map[combat.Outcome]int
}

func (m *stubSessionMetrics) RecordStarted() {
	m.started++
}

func (m *stubSessionMetrics) RecordEnded(outcome combat.Outcome) {
	if m.ended == nil {
		m.ended = map[combat.Outcome]int{}
	}
	m.ended[outcome]++
}

type stubRewards struct {
	published []ports.CombatResolved
}

func (r *stubRewards) PublishCombatResolved(_ context.Context, event ports.CombatResolved) error {
	r.published = append(r.published, event)
	return nil
}

// flakyEventRepo fails every Append after the first n calls.
type flakyEventRepo struct {
	ports.EventRepository
	okCalls int
	calls   int
}

var errStorageDown = errors.New("storage down")

func (r *flakyEventRepo) Append(ctx context.Context, sessionID string, events []combat.Event) ([]combat.Event, error) {
	r.calls++
	if r.calls > r.okCalls {
		return nil, errStorageDown
	}
	return r.EventRepository.Append(ctx, sessionID, events)
}

type conflictOnSaveSessionRepo struct {
	ports.SessionRepository
}

func (r conflictOnSaveSessionRepo) SaveWithVersion(_ context.Context, _ combat.Session, _ int64) error {
	return ports.ErrConflict
}

// attackFirstPolicy attacks the first living opponent in roster order.
type attackFirstPolicy struct {
	calls int
}

func (p *attackFirstPolicy) SelectAction(_ context.Context, snap combat.Snapshot, participantID string) (combat.Action, error) {
	p.calls++
	actor, _ := snap.Participant(participantID)
	for _, other := range snap.Participants {
		if other.Alive && other.Type.Allied() != actor.Type.Allied() {
			return combat.Action{Type: combat.ActionAttack, TargetIDs: []string{other.ID}}, nil
		}
	}
	return combat.Action{Type: combat.ActionWait}, nil
}

type badTargetPolicy struct{}

func (badTargetPolicy) SelectAction(_ context.Context, _ combat.Snapshot, _ string) (combat.Action, error) {
	return combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"ghost"}}, nil
}

type failingPolicy struct{}

func (failingPolicy) SelectAction(_ context.Context, _ combat.Snapshot, _ string) (combat.Action, error) {
	return combat.Action{}, errors.New("script crashed")
}

type testEnv struct {
	uc       UseCase
	store    *memory.Store
	sessions memory.SessionRepo
	logs     memory.CombatLogRepo
	events   memory.EventRepo
	metrics  *stubActionMetrics
	sessionM *stubSessionMetrics
	rewards  *stubRewards
}

func defaultStats() stubStats {
	return stubStats{
		"c1":    {Attack: 20, Defense: 10, Health: 100, Speed: 10},
		"c2":    {Attack: 20, Defense: 10, Health: 100, Speed: 10},
		"rat":   {Attack: 6, Defense: 2, Health: 30, Speed: 5},
		"wolf":  {Attack: 10, Defense: 4, Health: 45, Speed: 14},
		"golem": {Attack: 4, Defense: 20, Health: 1000, Speed: 1},
		"medic": {Attack: 8, Defense: 4, Health: 50, Speed: 12},
	}
}

func newTestEnv(t *testing.T, strategy combat.Strategy) *testEnv {
	t.Helper()
	store := memory.NewStore()
	rules := combat.DefaultRules()
	rules.InitiativeDie = 0
	env := &testEnv{
		store:    store,
		sessions: memory.NewSessionRepo(store),
		logs:     memory.NewCombatLogRepo(store),
		events:   memory.NewEventRepo(store),
		metrics:  newStubActionMetrics(),
		sessionM: &stubSessionMetrics{},
		rewards:  &stubRewards{},
	}
	var seq atomic.Int64
	env.uc = UseCase{
		TxManager:      memory.NewTxManager(store),
		Sessions:       env.sessions,
		Log:            env.logs,
		Events:         env.events,
		Stats:          defaultStats(),
		Rewards:        env.rewards,
		Metrics:        env.metrics,
		SessionMetrics: env.sessionM,
		Rules:          rules,
		Strategy:       strategy,
		Locks:          NewKeyedLocks(),
		Now:            func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			return fmt.Sprintf("session-%d", seq.Add(1))
		},
		NewSeed: func() int64 { return 7 },
	}
	return env
}

func seed(v int64) *int64 {
	return &v
}

func eventTypes(events []combat.Event) []combat.EventType {
	out := make([]combat.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

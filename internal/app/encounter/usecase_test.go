package encounter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRat(t *testing.T, env *testEnv) StartResponse {
	t.Helper()
	resp, err := env.uc.Start(context.Background(), StartRequest{
		CharacterID: "c1",
		Opponents:   []OpponentSpec{{Ref: "rat"}},
		Seed:        seed(11),
	})
	require.NoError(t, err)
	return resp
}

func TestStart_SeedsRosterAndEmitsSessionStarted(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := startRat(t, env)

	snap := resp.Snapshot
	assert.Equal(t, combat.StatusActive, snap.Status)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, "player-c1", snap.CurrentActorID)
	assert.Equal(t, []string{"player-c1", "enemy-1"}, snap.TurnOrder)
	require.Len(t, snap.Participants, 2)
	assert.Equal(t, 10, snap.Participants[0].Initiative)
	assert.Equal(t, 5, snap.Participants[1].Initiative)
	assert.Equal(t, 30, snap.Participants[1].MaxHealth)
	assert.Equal(t, "rat", snap.Participants[1].Name)

	require.Len(t, resp.Events, 1)
	assert.Equal(t, int64(1), resp.Events[0].ID)
	assert.Equal(t, combat.EventSessionStarted, resp.Events[0].Type)
	assert.Equal(t, 1, env.sessionM.started)
}

func TestStart_InitiativeRollIsSeededAndBounded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Rules.InitiativeDie = 10
	req := func(character string) StartRequest {
		return StartRequest{
			CharacterID: character,
			Opponents:   []OpponentSpec{{Ref: "wolf"}, {Ref: "rat"}, {Ref: "medic", Type: combat.ParticipantNPC}},
			Seed:        seed(99),
		}
	}
	a, err := env.uc.Start(context.Background(), req("c1"))
	require.NoError(t, err)
	b, err := env.uc.Start(context.Background(), req("c2"))
	require.NoError(t, err)

	speeds := map[string]int{"enemy-1": 14, "enemy-2": 5, "npc-1": 12}
	for i, p := range a.Snapshot.Participants {
		assert.Equal(t, p.Initiative, b.Snapshot.Participants[i].Initiative, p.ID)
		if speed, ok := speeds[p.ID]; ok {
			assert.GreaterOrEqual(t, p.Initiative, speed)
			assert.LessOrEqual(t, p.Initiative, speed+10)
		}
	}
	for i, id := range a.Snapshot.TurnOrder {
		if id == "player-c1" {
			assert.Equal(t, "player-c2", b.Snapshot.TurnOrder[i])
			continue
		}
		assert.Equal(t, id, b.Snapshot.TurnOrder[i])
	}
}

func TestStart_RejectsSecondActiveSession(t *testing.T) {
	env := newTestEnv(t, nil)
	first := startRat(t, env)

	_, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "wolf"}}})
	require.ErrorIs(t, err, ErrCombatAlreadyActive)
	var already *CombatAlreadyActiveError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, first.SessionID, already.SessionID)
	assert.Equal(t, 1, env.metrics.rejected["combat_already_active"])

	active, err := env.sessions.GetActiveByCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, active.ID)
	_, err = env.sessions.Get(context.Background(), "session-2")
	assert.Error(t, err)
}

func TestStart_ConcurrentStartsCreateOneSession(t *testing.T) {
	env := newTestEnv(t, nil)
	const attempts = 12

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "rat"}}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, already := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCombatAlreadyActive):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, already)
}

func TestStart_ValidatesRequest(t *testing.T) {
	tests := []struct {
		name string
		req  StartRequest
	}{
		{name: "missing character", req: StartRequest{Opponents: []OpponentSpec{{Ref: "rat"}}}},
		{name: "no opponents", req: StartRequest{CharacterID: "c1"}},
		{name: "player opponent", req: StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "rat", Type: combat.ParticipantPlayer}}}},
		{name: "allies only", req: StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "medic", Type: combat.ParticipantNPC}}}},
		{name: "unknown ref", req: StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "dragon"}}}},
		{name: "unknown character", req: StartRequest{CharacterID: "c404", Opponents: []OpponentSpec{{Ref: "rat"}}}},
		{name: "too many", req: StartRequest{CharacterID: "c1", Opponents: make([]OpponentSpec, 12)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			_, err := env.uc.Start(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestSubmitAction_VictoryEndsSessionOnce(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 40})
	start := startRat(t, env)

	res, err := env.uc.SubmitAction(context.Background(), ActionRequest{
		SessionID: start.SessionID,
		ActorID:   "player-c1",
		Action:    combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Round)
	assert.Equal(t, 1, res.ActionOrder)
	assert.Equal(t, combat.StatusEnded, res.Snapshot.Status)
	assert.Equal(t, combat.OutcomeVictory, res.Snapshot.Outcome)
	assert.Empty(t, res.Snapshot.CurrentActorID)
	enemy, _ := res.Snapshot.Participant("enemy-1")
	assert.Equal(t, 0, enemy.Health)
	assert.False(t, enemy.Alive)

	all, err := env.events.ListSince(context.Background(), start.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []combat.EventType{
		combat.EventSessionStarted,
		combat.EventDamageDealt,
		combat.EventParticipantDefeated,
		combat.EventSessionEnded,
	}, eventTypes(all))
	assert.Equal(t, "victory", all[3].Payload["outcome"])
	assert.Equal(t, -30, all[1].Payload["health_delta"])

	stored, err := env.sessions.Get(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndedAt)
	assert.Equal(t, int64(2), stored.Version)

	require.Len(t, env.rewards.published, 1)
	assert.Equal(t, []string{"enemy-1"}, env.rewards.published[0].Defeated)
	assert.Equal(t, []string{"rat"}, env.rewards.published[0].EnemyRefs)
	assert.Equal(t, 1, env.sessionM.ended[combat.OutcomeVictory])

	// the character may start again once the session is terminal
	_, err = env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "rat"}}})
	require.NoError(t, err)
}

func TestSubmitAction_RejectionsCarrySnapshot(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 40})
	start, err := env.uc.Start(context.Background(), StartRequest{
		CharacterID: "c1",
		Opponents:   []OpponentSpec{{Ref: "rat"}, {Ref: "golem"}},
	})
	require.NoError(t, err)
	sid := start.SessionID

	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "enemy-1", Action: combat.Action{Type: combat.ActionWait}})
	require.ErrorIs(t, err, combat.ErrNotActorsTurn)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "player-c1", rejected.Snapshot.CurrentActorID)

	// player kills the rat, the rat is skipped, the golem answers
	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "player-c1", Action: combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}}})
	require.NoError(t, err)
	res, err := env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "enemy-2", Action: combat.Action{Type: combat.ActionWait}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Snapshot.Round)
	assert.Equal(t, "player-c1", res.Snapshot.CurrentActorID)
	assert.Equal(t, []combat.EventType{combat.EventTurnPassed, combat.EventRoundAdvanced, combat.EventTurnAdvanced}, eventTypes(res.Events))

	before, err := env.sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "player-c1", Action: combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}}})
	require.ErrorIs(t, err, combat.ErrTargetAlreadyDefeated)
	assert.ErrorIs(t, err, combat.ErrInvalidTarget)
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, before.Version, rejected.Snapshot.Version)

	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "player-c1", Action: combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"nobody"}}})
	assert.ErrorIs(t, err, combat.ErrInvalidTarget)
	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: sid, ActorID: "player-c1", Action: combat.Action{Type: "dance"}})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)

	after, err := env.sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, env.metrics.rejected["target_already_defeated"])
	assert.Equal(t, 1, env.metrics.rejected["not_actors_turn"])
}

func TestSubmitAction_UnknownSessionAndBadRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: "nope", ActorID: "player-c1", Action: combat.Action{Type: combat.ActionWait}})
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: " ", ActorID: "player-c1", Action: combat.Action{Type: combat.ActionWait}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: "s", ActorID: "player-c1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFlee_FailureConsumesTurn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Rules.FleeMinChance = 0
	env.uc.Rules.FleeMaxChance = 0
	start := startRat(t, env)

	res, err := env.uc.Flee(context.Background(), FleeRequest{SessionID: start.SessionID, ActorID: "player-c1"})
	require.NoError(t, err)
	assert.False(t, res.Escaped)
	assert.Equal(t, 0, res.Chance)
	assert.Equal(t, combat.StatusActive, res.Snapshot.Status)
	assert.Equal(t, "enemy-1", res.Snapshot.CurrentActorID)
	assert.Equal(t, 1, res.Snapshot.Round)
	assert.Equal(t, []combat.EventType{combat.EventFleeFailed, combat.EventTurnAdvanced}, eventTypes(res.Events))

	all, err := env.events.ListSince(context.Background(), start.SessionID, 0, 0)
	require.NoError(t, err)
	assert.NotContains(t, eventTypes(all), combat.EventSessionEnded)

	entries, err := env.logs.ListAll(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, combat.ActionFlee, entries[0].ActionType)
	assert.False(t, entries[0].Effects[0].Success)
}

func TestFlee_SuccessEndsSessionAsFled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Rules.FleeMinChance = 100
	env.uc.Rules.FleeMaxChance = 100
	start := startRat(t, env)

	res, err := env.uc.Flee(context.Background(), FleeRequest{SessionID: start.SessionID, ActorID: "player-c1"})
	require.NoError(t, err)
	assert.True(t, res.Escaped)
	assert.Equal(t, combat.StatusFled, res.Snapshot.Status)
	assert.Equal(t, combat.OutcomeFled, res.Snapshot.Outcome)
	assert.Equal(t, []combat.EventType{combat.EventSessionEnded}, eventTypes(res.Events))
	assert.Empty(t, env.rewards.published)

	_, err = env.uc.Flee(context.Background(), FleeRequest{SessionID: start.SessionID, ActorID: "player-c1"})
	require.ErrorIs(t, err, combat.ErrSessionNotActive)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, combat.StatusFled, rejected.Snapshot.Status)
}

func TestFlee_OnlyPlayersMayFlee(t *testing.T) {
	env := newTestEnv(t, nil)
	start, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "wolf"}}})
	require.NoError(t, err)
	require.Equal(t, "enemy-1", start.Snapshot.CurrentActorID)

	_, err = env.uc.Flee(context.Background(), FleeRequest{SessionID: start.SessionID, ActorID: "enemy-1"})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)
}

func TestSubmitAction_ConcurrentSubmissionsOneWins(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 1})
	start, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "golem"}}})
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.uc.SubmitAction(context.Background(), ActionRequest{
				SessionID: start.SessionID,
				ActorID:   "player-c1",
				Action:    combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, combat.ErrNotActorsTurn)
	}
	assert.Equal(t, 1, ok)

	entries, err := env.logs.ListRound(context.Background(), start.SessionID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ActionOrder)
	assert.Equal(t, 0, env.uc.Locks.size())
}

func TestSubmitAction_ActionOrderIsGapFreePerRound(t *testing.T) {
	env := newTestEnv(t, nil)
	start, err := env.uc.Start(context.Background(), StartRequest{
		CharacterID: "c1",
		Opponents:   []OpponentSpec{{Ref: "golem"}, {Ref: "medic", Type: combat.ParticipantNPC}},
	})
	require.NoError(t, err)

	snap := start.Snapshot
	for i := 0; i < 9; i++ {
		res, err := env.uc.SubmitAction(context.Background(), ActionRequest{
			SessionID: start.SessionID,
			ActorID:   snap.CurrentActorID,
			Action:    combat.Action{Type: combat.ActionWait},
		})
		require.NoError(t, err)
		snap = res.Snapshot
	}
	assert.Equal(t, 4, snap.Round)

	entries, err := env.logs.ListAll(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, entries, 9)
	want := map[int]int{}
	for _, e := range entries {
		want[e.Round]++
		assert.Equal(t, want[e.Round], e.ActionOrder, "round %d", e.Round)
	}
	assert.Equal(t, 9, env.metrics.success[combat.ActionWait])
}

func TestSubmitAction_StorageFailureAppliesNothing(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 5})
	flaky := &flakyEventRepo{EventRepository: env.events, okCalls: 1}
	env.uc.Events = flaky
	start := startRat(t, env)

	_, err := env.uc.SubmitAction(context.Background(), ActionRequest{
		SessionID: start.SessionID,
		ActorID:   "player-c1",
		Action:    combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}},
	})
	require.ErrorIs(t, err, ErrEngineUnavailable)
	assert.ErrorIs(t, err, errStorageDown)
	assert.Equal(t, 1, env.metrics.failure)

	stored, err := env.sessions.Get(context.Background(), start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	enemy, _ := combat.NewSnapshot(stored).Participant("enemy-1")
	assert.Equal(t, 30, enemy.Health)
	entries, err := env.logs.ListAll(context.Background(), start.SessionID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitAction_VersionConflictIsRetryable(t *testing.T) {
	env := newTestEnv(t, nil)
	start := startRat(t, env)
	env.uc.Sessions = conflictOnSaveSessionRepo{SessionRepository: env.sessions}

	_, err := env.uc.SubmitAction(context.Background(), ActionRequest{SessionID: start.SessionID, ActorID: "player-c1", Action: combat.Action{Type: combat.ActionWait}})
	require.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Equal(t, 1, env.metrics.conflict)

	all, err := env.events.ListSince(context.Background(), start.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSubmitAction_SlowStatsLookupDoesNotBlockOtherSessions(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 1})
	slow := newGatedStats("golem")
	env.uc.Stats = slow
	ctx := context.Background()

	a, err := env.uc.Start(ctx, StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "golem"}}})
	require.NoError(t, err)
	b, err := env.uc.Start(ctx, StartRequest{CharacterID: "c2", Opponents: []OpponentSpec{{Ref: "rat"}}})
	require.NoError(t, err)
	slow.armed.Store(true)

	doneA := make(chan error, 1)
	go func() {
		_, err := env.uc.SubmitAction(ctx, ActionRequest{
			SessionID: a.SessionID,
			ActorID:   "player-c1",
			Action:    combat.Action{Type: combat.ActionAttack, TargetIDs: []string{"enemy-1"}},
		})
		doneA <- err
	}()
	<-slow.entered

	doneB := make(chan error, 1)
	go func() {
		if _, err := env.events.ListSince(ctx, b.SessionID, 0, 0); err != nil {
			doneB <- err
			return
		}
		_, err := env.uc.SubmitAction(ctx, ActionRequest{SessionID: b.SessionID, ActorID: "player-c2", Action: combat.Action{Type: combat.ActionWait}})
		doneB <- err
	}()
	select {
	case err := <-doneB:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(slow.release)
		t.Fatal("session c2 waited on session c1's stats lookup")
	}

	// nothing of c1's turn is visible while its lookup is parked
	pending, err := env.events.ListSince(ctx, a.SessionID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	close(slow.release)
	require.NoError(t, <-doneA)
	stored, err := env.sessions.Get(ctx, a.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestDriveNPCTurns_PlaysUntilPlayerIsUp(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{damage: 3})
	policy := &attackFirstPolicy{}
	env.uc.Policy = policy
	start, err := env.uc.Start(context.Background(), StartRequest{
		CharacterID: "c1",
		Opponents:   []OpponentSpec{{Ref: "wolf"}, {Ref: "medic", Type: combat.ParticipantNPC}},
	})
	require.NoError(t, err)
	// wolf 14, medic 12, player 10
	require.Equal(t, []string{"enemy-1", "npc-1", "player-c1"}, start.Snapshot.TurnOrder)

	results, err := env.uc.DriveNPCTurns(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "enemy-1", results[0].ActorID)
	assert.Equal(t, "npc-1", results[1].ActorID)
	assert.Equal(t, "player-c1", results[1].Snapshot.CurrentActorID)
	assert.Equal(t, 2, policy.calls)

	again, err := env.uc.DriveNPCTurns(context.Background(), start.SessionID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDriveNPCTurns_FallsBackToWaitOnRejectedChoice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Policy = badTargetPolicy{}
	start, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "wolf"}}})
	require.NoError(t, err)

	results, err := env.uc.DriveNPCTurns(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, combat.ActionWait, results[0].ActionType)
	assert.Equal(t, "player-c1", results[0].Snapshot.CurrentActorID)
}

func TestDriveNPCTurns_PolicyErrorWaitsInstead(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Policy = failingPolicy{}
	start, err := env.uc.Start(context.Background(), StartRequest{CharacterID: "c1", Opponents: []OpponentSpec{{Ref: "wolf"}}})
	require.NoError(t, err)

	results, err := env.uc.DriveNPCTurns(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, combat.ActionWait, results[0].ActionType)
	assert.Equal(t, combat.StatusActive, results[0].Snapshot.Status)
	assert.Equal(t, "player-c1", results[0].Snapshot.CurrentActorID)
}

func TestDriveNPCTurns_StopsAtBudget(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uc.Policy = &attackFirstPolicy{}
	env.uc.Rules.MaxNPCTurnsPerDrive = 1
	start, err := env.uc.Start(context.Background(), StartRequest{
		CharacterID: "c1",
		Opponents:   []OpponentSpec{{Ref: "wolf"}, {Ref: "medic", Type: combat.ParticipantNPC}},
	})
	require.NoError(t, err)

	results, err := env.uc.DriveNPCTurns(context.Background(), start.SessionID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "npc-1", results[0].Snapshot.CurrentActorID)
}

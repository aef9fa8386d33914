package inmemory

import (
	"testing"

	"combatd/internal/domain/combat"
)

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	r.RecordSuccess(combat.ActionAttack)
	r.RecordSuccess(combat.ActionAttack)
	r.RecordSuccess(combat.ActionFlee)
	r.RecordRejected("not_actors_turn")
	r.RecordConflict()
	r.RecordFailure()
	r.RecordStarted()
	r.RecordEnded(combat.OutcomeVictory)

	s := r.Snapshot()
	if s.ActionTotal != 6 {
		t.Fatalf("expected total 6, got %d", s.ActionTotal)
	}
	if s.ActionSuccess != 3 || s.ActionRejected != 1 {
		t.Fatalf("expected success 3 / rejected 1, got %d / %d", s.ActionSuccess, s.ActionRejected)
	}
	if s.ActionConflict != 1 || s.ActionFailure != 1 {
		t.Fatalf("expected conflict 1 / failure 1, got %d / %d", s.ActionConflict, s.ActionFailure)
	}
	if s.ByActionType[string(combat.ActionAttack)] != 2 {
		t.Fatalf("expected attack count 2")
	}
	if s.ByRejectReason["not_actors_turn"] != 1 {
		t.Fatalf("expected not_actors_turn count 1")
	}
	if s.SessionsStarted != 1 || s.SessionsByOutcome[string(combat.OutcomeVictory)] != 1 {
		t.Fatalf("unexpected session counters: %+v", s)
	}
}

func TestRecorderSnapshotIsCopy(t *testing.T) {
	r := NewRecorder()
	r.RecordSuccess(combat.ActionWait)
	s := r.Snapshot()
	s.ByActionType[string(combat.ActionWait)] = 99
	if r.Snapshot().ByActionType[string(combat.ActionWait)] != 1 {
		t.Fatalf("snapshot must not alias recorder state")
	}
}

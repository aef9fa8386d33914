package inmemory

import (
	"sync"

	"combatd/internal/domain/combat"
)

type Snapshot struct {
	ActionTotal       uint64            `json:"action_total"`
	ActionSuccess     uint64            `json:"action_success"`
	ActionRejected    uint64            `json:"action_rejected"`
	ActionConflict    uint64            `json:"action_conflict"`
	ActionFailure     uint64            `json:"action_failure"`
	ByActionType      map[string]uint64 `json:"by_action_type"`
	ByRejectReason    map[string]uint64 `json:"by_reject_reason"`
	SessionsStarted   uint64            `json:"sessions_started"`
	SessionsByOutcome map[string]uint64 `json:"sessions_by_outcome"`
}

type Recorder struct {
	mu        sync.Mutex
	success   uint64
	rejected  uint64
	conflict  uint64
	failure   uint64
	byAction  map[string]uint64
	byReason  map[string]uint64
	started   uint64
	byOutcome map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byAction:  map[string]uint64{},
		byReason:  map[string]uint64{},
		byOutcome: map[string]uint64{},
	}
}

func (r *Recorder) RecordSuccess(actionType combat.ActionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	r.byAction[string(actionType)]++
}

func (r *Recorder) RecordRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
	r.byReason[reason]++
}

func (r *Recorder) RecordConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflict++
}

func (r *Recorder) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *Recorder) RecordStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *Recorder) RecordEnded(outcome combat.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOutcome[string(outcome)]++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		ActionSuccess:     r.success,
		ActionRejected:    r.rejected,
		ActionConflict:    r.conflict,
		ActionFailure:     r.failure,
		ActionTotal:       r.success + r.rejected + r.conflict + r.failure,
		ByActionType:      copyCounts(r.byAction),
		ByRejectReason:    copyCounts(r.byReason),
		SessionsStarted:   r.started,
		SessionsByOutcome: copyCounts(r.byOutcome),
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package ports

import "combatd/internal/domain/combat"

type ActionMetrics interface {
	RecordSuccess(actionType combat.ActionType)
	RecordRejected(reason string)
	RecordConflict()
	RecordFailure()
}

type SessionMetrics interface {
	RecordStarted()
	RecordEnded(outcome combat.Outcome)
}

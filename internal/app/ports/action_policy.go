package ports

import (
	"context"

	"combatd/internal/domain/combat"
)

// ActionPolicy picks the next action for a computer-controlled participant.
type ActionPolicy interface {
	SelectAction(ctx context.Context, snapshot combat.Snapshot, participantID string) (combat.Action, error)
}

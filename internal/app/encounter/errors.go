package encounter

import (
	"errors"
	"fmt"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

var (
	ErrInvalidRequest      = errors.New("invalid combat request")
	ErrCombatAlreadyActive = errors.New("combat already active")
	ErrEngineUnavailable   = errors.New("combat engine unavailable")
)

type CombatAlreadyActiveError struct {
	SessionID string
}

func (e *CombatAlreadyActiveError) Error() string {
	return ErrCombatAlreadyActive.Error()
}

func (e *CombatAlreadyActiveError) Unwrap() error {
	return ErrCombatAlreadyActive
}

// RejectedError carries the session as it stood when the request was refused.
type RejectedError struct {
	Err      error
	Snapshot combat.Snapshot
}

func (e *RejectedError) Error() string {
	return e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func unavailable(err error) error {
	if errors.Is(err, ErrEngineUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// rejectionReason names a domain rejection, or returns "" when err is not one.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, combat.ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, combat.ErrNotActorsTurn):
		return "not_actors_turn"
	case errors.Is(err, combat.ErrTargetAlreadyDefeated):
		return "target_already_defeated"
	case errors.Is(err, combat.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, combat.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, combat.ErrUnknownActor):
		return "unknown_actor"
	default:
		return ""
	}
}

func isStorageConflict(err error) bool {
	return errors.Is(err, ports.ErrConflict)
}

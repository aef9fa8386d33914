package combat

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotActive = errors.New("session not active")
	ErrNotActorsTurn    = errors.New("not actor's turn")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrInvalidAction    = errors.New("invalid action")
	ErrUnknownActor     = errors.New("unknown actor")
)

// ErrTargetAlreadyDefeated is an ErrInvalidTarget, so callers matching the broader kind still see it.
var ErrTargetAlreadyDefeated = fmt.Errorf("%w: target already defeated", ErrInvalidTarget)

type TargetError struct {
	TargetID string
	Err      error
}

func (e *TargetError) Error() string {
	return e.Err.Error() + ": " + e.TargetID
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

func invalidTarget(id string) error {
	return &TargetError{TargetID: id, Err: ErrInvalidTarget}
}

func defeatedTarget(id string) error {
	return &TargetError{TargetID: id, Err: ErrTargetAlreadyDefeated}
}

package replay

import (
	"context"
	"errors"
	"strings"

	"combatd/internal/app/ports"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

var ErrInvalidRequest = errors.New("invalid replay request")

type UseCase struct {
	Events   ports.EventRepository
	Sessions ports.SessionRepository
}

// Execute returns the session's events with id > After in id order. Clients resume from
// NextCursor after a disconnect without gaps or repeats.
func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" || req.After < 0 || req.Limit < 0 {
		return Response{}, ErrInvalidRequest
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if u.Sessions != nil {
		if _, err := u.Sessions.Get(ctx, req.SessionID); err != nil {
			return Response{}, err
		}
	}

	events, err := u.Events.ListSince(ctx, req.SessionID, req.After, limit)
	if err != nil {
		return Response{}, err
	}
	next := req.After
	if len(events) > 0 {
		next = events[len(events)-1].ID
	}
	return Response{Events: events, NextCursor: next}, nil
}

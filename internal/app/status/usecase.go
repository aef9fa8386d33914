package status

import (
	"context"
	"errors"
	"strings"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

var ErrInvalidRequest = errors.New("invalid status request")

type UseCase struct {
	Sessions ports.SessionRepository
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.CharacterID = strings.TrimSpace(req.CharacterID)

	var (
		session combat.Session
		err     error
	)
	switch {
	case req.SessionID != "":
		session, err = u.Sessions.Get(ctx, req.SessionID)
	case req.CharacterID != "":
		session, err = u.Sessions.GetActiveByCharacter(ctx, req.CharacterID)
	default:
		return Response{}, ErrInvalidRequest
	}
	if err != nil {
		return Response{}, err
	}

	out := Response{Snapshot: combat.NewSnapshot(session), CreatedAt: session.CreatedAt.Unix()}
	if session.EndedAt != nil {
		ended := session.EndedAt.Unix()
		out.EndedAt = &ended
	}
	return out, nil
}

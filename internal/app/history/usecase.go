package history

import (
	"context"
	"errors"
	"strings"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

var ErrInvalidRequest = errors.New("invalid history request")

type Request struct {
	SessionID string
	// Round selects one round; zero reads the whole session.
	Round int
}

type Response struct {
	Entries []combat.LogEntry `json:"entries"`
}

type UseCase struct {
	Log      ports.CombatLogRepository
	Sessions ports.SessionRepository
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" || req.Round < 0 {
		return Response{}, ErrInvalidRequest
	}
	if u.Sessions != nil {
		if _, err := u.Sessions.Get(ctx, req.SessionID); err != nil {
			return Response{}, err
		}
	}
	var (
		entries []combat.LogEntry
		err     error
	)
	if req.Round > 0 {
		entries, err = u.Log.ListRound(ctx, req.SessionID, req.Round)
	} else {
		entries, err = u.Log.ListAll(ctx, req.SessionID)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Entries: entries}, nil
}

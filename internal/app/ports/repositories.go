package ports

import (
	"context"

	"combatd/internal/domain/combat"
)

type SessionRepository interface {
	// Create fails with ErrConflict when the character already has an ACTIVE session.
	Create(ctx context.Context, session combat.Session) error
	Get(ctx context.Context, sessionID string) (combat.Session, error)
	GetActiveByCharacter(ctx context.Context, characterID string) (combat.Session, error)
	SaveWithVersion(ctx context.Context, session combat.Session, expectedVersion int64) error
}

type CombatLogRepository interface {
	// Append assigns the next action order of (SessionID, Round) and returns it.
	Append(ctx context.Context, entry combat.LogEntry) (int, error)
	ListRound(ctx context.Context, sessionID string, round int) ([]combat.LogEntry, error)
	ListAll(ctx context.Context, sessionID string) ([]combat.LogEntry, error)
}

type EventRepository interface {
	// Append assigns consecutive ids after the session's last event and returns the stored events.
	Append(ctx context.Context, sessionID string, events []combat.Event) ([]combat.Event, error)
	ListSince(ctx context.Context, sessionID string, afterID int64, limit int) ([]combat.Event, error)
}

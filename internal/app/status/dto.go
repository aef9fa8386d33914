package status

import "combatd/internal/domain/combat"

// Request looks a session up by id, or the character's ACTIVE session when only CharacterID is set.
type Request struct {
	SessionID   string
	CharacterID string
}

type Response struct {
	Snapshot  combat.Snapshot `json:"snapshot"`
	CreatedAt int64           `json:"created_at"`
	EndedAt   *int64          `json:"ended_at,omitempty"`
}

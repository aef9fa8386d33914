package ports

import (
	"context"
	"time"
)

type CombatResolved struct {
	SessionID   string    `json:"session_id"`
	CharacterID string    `json:"character_id"`
	Outcome     string    `json:"outcome"`
	Defeated    []string  `json:"defeated"`
	EnemyRefs   []string  `json:"enemy_refs"`
	Rounds      int       `json:"rounds"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// RewardPublisher hands resolved encounters to the loot and quest collaborators.
type RewardPublisher interface {
	PublishCombatResolved(ctx context.Context, event CombatResolved) error
}

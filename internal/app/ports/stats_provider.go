package ports

import (
	"context"

	"combatd/internal/domain/combat"
)

type StatsProvider interface {
	GetCombatStats(ctx context.Context, ref string) (combat.Stats, error)
}

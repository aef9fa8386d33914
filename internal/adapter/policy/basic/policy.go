// Package basicpolicy picks NPC and enemy actions with fixed, deterministic rules.
package basicpolicy

import (
	"context"
	"fmt"

	"combatd/internal/domain/combat"
)

type Policy struct {
	// HealBelowPct makes the actor heal the weakest living ally (itself included) whose
	// health is under this percentage of max. Zero disables healing.
	HealBelowPct int
}

func (p Policy) SelectAction(_ context.Context, snap combat.Snapshot, participantID string) (combat.Action, error) {
	actor, ok := snap.Participant(participantID)
	if !ok || !actor.Alive {
		return combat.Action{}, fmt.Errorf("%w: %s", combat.ErrUnknownActor, participantID)
	}

	if p.HealBelowPct > 0 {
		if ally, ok := weakest(snap, func(c combat.Participant) bool {
			return c.Type.Allied() == actor.Type.Allied() && c.Health*100 < c.MaxHealth*p.HealBelowPct
		}); ok {
			return combat.Action{Type: combat.ActionHeal, TargetIDs: []string{ally.ID}}, nil
		}
	}

	target, ok := weakest(snap, func(c combat.Participant) bool {
		return c.Type.Allied() != actor.Type.Allied()
	})
	if !ok {
		return combat.Action{Type: combat.ActionWait}, nil
	}
	return combat.Action{Type: combat.ActionAttack, TargetIDs: []string{target.ID}}, nil
}

// weakest returns the living match with the lowest health; ties go to the lower order index.
func weakest(snap combat.Snapshot, match func(combat.Participant) bool) (combat.Participant, bool) {
	var (
		best  combat.Participant
		found bool
	)
	for _, c := range snap.Participants {
		if !c.Alive || !match(c) {
			continue
		}
		if !found || c.Health < best.Health || (c.Health == best.Health && c.OrderIndex < best.OrderIndex) {
			best, found = c, true
		}
	}
	return best, found
}

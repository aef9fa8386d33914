package encounter

import (
	"time"

	"combatd/internal/domain/combat"
)

func newEvent(sessionID string, typ combat.EventType, at time.Time, payload map[string]any) combat.Event {
	return combat.Event{SessionID: sessionID, Type: typ, Payload: payload, OccurredAt: at}
}

func sessionStartedPayload(snap combat.Snapshot) map[string]any {
	participants := make([]map[string]any, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		participants = append(participants, map[string]any{
			"participant_id":   p.ID,
			"participant_type": string(p.Type),
			"name":             p.Name,
			"initiative":       p.Initiative,
			"health":           p.Health,
			"max_health":       p.MaxHealth,
			"order_index":      p.OrderIndex,
		})
	}
	return map[string]any{
		"character_id":     snap.CharacterID,
		"round":            snap.Round,
		"current_actor_id": snap.CurrentActorID,
		"turn_order":       snap.TurnOrder,
		"participants":     participants,
	}
}

// effectEvents describes one applied effect, at least one event each except a successful
// flee, which the session_ended event reports.
func effectEvents(tc *TurnContext, a combat.Applied) []combat.Event {
	e := a.Effect
	base := map[string]any{
		"round":     tc.Before.Cursor.Round,
		"actor_id":  tc.Actor.ID,
		"target_id": e.TargetID,
	}
	switch e.Kind {
	case combat.EffectDamage:
		base["amount"] = e.Amount
		base["health_delta"] = a.Delta
		base["health"] = a.HealthAt
		base["critical"] = e.Critical
		out := []combat.Event{tc.event(combat.EventDamageDealt, base)}
		if a.Defeated {
			out = append(out, tc.event(combat.EventParticipantDefeated, map[string]any{
				"round":          tc.Before.Cursor.Round,
				"participant_id": e.TargetID,
				"defeated_by":    tc.Actor.ID,
			}))
		}
		return out
	case combat.EffectMiss:
		return []combat.Event{tc.event(combat.EventAttackMissed, base)}
	case combat.EffectHeal:
		base["amount"] = e.Amount
		base["health_delta"] = a.Delta
		base["health"] = a.HealthAt
		return []combat.Event{tc.event(combat.EventHealed, base)}
	case combat.EffectStatus:
		base["status"] = e.Status
		return []combat.Event{tc.event(combat.EventStatusApplied, base)}
	case combat.EffectNone:
		return []combat.Event{tc.event(combat.EventTurnPassed, base)}
	case combat.EffectFlee:
		if e.Success {
			return nil
		}
		base["chance"] = tc.Escape.Chance
		base["roll"] = tc.Escape.Roll
		base["opponent_id"] = tc.Escape.OpponentID
		return []combat.Event{tc.event(combat.EventFleeFailed, base)}
	default:
		return nil
	}
}

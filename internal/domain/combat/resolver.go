package combat

import "math/rand"

// Resolver turns an actor's action into effects. It reads the roster but never mutates it;
// callers apply the returned effects with Apply.
type Resolver struct {
	Rules    Rules
	Strategy Strategy
}

func NewResolver(rules Rules) Resolver {
	return Resolver{Rules: rules, Strategy: StandardStrategy{Rules: rules}}
}

// Resolve validates the action for actorID and computes its effects. stats must hold an
// entry for the actor and every affected target.
func (r Resolver) Resolve(rng *rand.Rand, roster *Roster, actorID string, action Action, stats map[string]Stats) ([]Effect, error) {
	actor, ok := roster.Get(actorID)
	if !ok || !actor.Alive {
		return nil, ErrUnknownActor
	}
	targets, err := r.Targets(roster, actor, action)
	if err != nil {
		return nil, err
	}
	strategy := r.Strategy
	if strategy == nil {
		strategy = StandardStrategy{Rules: r.Rules}
	}

	switch action.Type {
	case ActionAttack, ActionBurst:
		power := 100
		if action.Type == ActionBurst {
			power = r.Rules.BurstDamagePct
		}
		effects := make([]Effect, 0, len(targets))
		for _, t := range targets {
			hit := strategy.Strike(rng, stats[actor.ID], stats[t.ID], power, t.HasStatus(StatusGuarded))
			if !hit.Landed {
				effects = append(effects, Effect{Kind: EffectMiss, TargetID: t.ID})
				continue
			}
			effects = append(effects, Effect{Kind: EffectDamage, TargetID: t.ID, Amount: hit.Amount, Critical: hit.Critical})
		}
		return effects, nil
	case ActionHeal:
		amount := strategy.Heal(rng, stats[actor.ID])
		return []Effect{{Kind: EffectHeal, TargetID: targets[0].ID, Amount: amount}}, nil
	case ActionDefend:
		return []Effect{{Kind: EffectStatus, TargetID: actor.ID, Status: StatusGuarded}}, nil
	case ActionWait:
		return []Effect{{Kind: EffectNone, TargetID: actor.ID}}, nil
	default:
		return nil, ErrInvalidAction
	}
}

// Targets resolves and validates the participants an action touches.
func (r Resolver) Targets(roster *Roster, actor Participant, action Action) ([]Participant, error) {
	switch action.Type {
	case ActionAttack, ActionHeal:
		if len(action.TargetIDs) != 1 {
			return nil, ErrInvalidAction
		}
		t, err := lookupTarget(roster, action.TargetIDs[0])
		if err != nil {
			return nil, err
		}
		friendly := t.Type.Allied() == actor.Type.Allied()
		if action.Type == ActionAttack && (friendly || t.ID == actor.ID) {
			return nil, invalidTarget(t.ID)
		}
		if action.Type == ActionHeal && !friendly {
			return nil, invalidTarget(t.ID)
		}
		return []Participant{t}, nil
	case ActionBurst:
		if len(action.TargetIDs) == 0 {
			out := []Participant{}
			for _, p := range roster.List() {
				if p.Alive && p.Type.Allied() != actor.Type.Allied() {
					out = append(out, p)
				}
			}
			if len(out) == 0 {
				return nil, ErrInvalidTarget
			}
			return out, nil
		}
		out := make([]Participant, 0, len(action.TargetIDs))
		seen := map[string]bool{}
		for _, id := range action.TargetIDs {
			if seen[id] {
				return nil, invalidTarget(id)
			}
			seen[id] = true
			t, err := lookupTarget(roster, id)
			if err != nil {
				return nil, err
			}
			if t.Type.Allied() == actor.Type.Allied() {
				return nil, invalidTarget(id)
			}
			out = append(out, t)
		}
		return out, nil
	case ActionDefend, ActionWait:
		if len(action.TargetIDs) != 0 {
			return nil, ErrInvalidAction
		}
		return nil, nil
	default:
		return nil, ErrInvalidAction
	}
}

func lookupTarget(roster *Roster, id string) (Participant, error) {
	t, ok := roster.Get(id)
	if !ok {
		return Participant{}, invalidTarget(id)
	}
	if !t.Alive {
		return Participant{}, defeatedTarget(id)
	}
	return t, nil
}

// Applied describes what an effect did to the roster.
type Applied struct {
	Effect   Effect
	Delta    int
	HealthAt int
	Defeated bool
}

// Apply mutates the roster with the effects, in order.
func Apply(roster *Roster, effects []Effect) ([]Applied, error) {
	out := make([]Applied, 0, len(effects))
	for _, e := range effects {
		a := Applied{Effect: e}
		switch e.Kind {
		case EffectDamage, EffectHeal:
			before, _ := roster.Get(e.TargetID)
			amount := e.Amount
			if e.Kind == EffectHeal {
				amount = -amount
			}
			delta, err := roster.ApplyDamage(e.TargetID, amount)
			if err != nil {
				return nil, err
			}
			after, _ := roster.Get(e.TargetID)
			a.Delta = delta
			a.HealthAt = after.Health
			a.Defeated = before.Alive && !after.Alive
			if e.Kind == EffectDamage {
				roster.ClearStatus(e.TargetID, StatusGuarded)
			}
		case EffectStatus:
			if err := roster.AddStatus(e.TargetID, e.Status); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// Resolution reports how the roster resolves the encounter, or OutcomeNone while both sides stand.
func Resolution(roster *Roster) Outcome {
	if roster.CountAlive(ParticipantEnemy) == 0 {
		return OutcomeVictory
	}
	if roster.CountAlive(ParticipantPlayer, ParticipantNPC) == 0 {
		return OutcomeDefeat
	}
	return OutcomeNone
}

package combat

import "math/rand"

type EscapeCheck struct {
	Chance      int
	Roll        int
	Escaped     bool
	OpponentID  string
	OpponentIni int
}

// FastestEnemy returns the living enemy with the highest initiative, ties by OrderIndex.
func FastestEnemy(roster *Roster) (Participant, bool) {
	for _, p := range roster.TurnOrder() {
		if p.Alive && p.Type == ParticipantEnemy {
			return p, true
		}
	}
	return Participant{}, false
}

// CheckEscape rolls d100 against the flee chance derived from the initiative gap between the
// actor and the fastest living enemy.
func (r Rules) CheckEscape(rng *rand.Rand, actor Participant, roster *Roster) EscapeCheck {
	enemy, ok := FastestEnemy(roster)
	if !ok {
		return EscapeCheck{Chance: 100, Escaped: true}
	}
	chance := r.FleeBaseChance + (actor.Initiative-enemy.Initiative)*r.FleePerInitiative
	chance = clamp(chance, r.FleeMinChance, r.FleeMaxChance)
	roll := rng.Intn(100)
	return EscapeCheck{
		Chance:      chance,
		Roll:        roll,
		Escaped:     roll < chance,
		OpponentID:  enemy.ID,
		OpponentIni: enemy.Initiative,
	}
}

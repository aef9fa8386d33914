package combat

import "math/rand"

type Hit struct {
	Landed   bool
	Amount   int
	Critical bool
}

// Strategy decides hit/miss, crits and amounts. Implementations must draw randomness only
// from the provided rng.
type Strategy interface {
	Strike(rng *rand.Rand, attacker, defender Stats, powerPct int, guarded bool) Hit
	Heal(rng *rand.Rand, healer Stats) int
}

type StandardStrategy struct {
	Rules Rules
}

func (s StandardStrategy) Strike(rng *rand.Rand, attacker, defender Stats, powerPct int, guarded bool) Hit {
	chance := clamp(s.Rules.BaseHitChance+attacker.Attack-defender.Defense, s.Rules.MinHitChance, s.Rules.MaxHitChance)
	if rng.Intn(100) >= chance {
		return Hit{}
	}
	amount := attacker.Attack + attacker.WeaponDamage + attacker.ImplantBonus - defender.Defense/2
	if powerPct > 0 && powerPct != 100 {
		amount = amount * powerPct / 100
	}
	critical := attacker.CritChance > 0 && rng.Intn(100) < attacker.CritChance
	if critical {
		amount = amount * s.Rules.CritMultiplierPct / 100
	}
	if guarded {
		amount = amount * (100 - s.Rules.GuardReductionPct) / 100
	}
	if amount < 1 {
		amount = 1
	}
	return Hit{Landed: true, Amount: amount, Critical: critical}
}

func (s StandardStrategy) Heal(_ *rand.Rand, healer Stats) int {
	amount := (healer.Attack + healer.ImplantBonus) * s.Rules.HealPowerPct / 100
	if amount < 1 {
		amount = 1
	}
	return amount
}

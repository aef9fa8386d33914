package combat

import "math/rand"

// Rules holds the tunable numbers of the engine. Percentages are whole numbers.
type Rules struct {
	InitiativeDie       int `json:"initiative_die" mapstructure:"initiative_die"`
	BaseHitChance       int `json:"base_hit_chance" mapstructure:"base_hit_chance"`
	MinHitChance        int `json:"min_hit_chance" mapstructure:"min_hit_chance"`
	MaxHitChance        int `json:"max_hit_chance" mapstructure:"max_hit_chance"`
	CritMultiplierPct   int `json:"crit_multiplier_pct" mapstructure:"crit_multiplier_pct"`
	GuardReductionPct   int `json:"guard_reduction_pct" mapstructure:"guard_reduction_pct"`
	BurstDamagePct      int `json:"burst_damage_pct" mapstructure:"burst_damage_pct"`
	HealPowerPct        int `json:"heal_power_pct" mapstructure:"heal_power_pct"`
	FleeBaseChance      int `json:"flee_base_chance" mapstructure:"flee_base_chance"`
	FleePerInitiative   int `json:"flee_per_initiative" mapstructure:"flee_per_initiative"`
	FleeMinChance       int `json:"flee_min_chance" mapstructure:"flee_min_chance"`
	FleeMaxChance       int `json:"flee_max_chance" mapstructure:"flee_max_chance"`
	MaxParticipants     int `json:"max_participants" mapstructure:"max_participants"`
	MaxNPCTurnsPerDrive int `json:"max_npc_turns_per_drive" mapstructure:"max_npc_turns_per_drive"`
}

func DefaultRules() Rules {
	return Rules{
		InitiativeDie:       10,
		BaseHitChance:       80,
		MinHitChance:        5,
		MaxHitChance:        95,
		CritMultiplierPct:   150,
		GuardReductionPct:   50,
		BurstDamagePct:      60,
		HealPowerPct:        50,
		FleeBaseChance:      50,
		FleePerInitiative:   5,
		FleeMinChance:       10,
		FleeMaxChance:       90,
		MaxParticipants:     12,
		MaxNPCTurnsPerDrive: 32,
	}
}

// RollInitiative draws from [speed, speed+InitiativeDie].
func (r Rules) RollInitiative(rng *rand.Rand, s Stats) int {
	if r.InitiativeDie <= 0 {
		return s.Speed
	}
	return s.Speed + rng.Intn(r.InitiativeDie+1)
}

// NewRand derives the RNG of one mutation from the session seed and the version being
// written, so a resolution can be reproduced from stored data alone.
func NewRand(seed, version int64) *rand.Rand {
	mixed := uint64(seed) ^ (uint64(version)+1)*0x9E3779B97F4A7C15
	mixed ^= mixed >> 31
	return rand.New(rand.NewSource(int64(mixed)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

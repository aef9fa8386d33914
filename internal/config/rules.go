package config

import (
	"fmt"

	"github.com/spf13/viper"

	"combatd/internal/domain/combat"
)

// LoadRules returns the combat rules, starting from the built-in defaults and applying an
// optional YAML/JSON/TOML file and COMBATD_RULES_* environment overrides.
func LoadRules(path string) (combat.Rules, error) {
	v := viper.New()
	d := combat.DefaultRules()
	v.SetDefault("initiative_die", d.InitiativeDie)
	v.SetDefault("base_hit_chance", d.BaseHitChance)
	v.SetDefault("min_hit_chance", d.MinHitChance)
	v.SetDefault("max_hit_chance", d.MaxHitChance)
	v.SetDefault("crit_multiplier_pct", d.CritMultiplierPct)
	v.SetDefault("guard_reduction_pct", d.GuardReductionPct)
	v.SetDefault("burst_damage_pct", d.BurstDamagePct)
	v.SetDefault("heal_power_pct", d.HealPowerPct)
	v.SetDefault("flee_base_chance", d.FleeBaseChance)
	v.SetDefault("flee_per_initiative", d.FleePerInitiative)
	v.SetDefault("flee_min_chance", d.FleeMinChance)
	v.SetDefault("flee_max_chance", d.FleeMaxChance)
	v.SetDefault("max_participants", d.MaxParticipants)
	v.SetDefault("max_npc_turns_per_drive", d.MaxNPCTurnsPerDrive)

	v.SetEnvPrefix("COMBATD_RULES")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return combat.Rules{}, fmt.Errorf("error reading rules file: %w", err)
		}
	}

	var rules combat.Rules
	if err := v.Unmarshal(&rules); err != nil {
		return combat.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := validateRules(rules); err != nil {
		return combat.Rules{}, err
	}
	return rules, nil
}

func validateRules(r combat.Rules) error {
	pcts := map[string]int{
		"base_hit_chance":     r.BaseHitChance,
		"min_hit_chance":      r.MinHitChance,
		"max_hit_chance":      r.MaxHitChance,
		"guard_reduction_pct": r.GuardReductionPct,
		"flee_min_chance":     r.FleeMinChance,
		"flee_max_chance":     r.FleeMaxChance,
	}
	for name, v := range pcts {
		if v < 0 || v > 100 {
			return fmt.Errorf("rule %s must be within 0..100, got %d", name, v)
		}
	}
	if r.MinHitChance > r.MaxHitChance {
		return fmt.Errorf("min_hit_chance %d exceeds max_hit_chance %d", r.MinHitChance, r.MaxHitChance)
	}
	if r.FleeMinChance > r.FleeMaxChance {
		return fmt.Errorf("flee_min_chance %d exceeds flee_max_chance %d", r.FleeMinChance, r.FleeMaxChance)
	}
	if r.MaxParticipants < 2 {
		return fmt.Errorf("max_participants must be at least 2, got %d", r.MaxParticipants)
	}
	if r.InitiativeDie < 0 || r.MaxNPCTurnsPerDrive < 0 {
		return fmt.Errorf("initiative_die and max_npc_turns_per_drive must not be negative")
	}
	return nil
}

// Package staticstats serves combatant stats from a fixed catalog file.
package staticstats

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

type Catalog struct {
	stats map[string]combat.Stats
}

func NewCatalog(stats map[string]combat.Stats) Catalog {
	out := make(map[string]combat.Stats, len(stats))
	for ref, s := range stats {
		out[normalizeRef(ref)] = s
	}
	return Catalog{stats: out}
}

// Default is a small demo roster so a fresh server can run fights without a catalog file.
func Default() Catalog {
	return NewCatalog(map[string]combat.Stats{
		"hero":     {Attack: 22, Defense: 10, Health: 100, Speed: 10, CritChance: 10, WeaponDamage: 8},
		"ranger":   {Attack: 18, Defense: 8, Health: 90, Speed: 14, CritChance: 20, WeaponDamage: 6},
		"rat":      {Attack: 8, Defense: 2, Health: 30, Speed: 5},
		"wolf":     {Attack: 14, Defense: 5, Health: 45, Speed: 14},
		"bandit":   {Attack: 16, Defense: 8, Health: 60, Speed: 9, CritChance: 5},
		"golem":    {Attack: 25, Defense: 20, Health: 200, Speed: 1},
		"militia":  {Attack: 12, Defense: 8, Health: 70, Speed: 8},
		"herbwife": {Attack: 4, Defense: 4, Health: 50, Speed: 12, ImplantBonus: 10},
	})
}

// Load reads a YAML or JSON catalog with a top-level "combatants" map keyed by ref.
func Load(path string) (Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Catalog{}, fmt.Errorf("error reading stat catalog: %w", err)
	}
	var stats map[string]combat.Stats
	if err := v.UnmarshalKey("combatants", &stats); err != nil {
		return Catalog{}, fmt.Errorf("decode stat catalog: %w", err)
	}
	if len(stats) == 0 {
		return Catalog{}, fmt.Errorf("stat catalog %s has no combatants", path)
	}
	return NewCatalog(stats), nil
}

func (c Catalog) GetCombatStats(_ context.Context, ref string) (combat.Stats, error) {
	s, ok := c.stats[normalizeRef(ref)]
	if !ok {
		return combat.Stats{}, ports.ErrNotFound
	}
	return s, nil
}

func (c Catalog) Len() int {
	return len(c.stats)
}

// viper lower-cases keys, so refs are matched case-insensitively.
func normalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

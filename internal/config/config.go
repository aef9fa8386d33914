// Package config loads process settings from the environment and tuning files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr    string   `env:"COMBATD_HTTP_ADDR" envDefault:":8080"`
	CORSOrigins []string `env:"COMBATD_CORS_ORIGINS" envDefault:"*" envSeparator:","`

	DBDriver      string `env:"COMBATD_DB_DRIVER" envDefault:"memory"`
	DBDSN         string `env:"COMBATD_DB_DSN"`
	MigrationsDir string `env:"COMBATD_MIGRATIONS_DIR"`
	AutoMigrate   bool   `env:"COMBATD_AUTO_MIGRATE" envDefault:"false"`

	RulesFile    string `env:"COMBATD_RULES_FILE"`
	StatsCatalog string `env:"COMBATD_STATS_CATALOG"`

	PolicyScript  string        `env:"COMBATD_POLICY_SCRIPT"`
	PolicyTimeout time.Duration `env:"COMBATD_POLICY_TIMEOUT" envDefault:"250ms"`
	HealBelowPct  int           `env:"COMBATD_NPC_HEAL_BELOW_PCT" envDefault:"0"`
	AutoNPCTurns  bool          `env:"COMBATD_AUTO_NPC_TURNS" envDefault:"true"`

	OTelMetrics bool `env:"COMBATD_OTEL_METRICS" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the optional dotenv files, then parses the environment. Variables already set
// in the environment win over dotenv values.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			return errors.New("COMBATD_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported COMBATD_DB_DRIVER %q", c.DBDriver)
	}
	if c.HealBelowPct < 0 || c.HealBelowPct > 100 {
		return fmt.Errorf("COMBATD_NPC_HEAL_BELOW_PCT must be within 0..100, got %d", c.HealBelowPct)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

package gormrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"combatd/internal/adapter/repo/gorm/model"

	"gorm.io/gorm"
)

type migration struct {
	version string
	apply   func(tx *gorm.DB) error
}

var builtinMigrations = []migration{
	{
		version: "0001_combat_tables",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&model.CombatSession{},
				&model.CombatParticipant{},
				&model.CombatLogEntry{},
				&model.CombatEvent{},
			)
		},
	},
	{
		// at most one ACTIVE session per character, enforced by storage
		version: "0002_single_active_session",
		apply: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_combat_sessions_active_character
ON combat_sessions (character_id) WHERE status = 'ACTIVE'`).Error
		},
	},
}

// ApplyMigrations brings the schema up to date, then applies any *.sql files found in dir in
// lexical order. An empty dir skips the file step.
func ApplyMigrations(ctx context.Context, db *gorm.DB, dir string) error {
	createMetaTableSQL := `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMP NOT NULL
);`
	if err := db.WithContext(ctx).Exec(createMetaTableSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	steps := append([]migration(nil), builtinMigrations...)
	if dir != "" {
		fileSteps, err := sqlMigrations(dir)
		if err != nil {
			return err
		}
		steps = append(steps, fileSteps...)
	}

	for _, m := range steps {
		var count int64
		if err := db.WithContext(ctx).Table("schema_migrations").Where("version = ?", m.version).Count(&count).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.version, err)
			}
			if err := tx.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES (?, ?)`, m.version, time.Now().UTC()).Error; err != nil {
				return fmt.Errorf("record migration %s: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sqlMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}
	names := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		out = append(out, migration{
			version: strings.TrimSuffix(name, ".sql"),
			apply: func(tx *gorm.DB) error {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return tx.Exec(string(content)).Error
			},
		})
	}
	return out, nil
}

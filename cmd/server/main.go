package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/cobra"

	gormrepo "combatd/internal/adapter/repo/gorm"
	"combatd/internal/config"
	"combatd/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "combatd",
		Short:        "Turn-based combat session engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the combat HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg)
		},
	})
	return root
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Bus.Subscribe(ctx, logVictory(logger)); err != nil {
		return err
	}

	s := server.Default(server.WithHostPorts(cfg.HTTPAddr), server.WithExitWaitTime(5*time.Second))
	deps.Handler.RegisterRoutes(s)

	logger.Info("combatd listening", "addr", cfg.HTTPAddr, "store", cfg.DBDriver, "auto_npc_turns", cfg.AutoNPCTurns)
	s.Spin()
	return nil
}

func migrate(ctx context.Context, cfg config.Config) error {
	if cfg.DBDriver == config.StoreMemory {
		return fmt.Errorf("nothing to migrate for the %s store", config.StoreMemory)
	}
	db, err := gormrepo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := gormrepo.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

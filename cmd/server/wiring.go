package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	httpadapter "combatd/internal/adapter/http"
	metricsinmem "combatd/internal/adapter/metrics/inmemory"
	metricsotel "combatd/internal/adapter/metrics/otel"
	basicpolicy "combatd/internal/adapter/policy/basic"
	scriptpolicy "combatd/internal/adapter/policy/script"
	gormrepo "combatd/internal/adapter/repo/gorm"
	"combatd/internal/adapter/repo/memory"
	watermillrewards "combatd/internal/adapter/rewards/watermill"
	staticstats "combatd/internal/adapter/stats/static"
	"combatd/internal/app/encounter"
	"combatd/internal/app/history"
	"combatd/internal/app/ports"
	"combatd/internal/app/replay"
	"combatd/internal/app/status"
	"combatd/internal/config"
	"combatd/internal/domain/combat"
)

type deps struct {
	Handler httpadapter.Handler
	Bus     *watermillrewards.Bus
	closers []func() error
}

func (d deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

type storage struct {
	tx       ports.TxManager
	sessions ports.SessionRepository
	log      ports.CombatLogRepository
	events   ports.EventRepository
	close    func() error
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (deps, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return deps{}, err
	}
	stats := staticstats.Default()
	if cfg.StatsCatalog != "" {
		if stats, err = staticstats.Load(cfg.StatsCatalog); err != nil {
			return deps{}, err
		}
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		return deps{}, err
	}
	store, err := buildStorage(ctx, cfg)
	if err != nil {
		return deps{}, err
	}

	kpi := metricsinmem.NewRecorder()
	recorders := fanoutMetrics{kpi}
	if cfg.OTelMetrics {
		rec, err := metricsotel.NewRecorderFromProvider(otel.GetMeterProvider())
		if err != nil {
			_ = store.close()
			return deps{}, err
		}
		recorders = append(recorders, rec)
	}

	bus := watermillrewards.NewGoChannelBus(logger)
	uc := encounter.UseCase{
		TxManager:      store.tx,
		Sessions:       store.sessions,
		Log:            store.log,
		Events:         store.events,
		Stats:          stats,
		Policy:         policy,
		Rewards:        bus,
		Metrics:        recorders,
		SessionMetrics: recorders,
		Rules:          rules,
		Logger:         logger,
	}
	return deps{
		Handler: httpadapter.Handler{
			EncounterUC:  uc,
			ReplayUC:     replay.UseCase{Events: store.events, Sessions: store.sessions},
			HistoryUC:    history.UseCase{Log: store.log, Sessions: store.sessions},
			StatusUC:     status.UseCase{Sessions: store.sessions},
			KPI:          kpi,
			AutoNPCTurns: cfg.AutoNPCTurns,
			CORSOrigins:  cfg.CORSOrigins,
			Logger:       logger,
		},
		Bus:     bus,
		closers: []func() error{store.close, bus.Close},
	}, nil
}

func buildPolicy(cfg config.Config) (ports.ActionPolicy, error) {
	if cfg.PolicyScript == "" {
		return basicpolicy.Policy{HealBelowPct: cfg.HealBelowPct}, nil
	}
	p, err := scriptpolicy.Load(cfg.PolicyScript, cfg.PolicyTimeout)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func buildStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.DBDriver == config.StoreMemory {
		s := memory.NewStore()
		return storage{
			tx:       memory.NewTxManager(s),
			sessions: memory.NewSessionRepo(s),
			log:      memory.NewCombatLogRepo(s),
			events:   memory.NewEventRepo(s),
			close:    func() error { return nil },
		}, nil
	}

	db, err := gormrepo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return storage{}, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	closeDB := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	// an embedded sqlite database starts empty, so it is always migrated
	if cfg.AutoMigrate || cfg.DBDriver == config.StoreSQLite {
		if err := gormrepo.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			_ = closeDB()
			return storage{}, fmt.Errorf("apply migrations: %w (run `combatd migrate` for postgres)", err)
		}
	}
	return storage{
		tx:       gormrepo.NewTxManager(db),
		sessions: gormrepo.NewSessionRepo(db),
		log:      gormrepo.NewCombatLogRepo(db),
		events:   gormrepo.NewEventRepo(db),
		close:    closeDB,
	}, nil
}

type combatMetrics interface {
	ports.ActionMetrics
	ports.SessionMetrics
}

type fanoutMetrics []combatMetrics

func (f fanoutMetrics) RecordSuccess(actionType combat.ActionType) {
	for _, m := range f {
		m.RecordSuccess(actionType)
	}
}

func (f fanoutMetrics) RecordRejected(reason string) {
	for _, m := range f {
		m.RecordRejected(reason)
	}
}

func (f fanoutMetrics) RecordConflict() {
	for _, m := range f {
		m.RecordConflict()
	}
}

func (f fanoutMetrics) RecordFailure() {
	for _, m := range f {
		m.RecordFailure()
	}
}

func (f fanoutMetrics) RecordStarted() {
	for _, m := range f {
		m.RecordStarted()
	}
}

func (f fanoutMetrics) RecordEnded(outcome combat.Outcome) {
	for _, m := range f {
		m.RecordEnded(outcome)
	}
}

// logVictory stands in for the loot service until one subscribes to the bus.
func logVictory(logger *slog.Logger) watermillrewards.Handler {
	return func(_ context.Context, e ports.CombatResolved) error {
		logger.Info("victory awaiting rewards",
			"session_id", e.SessionID,
			"character_id", e.CharacterID,
			"defeated", e.Defeated,
			"rounds", e.Rounds,
		)
		return nil
	}
}

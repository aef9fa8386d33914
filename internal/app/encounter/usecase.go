package encounter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"

	"github.com/google/uuid"
)

var defaultLocks = NewKeyedLocks()

type UseCase struct {
	TxManager      ports.TxManager
	Sessions       ports.SessionRepository
	Log            ports.CombatLogRepository
	Events         ports.EventRepository
	Stats          ports.StatsProvider
	Policy         ports.ActionPolicy
	Rewards        ports.RewardPublisher
	Metrics        ports.ActionMetrics
	SessionMetrics ports.SessionMetrics
	Rules          combat.Rules
	// Strategy overrides the hit and damage rolls of the default resolver.
	Strategy combat.Strategy
	Locks    *KeyedLocks
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
	NewSeed  func() int64
}

func (u UseCase) Start(ctx context.Context, req StartRequest) (StartResponse, error) {
	req.CharacterID = strings.TrimSpace(req.CharacterID)
	if err := u.validateStart(req); err != nil {
		return StartResponse{}, err
	}

	unlock, err := u.locks().Lock(ctx, characterKey(req.CharacterID))
	if err != nil {
		return StartResponse{}, unavailable(err)
	}
	defer unlock()

	roster, err := u.seedRoster(ctx, req)
	if err != nil {
		return StartResponse{}, err
	}
	now := u.now()
	session := combat.Session{
		ID:           u.newID(),
		CharacterID:  req.CharacterID,
		Status:       combat.StatusActive,
		Cursor:       combat.FirstCursor(roster.roster),
		Seed:         roster.seed,
		Participants: roster.roster.List(),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	snap := combat.NewSnapshot(session)

	var stored []combat.Event
	err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		active, err := u.Sessions.GetActiveByCharacter(txCtx, req.CharacterID)
		if err == nil {
			return &CombatAlreadyActiveError{SessionID: active.ID}
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		if err := u.Sessions.Create(txCtx, session); err != nil {
			return err
		}
		stored, err = u.Events.Append(txCtx, session.ID, []combat.Event{
			newEvent(session.ID, combat.EventSessionStarted, now, sessionStartedPayload(snap)),
		})
		return err
	})
	if err != nil {
		var already *CombatAlreadyActiveError
		switch {
		case errors.As(err, &already):
			u.recordRejected("combat_already_active")
			return StartResponse{}, err
		case isStorageConflict(err):
			// lost the race against a concurrent writer holding the unique index
			u.recordRejected("combat_already_active")
			out := &CombatAlreadyActiveError{}
			if active, getErr := u.Sessions.GetActiveByCharacter(ctx, req.CharacterID); getErr == nil {
				out.SessionID = active.ID
			}
			return StartResponse{}, out
		default:
			u.recordFailure()
			u.logger().Error("combat start failed", "character_id", req.CharacterID, "err", err)
			return StartResponse{}, unavailable(err)
		}
	}

	if u.SessionMetrics != nil {
		u.SessionMetrics.RecordStarted()
	}
	u.logger().Info("combat started",
		"session_id", session.ID,
		"character_id", session.CharacterID,
		"participants", len(session.Participants),
		"first_actor", snap.CurrentActorID,
	)
	return StartResponse{SessionID: session.ID, Snapshot: snap, Events: stored}, nil
}

func (u UseCase) SubmitAction(ctx context.Context, req ActionRequest) (ActionResult, error) {
	tc, err := u.ValidateAction(req)
	if err != nil {
		return ActionResult{}, err
	}
	unlock, err := u.locks().Lock(ctx, sessionKey(tc.In.SessionID))
	if err != nil {
		return ActionResult{}, unavailable(err)
	}
	defer unlock()

	if err := u.PrefetchStats(ctx, &tc); err != nil {
		return ActionResult{}, u.reject(err, &tc)
	}
	err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := u.LoadTurn(txCtx, &tc); err != nil {
			return err
		}
		if err := u.ResolveAction(&tc); err != nil {
			return err
		}
		if err := u.ApplyEffects(&tc); err != nil {
			return err
		}
		if err := u.AppendLogEntry(txCtx, &tc); err != nil {
			return err
		}
		u.SettleTurn(&tc)
		return u.Persist(txCtx, &tc)
	})
	if err != nil {
		return ActionResult{}, u.reject(err, &tc)
	}
	u.afterCommit(ctx, &tc)
	return tc.result(), nil
}

func (u UseCase) Flee(ctx context.Context, req FleeRequest) (FleeResult, error) {
	tc, err := u.ValidateAction(ActionRequest{
		SessionID: req.SessionID,
		ActorID:   req.ActorID,
		Action:    combat.Action{Type: combat.ActionFlee},
	})
	if err != nil {
		return FleeResult{}, err
	}
	unlock, err := u.locks().Lock(ctx, sessionKey(tc.In.SessionID))
	if err != nil {
		return FleeResult{}, unavailable(err)
	}
	defer unlock()

	err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := u.LoadTurn(txCtx, &tc); err != nil {
			return err
		}
		if err := u.ResolveFlee(&tc); err != nil {
			return err
		}
		if err := u.ApplyEffects(&tc); err != nil {
			return err
		}
		if err := u.AppendLogEntry(txCtx, &tc); err != nil {
			return err
		}
		u.SettleTurn(&tc)
		return u.Persist(txCtx, &tc)
	})
	if err != nil {
		return FleeResult{}, u.reject(err, &tc)
	}
	u.afterCommit(ctx, &tc)
	return FleeResult{
		ActionResult: tc.result(),
		Escaped:      tc.Escape.Escaped,
		Chance:       tc.Escape.Chance,
		Roll:         tc.Escape.Roll,
	}, nil
}

func (u UseCase) validateStart(req StartRequest) error {
	if req.CharacterID == "" {
		return invalidRequest("character_id is required")
	}
	if len(req.Opponents) == 0 {
		return invalidRequest("at least one opponent is required")
	}
	if limit := u.Rules.MaxParticipants; limit > 0 && len(req.Opponents)+1 > limit {
		return invalidRequest("at most %d participants per session", limit)
	}
	enemies := 0
	for _, o := range req.Opponents {
		if strings.TrimSpace(o.Ref) == "" {
			return invalidRequest("opponent ref is required")
		}
		switch o.Type {
		case "", combat.ParticipantEnemy:
			enemies++
		case combat.ParticipantNPC:
		default:
			return invalidRequest("unsupported opponent type %q", o.Type)
		}
	}
	if enemies == 0 {
		return invalidRequest("at least one enemy is required")
	}
	return nil
}

type seededRoster struct {
	roster *combat.Roster
	seed   int64
}

// seedRoster reads every combatant's stats and rolls initiative from the session seed.
func (u UseCase) seedRoster(ctx context.Context, req StartRequest) (seededRoster, error) {
	seed := u.newSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := combat.NewRand(seed, 0)

	player, err := u.statsFor(ctx, req.CharacterID)
	if err != nil {
		return seededRoster{}, err
	}
	participants := []combat.Participant{newParticipant(
		"player-"+req.CharacterID, combat.ParticipantPlayer, req.CharacterID, req.CharacterID, 0, player, u.Rules.RollInitiative(rng, player),
	)}

	counts := map[combat.ParticipantType]int{}
	for i, o := range req.Opponents {
		typ := o.Type
		if typ == "" {
			typ = combat.ParticipantEnemy
		}
		stats, err := u.statsFor(ctx, o.Ref)
		if err != nil {
			return seededRoster{}, err
		}
		counts[typ]++
		id := fmt.Sprintf("%s-%d", strings.ToLower(string(typ)), counts[typ])
		name := o.Name
		if name == "" {
			name = o.Ref
		}
		participants = append(participants, newParticipant(id, typ, name, o.Ref, i+1, stats, u.Rules.RollInitiative(rng, stats)))
	}
	return seededRoster{roster: combat.NewRoster(participants), seed: seed}, nil
}

func (u UseCase) statsFor(ctx context.Context, ref string) (combat.Stats, error) {
	stats, err := u.Stats.GetCombatStats(ctx, ref)
	if errors.Is(err, ports.ErrNotFound) {
		return combat.Stats{}, invalidRequest("unknown combatant %q", ref)
	}
	if err != nil {
		return combat.Stats{}, unavailable(fmt.Errorf("combat stats %s: %w", ref, err))
	}
	if stats.Health <= 0 {
		return combat.Stats{}, invalidRequest("combatant %q has no health", ref)
	}
	return stats, nil
}

func newParticipant(id string, typ combat.ParticipantType, name, ref string, order int, stats combat.Stats, initiative int) combat.Participant {
	return combat.Participant{
		ID:         id,
		Type:       typ,
		Name:       name,
		Ref:        ref,
		Initiative: initiative,
		Health:     stats.Health,
		MaxHealth:  stats.Health,
		Alive:      true,
		OrderIndex: order,
	}
}

// reject classifies a failed turn. Domain refusals carry the snapshot loaded before the attempt.
func (u UseCase) reject(err error, tc *TurnContext) error {
	if reason := rejectionReason(err); reason != "" {
		u.recordRejected(reason)
		return &RejectedError{Err: err, Snapshot: combat.NewSnapshot(tc.Before)}
	}
	switch {
	case errors.Is(err, ErrEngineUnavailable):
		u.recordFailure()
	case errors.Is(err, ports.ErrNotFound):
		u.recordRejected("not_found")
		return err
	case isStorageConflict(err):
		if u.Metrics != nil {
			u.Metrics.RecordConflict()
		}
		u.logger().Warn("combat turn conflict", "session_id", tc.In.SessionID, "err", err)
		return unavailable(err)
	default:
		u.recordFailure()
	}
	u.logger().Error("combat turn failed", "session_id", tc.In.SessionID, "actor_id", tc.In.ActorID, "err", err)
	return unavailable(err)
}

func (u UseCase) afterCommit(ctx context.Context, tc *TurnContext) {
	if u.Metrics != nil {
		u.Metrics.RecordSuccess(tc.In.Action.Type)
	}
	if !tc.Ended {
		return
	}
	if u.SessionMetrics != nil {
		u.SessionMetrics.RecordEnded(tc.Session.Outcome)
	}
	u.logger().Info("combat ended",
		"session_id", tc.Session.ID,
		"outcome", tc.Session.Outcome,
		"rounds", tc.Session.Cursor.Round,
	)
	if tc.Session.Outcome != combat.OutcomeVictory || u.Rewards == nil {
		return
	}
	if err := u.Rewards.PublishCombatResolved(ctx, resolvedEvent(tc.Session)); err != nil {
		u.logger().Error("publish combat resolved failed", "session_id", tc.Session.ID, "err", err)
	}
}

func resolvedEvent(s combat.Session) ports.CombatResolved {
	out := ports.CombatResolved{
		SessionID:   s.ID,
		CharacterID: s.CharacterID,
		Outcome:     string(s.Outcome),
		Rounds:      s.Cursor.Round,
		ResolvedAt:  s.UpdatedAt,
	}
	for _, p := range s.Participants {
		if p.Type != combat.ParticipantEnemy {
			continue
		}
		out.EnemyRefs = append(out.EnemyRefs, p.Ref)
		if !p.Alive {
			out.Defeated = append(out.Defeated, p.ID)
		}
	}
	return out
}

func (u UseCase) recordRejected(reason string) {
	if u.Metrics != nil {
		u.Metrics.RecordRejected(reason)
	}
}

func (u UseCase) recordFailure() {
	if u.Metrics != nil {
		u.Metrics.RecordFailure()
	}
}

func (u UseCase) locks() *KeyedLocks {
	if u.Locks != nil {
		return u.Locks
	}
	return defaultLocks
}

func (u UseCase) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

func (u UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now().UTC()
	}
	return time.Now().UTC()
}

func (u UseCase) newID() string {
	if u.NewID != nil {
		return u.NewID()
	}
	return uuid.NewString()
}

func (u UseCase) newSeed() int64 {
	if u.NewSeed != nil {
		return u.NewSeed()
	}
	return int64(uuid.New().ID())<<32 | time.Now().UnixNano()&0xffffffff
}

func (u UseCase) resolver() combat.Resolver {
	r := combat.NewResolver(u.Rules)
	if u.Strategy != nil {
		r.Strategy = u.Strategy
	}
	return r
}

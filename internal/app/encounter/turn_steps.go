package encounter

import (
	"context"
	"strings"
	"time"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

type TurnInput struct {
	SessionID string
	ActorID   string
	Action    combat.Action
	NowAt     time.Time
}

// TurnContext carries one action through load, resolve, apply, log, settle and persist.
type TurnContext struct {
	In      TurnInput
	Before  combat.Session
	Session combat.Session
	Roster  *combat.Roster
	Actor   combat.Participant
	Stats   map[string]combat.Stats
	Effects []combat.Effect
	Applied []combat.Applied
	Escape  combat.EscapeCheck
	Entry   combat.LogEntry
	Pending []combat.Event
	Stored  []combat.Event
	Ended   bool
}

func (u UseCase) ValidateAction(req ActionRequest) (TurnContext, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.ActorID = strings.TrimSpace(req.ActorID)
	req.Action.Type = combat.ActionType(strings.ToLower(strings.TrimSpace(string(req.Action.Type))))
	if req.SessionID == "" || req.ActorID == "" {
		return TurnContext{}, invalidRequest("session_id and actor_id are required")
	}
	if req.Action.Type == "" {
		return TurnContext{}, invalidRequest("action type is required")
	}
	return TurnContext{In: TurnInput{
		SessionID: req.SessionID,
		ActorID:   req.ActorID,
		Action:    req.Action,
		NowAt:     u.now(),
	}}, nil
}

func (u UseCase) LoadTurn(ctx context.Context, tc *TurnContext) error {
	session, err := u.Sessions.Get(ctx, tc.In.SessionID)
	if err != nil {
		return err
	}
	tc.Before = session
	tc.Session = session
	tc.Roster = session.Roster()
	if session.Status.Terminal() {
		return combat.ErrSessionNotActive
	}
	actor, ok := combat.CurrentActor(tc.Roster, session.Cursor)
	if !ok || actor.ID != tc.In.ActorID {
		return combat.ErrNotActorsTurn
	}
	tc.Actor = actor
	return nil
}

// PrefetchStats looks up the living participants' stats before the transaction opens. The caller
// holds the session lock, so the roster LoadTurn reads next is the one fetched here. A session
// that is over or waiting on another actor fetches nothing and LoadTurn rejects it.
func (u UseCase) PrefetchStats(ctx context.Context, tc *TurnContext) error {
	session, err := u.Sessions.Get(ctx, tc.In.SessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}
	roster := session.Roster()
	actor, ok := combat.CurrentActor(roster, session.Cursor)
	if !ok || actor.ID != tc.In.ActorID {
		return nil
	}
	stats, err := u.rosterStats(ctx, roster)
	if err != nil {
		return err
	}
	tc.Stats = stats
	return nil
}

func (u UseCase) ResolveAction(tc *TurnContext) error {
	if tc.In.Action.Type == combat.ActionFlee {
		return u.ResolveFlee(tc)
	}
	for _, p := range tc.Roster.List() {
		if _, ok := tc.Stats[p.ID]; p.Alive && !ok {
			// roster moved on since the prefetch
			return ports.ErrConflict
		}
	}
	rng := combat.NewRand(tc.Before.Seed, tc.Before.Version)
	effects, err := u.resolver().Resolve(rng, tc.Roster, tc.Actor.ID, tc.In.Action, tc.Stats)
	if err != nil {
		return err
	}
	tc.Effects = effects
	return nil
}

func (u UseCase) ResolveFlee(tc *TurnContext) error {
	if tc.Actor.Type != combat.ParticipantPlayer {
		return combat.ErrInvalidAction
	}
	rng := combat.NewRand(tc.Before.Seed, tc.Before.Version)
	tc.Escape = u.Rules.CheckEscape(rng, tc.Actor, tc.Roster)
	tc.In.Action = combat.Action{Type: combat.ActionFlee}
	tc.Effects = []combat.Effect{{Kind: combat.EffectFlee, TargetID: tc.Actor.ID, Success: tc.Escape.Escaped}}
	return nil
}

func (u UseCase) ApplyEffects(tc *TurnContext) error {
	applied, err := combat.Apply(tc.Roster, tc.Effects)
	if err != nil {
		return err
	}
	tc.Applied = applied
	return nil
}

func (u UseCase) AppendLogEntry(ctx context.Context, tc *TurnContext) error {
	entry := combat.LogEntry{
		SessionID:  tc.Before.ID,
		Round:      tc.Before.Cursor.Round,
		ActorID:    tc.Actor.ID,
		TargetIDs:  effectTargets(tc.Effects),
		ActionType: tc.In.Action.Type,
		Effects:    tc.Effects,
		CreatedAt:  tc.In.NowAt,
	}
	order, err := u.Log.Append(ctx, entry)
	if err != nil {
		return err
	}
	entry.ActionOrder = order
	tc.Entry = entry
	return nil
}

// SettleTurn turns the applied effects into events, then either ends the session or hands the
// turn to the next living participant.
func (u UseCase) SettleTurn(tc *TurnContext) {
	for _, a := range tc.Applied {
		tc.Pending = append(tc.Pending, effectEvents(tc, a)...)
	}
	if tc.In.Action.Type == combat.ActionFlee && tc.Escape.Escaped {
		u.endSession(tc, combat.StatusFled, combat.OutcomeFled)
		return
	}
	if outcome := combat.Resolution(tc.Roster); outcome != combat.OutcomeNone {
		u.endSession(tc, combat.StatusEnded, outcome)
		return
	}

	next, wrapped := combat.Advance(tc.Roster, tc.Session.Cursor)
	if wrapped {
		tc.Pending = append(tc.Pending, tc.event(combat.EventRoundAdvanced, map[string]any{
			"previous_round": tc.Session.Cursor.Round,
			"round":          next.Round,
		}))
	}
	payload := map[string]any{"round": next.Round, "turn": next.Turn}
	if actor, ok := combat.CurrentActor(tc.Roster, next); ok {
		tc.Roster.ClearStatus(actor.ID, combat.StatusGuarded)
		payload["actor_id"] = actor.ID
		payload["actor_type"] = string(actor.Type)
	}
	tc.Pending = append(tc.Pending, tc.event(combat.EventTurnAdvanced, payload))
	tc.Session.Cursor = next
}

func (u UseCase) endSession(tc *TurnContext, status combat.Status, outcome combat.Outcome) {
	endedAt := tc.In.NowAt
	tc.Session.Status = status
	tc.Session.Outcome = outcome
	tc.Session.EndedAt = &endedAt
	tc.Ended = true
	tc.Pending = append(tc.Pending, tc.event(combat.EventSessionEnded, map[string]any{
		"status":  string(status),
		"outcome": string(outcome),
		"round":   tc.Session.Cursor.Round,
	}))
}

func (u UseCase) Persist(ctx context.Context, tc *TurnContext) error {
	tc.Session.Participants = tc.Roster.List()
	tc.Session.Version = tc.Before.Version + 1
	tc.Session.UpdatedAt = tc.In.NowAt
	stored, err := u.Events.Append(ctx, tc.Before.ID, tc.Pending)
	if err != nil {
		return err
	}
	tc.Stored = stored
	return u.Sessions.SaveWithVersion(ctx, tc.Session, tc.Before.Version)
}

func (u UseCase) rosterStats(ctx context.Context, roster *combat.Roster) (map[string]combat.Stats, error) {
	out := make(map[string]combat.Stats, roster.Len())
	for _, p := range roster.List() {
		if !p.Alive {
			continue
		}
		stats, err := u.Stats.GetCombatStats(ctx, p.Ref)
		if err != nil {
			return nil, unavailable(err)
		}
		out[p.ID] = stats
	}
	return out, nil
}

func (tc *TurnContext) event(typ combat.EventType, payload map[string]any) combat.Event {
	return newEvent(tc.Before.ID, typ, tc.In.NowAt, payload)
}

func (tc *TurnContext) result() ActionResult {
	return ActionResult{
		SessionID:   tc.Session.ID,
		Round:       tc.Entry.Round,
		ActionOrder: tc.Entry.ActionOrder,
		ActorID:     tc.Actor.ID,
		ActionType:  tc.In.Action.Type,
		Effects:     tc.Effects,
		Events:      tc.Stored,
		Snapshot:    combat.NewSnapshot(tc.Session),
	}
}

func effectTargets(effects []combat.Effect) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, e := range effects {
		if e.TargetID == "" || seen[e.TargetID] {
			continue
		}
		seen[e.TargetID] = true
		out = append(out, e.TargetID)
	}
	return out
}

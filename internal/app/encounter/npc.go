package encounter

import (
	"context"
	"errors"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

const defaultMaxNPCTurns = 32

// DriveNPCTurns plays computer-controlled participants until a player is up, the session ends,
// or the per-call budget is spent. Every action goes through SubmitAction.
func (u UseCase) DriveNPCTurns(ctx context.Context, sessionID string) ([]ActionResult, error) {
	if u.Policy == nil {
		return nil, nil
	}
	limit := u.Rules.MaxNPCTurnsPerDrive
	if limit <= 0 {
		limit = defaultMaxNPCTurns
	}

	out := []ActionResult{}
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return out, unavailable(err)
		}
		session, err := u.Sessions.Get(ctx, sessionID)
		if err != nil {
			return out, u.notFoundOrUnavailable(err)
		}
		if session.Status.Terminal() {
			return out, nil
		}
		snap := combat.NewSnapshot(session)
		actor, ok := snap.Participant(snap.CurrentActorID)
		if !ok || actor.Type == combat.ParticipantPlayer {
			return out, nil
		}

		action, err := u.Policy.SelectAction(ctx, snap, actor.ID)
		if err != nil {
			u.logger().Warn("npc policy failed, waiting instead", "session_id", sessionID, "actor_id", actor.ID, "err", err)
			action = combat.Action{Type: combat.ActionWait}
		}
		res, err := u.SubmitAction(ctx, ActionRequest{SessionID: sessionID, ActorID: actor.ID, Action: action})
		if err != nil && action.Type != combat.ActionWait &&
			(errors.Is(err, combat.ErrInvalidTarget) || errors.Is(err, combat.ErrInvalidAction)) {
			u.logger().Warn("npc action rejected, waiting instead", "session_id", sessionID, "actor_id", actor.ID, "err", err)
			res, err = u.SubmitAction(ctx, ActionRequest{SessionID: sessionID, ActorID: actor.ID, Action: combat.Action{Type: combat.ActionWait}})
		}
		if errors.Is(err, combat.ErrNotActorsTurn) {
			// another writer moved the session on; re-read it
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (u UseCase) notFoundOrUnavailable(err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return err
	}
	return unavailable(err)
}

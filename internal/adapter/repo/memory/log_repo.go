package memory

import (
	"context"

	"combatd/internal/domain/combat"
)

type CombatLogRepo struct {
	store *Store
}

func NewCombatLogRepo(store *Store) CombatLogRepo {
	return CombatLogRepo{store: store}
}

func (r CombatLogRepo) Append(ctx context.Context, entry combat.LogEntry) (int, error) {
	var order int
	err := r.store.write(ctx, func(t *tx) error {
		st := r.store.stageLog(t, entry.SessionID)
		for _, e := range r.store.logEntries(t, entry.SessionID) {
			if e.Round == entry.Round && e.ActionOrder > order {
				order = e.ActionOrder
			}
		}
		order++
		entry.ActionOrder = order
		st.entries = append(st.entries, cloneEntry(entry))
		return nil
	})
	return order, err
}

func (r CombatLogRepo) ListRound(ctx context.Context, sessionID string, round int) ([]combat.LogEntry, error) {
	out := []combat.LogEntry{}
	for _, e := range r.store.logEntries(txFromCtx(ctx), sessionID) {
		if e.Round == round {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (r CombatLogRepo) ListAll(ctx context.Context, sessionID string) ([]combat.LogEntry, error) {
	out := []combat.LogEntry{}
	for _, e := range r.store.logEntries(txFromCtx(ctx), sessionID) {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

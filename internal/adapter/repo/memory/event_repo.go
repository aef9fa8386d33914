package memory

import (
	"context"

	"combatd/internal/domain/combat"
)

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) EventRepo {
	return EventRepo{store: store}
}

func (r EventRepo) Append(ctx context.Context, sessionID string, events []combat.Event) ([]combat.Event, error) {
	out := make([]combat.Event, 0, len(events))
	err := r.store.write(ctx, func(t *tx) error {
		st := r.store.stageEvents(t, sessionID)
		next := int64(st.base + len(st.events))
		for _, e := range events {
			next++
			e.ID = next
			e.SessionID = sessionID
			st.events = append(st.events, cloneEvent(e))
			out = append(out, cloneEvent(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r EventRepo) ListSince(ctx context.Context, sessionID string, afterID int64, limit int) ([]combat.Event, error) {
	out := []combat.Event{}
	for _, e := range r.store.eventList(txFromCtx(ctx), sessionID) {
		if e.ID <= afterID {
			continue
		}
		out = append(out, cloneEvent(e))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

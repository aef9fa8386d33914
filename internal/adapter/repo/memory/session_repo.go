package memory

import (
	"context"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

type SessionRepo struct {
	store *Store
}

func NewSessionRepo(store *Store) SessionRepo {
	return SessionRepo{store: store}
}

func (r SessionRepo) Create(ctx context.Context, session combat.Session) error {
	return r.store.write(ctx, func(t *tx) error {
		if _, ok := r.store.session(t, session.ID); ok {
			return ports.ErrConflict
		}
		if session.Status == combat.StatusActive {
			if _, ok := r.store.activeSession(t, session.CharacterID); ok {
				return ports.ErrConflict
			}
		}
		t.sessions[session.ID] = &stagedSession{session: cloneSession(session), created: true}
		return nil
	})
}

func (r SessionRepo) Get(ctx context.Context, sessionID string) (combat.Session, error) {
	s, ok := r.store.session(txFromCtx(ctx), sessionID)
	if !ok {
		return combat.Session{}, ports.ErrNotFound
	}
	return s, nil
}

func (r SessionRepo) GetActiveByCharacter(ctx context.Context, characterID string) (combat.Session, error) {
	s, ok := r.store.activeSession(txFromCtx(ctx), characterID)
	if !ok {
		return combat.Session{}, ports.ErrNotFound
	}
	return s, nil
}

func (r SessionRepo) SaveWithVersion(ctx context.Context, session combat.Session, expectedVersion int64) error {
	return r.store.write(ctx, func(t *tx) error {
		current, ok := r.store.session(t, session.ID)
		if !ok {
			return ports.ErrNotFound
		}
		if current.Version != expectedVersion {
			return ports.ErrConflict
		}
		st, staged := t.sessions[session.ID]
		if !staged {
			st = &stagedSession{base: current.Version}
			t.sessions[session.ID] = st
		}
		st.session = cloneSession(session)
		return nil
	})
}

package memory

import (
	"context"
	"sync"

	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"
)

// Store keeps sessions, log entries and events in maps. Writes made inside RunInTx are staged on
// the transaction and land together at commit; the store lock is only held while maps are read or
// updated, never across a caller's transaction.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]combat.Session
	log      map[string][]combat.LogEntry
	events   map[string][]combat.Event
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]combat.Session),
		log:      make(map[string][]combat.LogEntry),
		events:   make(map[string][]combat.Event),
	}
}

type txKeyType struct{}

var txKey = txKeyType{}

type stagedSession struct {
	session combat.Session
	created bool
	// base is the committed version the staged save was checked against.
	base int64
}

type stagedLog struct {
	base    int
	entries []combat.LogEntry
}

type stagedEvents struct {
	base   int
	events []combat.Event
}

// tx holds the writes of one transaction until commit.
type tx struct {
	sessions map[string]*stagedSession
	log      map[string]*stagedLog
	events   map[string]*stagedEvents
}

func newTx() *tx {
	return &tx{
		sessions: make(map[string]*stagedSession),
		log:      make(map[string]*stagedLog),
		events:   make(map[string]*stagedEvents),
	}
}

func txFromCtx(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey).(*tx)
	return t
}

// write runs fn against the caller's transaction, or a one-shot one committed right away.
func (s *Store) write(ctx context.Context, fn func(t *tx) error) error {
	if t := txFromCtx(ctx); t != nil {
		return fn(t)
	}
	t := newTx()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// commit re-checks every staged write against the committed state, then applies all of them.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range t.sessions {
		current, ok := s.sessions[id]
		if st.created {
			if ok {
				return ports.ErrConflict
			}
			if st.session.Status == combat.StatusActive && s.activeLocked(st.session.CharacterID, id) {
				return ports.ErrConflict
			}
			continue
		}
		if !ok {
			return ports.ErrNotFound
		}
		if current.Version != st.base {
			return ports.ErrConflict
		}
	}
	for id, st := range t.log {
		if len(s.log[id]) != st.base {
			return ports.ErrConflict
		}
	}
	for id, st := range t.events {
		if len(s.events[id]) != st.base {
			return ports.ErrConflict
		}
	}

	for id, st := range t.sessions {
		s.sessions[id] = st.session
	}
	for id, st := range t.log {
		s.log[id] = append(s.log[id], st.entries...)
	}
	for id, st := range t.events {
		s.events[id] = append(s.events[id], st.events...)
	}
	return nil
}

func (s *Store) activeLocked(characterID, exceptID string) bool {
	for id, sess := range s.sessions {
		if id != exceptID && sess.CharacterID == characterID && sess.Status == combat.StatusActive {
			return true
		}
	}
	return false
}

// session returns the staged copy when t holds one, else the committed row.
func (s *Store) session(t *tx, id string) (combat.Session, bool) {
	if t != nil {
		if st, ok := t.sessions[id]; ok {
			return cloneSession(st.session), true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return combat.Session{}, false
	}
	return cloneSession(sess), true
}

func (s *Store) activeSession(t *tx, characterID string) (combat.Session, bool) {
	if t != nil {
		for _, st := range t.sessions {
			if st.session.CharacterID == characterID && st.session.Status == combat.StatusActive {
				return cloneSession(st.session), true
			}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, sess := range s.sessions {
		if t != nil {
			if _, staged := t.sessions[id]; staged {
				continue
			}
		}
		if sess.CharacterID == characterID && sess.Status == combat.StatusActive {
			return cloneSession(sess), true
		}
	}
	return combat.Session{}, false
}

// logEntries returns the committed entries followed by the ones staged on t. Committed entries are
// append-only, so the slice taken under the lock stays valid after it is released.
func (s *Store) logEntries(t *tx, sessionID string) []combat.LogEntry {
	s.mu.RLock()
	committed := s.log[sessionID]
	s.mu.RUnlock()
	if t == nil || t.log[sessionID] == nil {
		return committed
	}
	return append(committed[:len(committed):len(committed)], t.log[sessionID].entries...)
}

func (s *Store) eventList(t *tx, sessionID string) []combat.Event {
	s.mu.RLock()
	committed := s.events[sessionID]
	s.mu.RUnlock()
	if t == nil || t.events[sessionID] == nil {
		return committed
	}
	return append(committed[:len(committed):len(committed)], t.events[sessionID].events...)
}

func (s *Store) stageLog(t *tx, sessionID string) *stagedLog {
	st, ok := t.log[sessionID]
	if !ok {
		s.mu.RLock()
		st = &stagedLog{base: len(s.log[sessionID])}
		s.mu.RUnlock()
		t.log[sessionID] = st
	}
	return st
}

func (s *Store) stageEvents(t *tx, sessionID string) *stagedEvents {
	st, ok := t.events[sessionID]
	if !ok {
		s.mu.RLock()
		st = &stagedEvents{base: len(s.events[sessionID])}
		s.mu.RUnlock()
		t.events[sessionID] = st
	}
	return st
}

func cloneSession(in combat.Session) combat.Session {
	out := in
	out.Participants = make([]combat.Participant, len(in.Participants))
	for i, p := range in.Participants {
		p.Statuses = append([]string(nil), p.Statuses...)
		out.Participants[i] = p
	}
	if in.EndedAt != nil {
		t := *in.EndedAt
		out.EndedAt = &t
	}
	return out
}

func cloneEntry(in combat.LogEntry) combat.LogEntry {
	out := in
	out.TargetIDs = append([]string(nil), in.TargetIDs...)
	out.Effects = append([]combat.Effect(nil), in.Effects...)
	return out
}

func cloneEvent(in combat.Event) combat.Event {
	out := in
	if in.Payload != nil {
		out.Payload = make(map[string]any, len(in.Payload))
		for k, v := range in.Payload {
			out.Payload[k] = v
		}
	}
	return out
}

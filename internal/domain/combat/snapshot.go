package combat

// Snapshot is the client-facing view of a session used for reconcile and NPC policies.
type Snapshot struct {
	SessionID      string        `json:"session_id"`
	CharacterID    string        `json:"character_id"`
	Status         Status        `json:"status"`
	Outcome        Outcome       `json:"outcome,omitempty"`
	Round          int           `json:"round"`
	CurrentActorID string        `json:"current_actor_id,omitempty"`
	TurnOrder      []string      `json:"turn_order"`
	Participants   []Participant `json:"participants"`
	Version        int64         `json:"version"`
}

func NewSnapshot(s Session) Snapshot {
	roster := s.Roster()
	order := roster.TurnOrder()
	ids := make([]string, 0, len(order))
	for _, p := range order {
		ids = append(ids, p.ID)
	}
	snap := Snapshot{
		SessionID:    s.ID,
		CharacterID:  s.CharacterID,
		Status:       s.Status,
		Outcome:      s.Outcome,
		Round:        s.Cursor.Round,
		TurnOrder:    ids,
		Participants: roster.List(),
		Version:      s.Version,
	}
	if s.Status == StatusActive {
		if actor, ok := CurrentActor(roster, s.Cursor); ok {
			snap.CurrentActorID = actor.ID
		}
	}
	return snap
}

func (s Snapshot) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

package combat

// FirstCursor points at the first living participant of round 1.
func FirstCursor(r *Roster) Cursor {
	order := r.TurnOrder()
	for i, p := range order {
		if p.Alive {
			return Cursor{Round: 1, Turn: i}
		}
	}
	return Cursor{Round: 1}
}

// CurrentActor returns the participant at the cursor. ok is false when the cursor points
// outside the turn order or at a dead participant.
func CurrentActor(r *Roster, c Cursor) (Participant, bool) {
	order := r.TurnOrder()
	if c.Turn < 0 || c.Turn >= len(order) {
		return Participant{}, false
	}
	p := order[c.Turn]
	if !p.Alive {
		return Participant{}, false
	}
	return p, true
}

// Advance moves the cursor to the next living participant in turn order. Passing the end of
// the order starts the next round at the first living participant. The cursor is unchanged
// when nobody is alive.
func Advance(r *Roster, c Cursor) (Cursor, bool) {
	order := r.TurnOrder()
	if len(order) == 0 || r.CountAlive() == 0 {
		return c, false
	}
	for i := c.Turn + 1; i < len(order); i++ {
		if order[i].Alive {
			return Cursor{Round: c.Round, Turn: i}, false
		}
	}
	for i := 0; i < len(order); i++ {
		if order[i].Alive {
			return Cursor{Round: c.Round + 1, Turn: i}, true
		}
	}
	return c, false
}

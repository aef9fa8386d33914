package combat

import "sort"

// Roster is the participant registry of one session. It owns a private copy of the
// participants; callers read results back through List.
type Roster struct {
	items []Participant
}

func NewRoster(participants []Participant) *Roster {
	items := make([]Participant, len(participants))
	for i, p := range participants {
		p.Statuses = append([]string(nil), p.Statuses...)
		items[i] = p
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderIndex < items[j].OrderIndex
	})
	return &Roster{items: items}
}

func (r *Roster) Len() int {
	return len(r.items)
}

// List returns participants ordered by OrderIndex.
func (r *Roster) List() []Participant {
	out := make([]Participant, len(r.items))
	for i, p := range r.items {
		p.Statuses = append([]string(nil), p.Statuses...)
		out[i] = p
	}
	return out
}

// TurnOrder returns participants by initiative descending, ties by OrderIndex ascending.
// Dead participants stay in place.
func (r *Roster) TurnOrder() []Participant {
	out := r.List()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Initiative != out[j].Initiative {
			return out[i].Initiative > out[j].Initiative
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

func (r *Roster) Get(id string) (Participant, bool) {
	idx := r.indexOf(id)
	if idx < 0 {
		return Participant{}, false
	}
	p := r.items[idx]
	p.Statuses = append([]string(nil), p.Statuses...)
	return p, true
}

// ApplyDamage subtracts amount from health, clamped to [0, MaxHealth]. A negative amount heals.
// It returns the applied health delta (negative for damage).
func (r *Roster) ApplyDamage(id string, amount int) (int, error) {
	idx := r.indexOf(id)
	if idx < 0 {
		return 0, invalidTarget(id)
	}
	p := &r.items[idx]
	before := p.Health
	next := before - amount
	if next < 0 {
		next = 0
	}
	if next > p.MaxHealth {
		next = p.MaxHealth
	}
	p.Health = next
	p.Alive = next > 0
	return next - before, nil
}

func (r *Roster) AddStatus(id, status string) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return invalidTarget(id)
	}
	if r.items[idx].HasStatus(status) {
		return nil
	}
	r.items[idx].Statuses = append(r.items[idx].Statuses, status)
	return nil
}

func (r *Roster) ClearStatus(id, status string) bool {
	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}
	p := &r.items[idx]
	for i, s := range p.Statuses {
		if s == status {
			p.Statuses = append(p.Statuses[:i], p.Statuses[i+1:]...)
			return true
		}
	}
	return false
}

// CountAlive counts living participants of the given types; no types means all.
func (r *Roster) CountAlive(types ...ParticipantType) int {
	n := 0
	for _, p := range r.items {
		if !p.Alive {
			continue
		}
		if len(types) == 0 || containsType(types, p.Type) {
			n++
		}
	}
	return n
}

func (r *Roster) indexOf(id string) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

func containsType(types []ParticipantType, t ParticipantType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

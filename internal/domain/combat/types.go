package combat

import "time"

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
	StatusFled   Status = "FLED"
)

func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusFled
}

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
	OutcomeFled    Outcome = "fled"
)

type ParticipantType string

const (
	ParticipantPlayer ParticipantType = "PLAYER"
	ParticipantNPC    ParticipantType = "NPC"
	ParticipantEnemy  ParticipantType = "ENEMY"
)

func (t ParticipantType) Valid() bool {
	switch t {
	case ParticipantPlayer, ParticipantNPC, ParticipantEnemy:
		return true
	default:
		return false
	}
}

// Allied reports whether the participant fights on the character's side.
func (t ParticipantType) Allied() bool {
	return t == ParticipantPlayer || t == ParticipantNPC
}

const StatusGuarded = "guarded"

type Participant struct {
	ID         string          `json:"participant_id"`
	Type       ParticipantType `json:"participant_type"`
	Name       string          `json:"name"`
	Ref        string          `json:"ref"`
	Initiative int             `json:"initiative"`
	Health     int             `json:"health"`
	MaxHealth  int             `json:"max_health"`
	Alive      bool            `json:"is_alive"`
	OrderIndex int             `json:"order_index"`
	Statuses   []string        `json:"statuses"`
}

func (p Participant) HasStatus(status string) bool {
	for _, s := range p.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Cursor is the scheduler position: Turn indexes TurnOrder().
type Cursor struct {
	Round int `json:"round"`
	Turn  int `json:"turn"`
}

type Session struct {
	ID           string        `json:"session_id"`
	CharacterID  string        `json:"character_id"`
	Status       Status        `json:"status"`
	Outcome      Outcome       `json:"outcome,omitempty"`
	Cursor       Cursor        `json:"cursor"`
	Seed         int64         `json:"seed"`
	Participants []Participant `json:"participants"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
}

func (s Session) Roster() *Roster {
	return NewRoster(s.Participants)
}

type ActionType string

const (
	ActionAttack ActionType = "attack"
	ActionBurst  ActionType = "burst"
	ActionHeal   ActionType = "heal"
	ActionDefend ActionType = "defend"
	ActionWait   ActionType = "wait"
	ActionFlee   ActionType = "flee"
)

type Action struct {
	Type      ActionType `json:"type"`
	TargetIDs []string   `json:"target_ids,omitempty"`
}

type EffectKind string

const (
	EffectDamage EffectKind = "damage"
	EffectMiss   EffectKind = "miss"
	EffectHeal   EffectKind = "heal"
	EffectStatus EffectKind = "status"
	EffectNone   EffectKind = "none"
	EffectFlee   EffectKind = "flee"
)

type Effect struct {
	Kind     EffectKind `json:"kind"`
	TargetID string     `json:"target_id,omitempty"`
	Amount   int        `json:"amount,omitempty"`
	Critical bool       `json:"critical,omitempty"`
	Status   string     `json:"status,omitempty"`
	Success  bool       `json:"success,omitempty"`
}

type LogEntry struct {
	SessionID   string     `json:"session_id"`
	Round       int        `json:"round"`
	ActionOrder int        `json:"action_order"`
	ActorID     string     `json:"actor_id"`
	TargetIDs   []string   `json:"target_ids"`
	ActionType  ActionType `json:"action_type"`
	Effects     []Effect   `json:"effects"`
	CreatedAt   time.Time  `json:"created_at"`
}

type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventDamageDealt         EventType = "damage_dealt"
	EventAttackMissed        EventType = "attack_missed"
	EventHealed              EventType = "healed"
	EventStatusApplied       EventType = "status_applied"
	EventParticipantDefeated EventType = "participant_defeated"
	EventFleeFailed          EventType = "flee_failed"
	EventTurnPassed          EventType = "turn_passed"
	EventTurnAdvanced        EventType = "turn_advanced"
	EventRoundAdvanced       EventType = "round_advanced"
	EventSessionEnded        EventType = "session_ended"
)

type Event struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id"`
	Type       EventType      `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Stats is the read-only combat profile served by the character/equipment lookup.
type Stats struct {
	Attack       int `json:"attack" mapstructure:"attack"`
	Defense      int `json:"defense" mapstructure:"defense"`
	Health       int `json:"health" mapstructure:"health"`
	Speed        int `json:"speed" mapstructure:"speed"`
	CritChance   int `json:"crit_chance" mapstructure:"crit_chance"`
	WeaponDamage int `json:"weapon_damage" mapstructure:"weapon_damage"`
	ImplantBonus int `json:"implant_bonus" mapstructure:"implant_bonus"`
}

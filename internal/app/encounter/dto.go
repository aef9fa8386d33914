package encounter

import "combatd/internal/domain/combat"

type OpponentSpec struct {
	Ref  string
	Type combat.ParticipantType
	Name string
}

type StartRequest struct {
	CharacterID string
	Opponents   []OpponentSpec
	// Seed fixes every roll of the session. Nil draws a fresh one.
	Seed *int64
}

type StartResponse struct {
	SessionID string          `json:"session_id"`
	Snapshot  combat.Snapshot `json:"snapshot"`
	Events    []combat.Event  `json:"events"`
}

type ActionRequest struct {
	SessionID string
	ActorID   string
	Action    combat.Action
}

type ActionResult struct {
	SessionID   string            `json:"session_id"`
	Round       int               `json:"round"`
	ActionOrder int               `json:"action_order"`
	ActorID     string            `json:"actor_id"`
	ActionType  combat.ActionType `json:"action_type"`
	Effects     []combat.Effect   `json:"effects"`
	Events      []combat.Event    `json:"events"`
	Snapshot    combat.Snapshot   `json:"snapshot"`
}

type FleeRequest struct {
	SessionID string
	ActorID   string
}

type FleeResult struct {
	ActionResult
	Escaped bool `json:"escaped"`
	Chance  int  `json:"chance"`
	Roll    int  `json:"roll"`
}

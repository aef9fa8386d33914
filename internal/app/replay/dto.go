package replay

import "combatd/internal/domain/combat"

type Request struct {
	SessionID string
	After     int64
	Limit     int
}

type Response struct {
	Events []combat.Event `json:"events"`
	// NextCursor is the id to pass as After on the next call.
	NextCursor int64 `json:"next_cursor"`
}

package model

import "time"

const TableNameCombatSession = "combat_sessions"

type CombatSession struct {
	SessionID   string     `gorm:"column:session_id;primaryKey" json:"session_id"`
	CharacterID string     `gorm:"column:character_id;not null;index:idx_combat_sessions_character" json:"character_id"`
	Status      string     `gorm:"column:status;not null" json:"status"`
	Outcome     string     `gorm:"column:outcome;not null;default:''" json:"outcome"`
	Round       int32      `gorm:"column:round;not null" json:"round"`
	Turn        int32      `gorm:"column:turn;not null" json:"turn"`
	Seed        int64      `gorm:"column:seed;not null" json:"seed"`
	Version     int64      `gorm:"column:version;not null" json:"version"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	EndedAt     *time.Time `gorm:"column:ended_at" json:"ended_at"`
}

func (*CombatSession) TableName() string {
	return TableNameCombatSession
}

const TableNameCombatParticipant = "combat_participants"

type CombatParticipant struct {
	SessionID       string `gorm:"column:session_id;primaryKey" json:"session_id"`
	ParticipantID   string `gorm:"column:participant_id;primaryKey" json:"participant_id"`
	ParticipantType string `gorm:"column:participant_type;not null" json:"participant_type"`
	Name            string `gorm:"column:name;not null" json:"name"`
	Ref             string `gorm:"column:ref;not null" json:"ref"`
	Initiative      int32  `gorm:"column:initiative;not null" json:"initiative"`
	Health          int32  `gorm:"column:health;not null" json:"health"`
	MaxHealth       int32  `gorm:"column:max_health;not null" json:"max_health"`
	IsAlive         bool   `gorm:"column:is_alive;not null" json:"is_alive"`
	OrderIndex      int32  `gorm:"column:order_index;not null" json:"order_index"`
	Statuses        []byte `gorm:"column:statuses" json:"statuses"`
}

func (*CombatParticipant) TableName() string {
	return TableNameCombatParticipant
}

const TableNameCombatLogEntry = "combat_log_entries"

type CombatLogEntry struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	SessionID   string    `gorm:"column:session_id;not null;uniqueIndex:ux_combat_log_order,priority:1" json:"session_id"`
	Round       int32     `gorm:"column:round;not null;uniqueIndex:ux_combat_log_order,priority:2" json:"round"`
	ActionOrder int32     `gorm:"column:action_order;not null;uniqueIndex:ux_combat_log_order,priority:3" json:"action_order"`
	ActorID     string    `gorm:"column:actor_id;not null" json:"actor_id"`
	TargetIDs   []byte    `gorm:"column:target_ids" json:"target_ids"`
	ActionType  string    `gorm:"column:action_type;not null" json:"action_type"`
	Effects     []byte    `gorm:"column:effects" json:"effects"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
}

func (*CombatLogEntry) TableName() string {
	return TableNameCombatLogEntry
}

const TableNameCombatEvent = "combat_events"

type CombatEvent struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	SessionID  string    `gorm:"column:session_id;not null;uniqueIndex:ux_combat_events_seq,priority:1" json:"session_id"`
	Seq        int64     `gorm:"column:seq;not null;uniqueIndex:ux_combat_events_seq,priority:2" json:"seq"`
	Type       string    `gorm:"column:type;not null" json:"type"`
	Payload    []byte    `gorm:"column:payload" json:"payload"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

func (*CombatEvent) TableName() string {
	return TableNameCombatEvent
}

package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"combatd/internal/adapter/repo/gorm/model"
	"combatd/internal/domain/combat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return EventRepo{db: db}
}

func (r EventRepo) Append(ctx context.Context, sessionID string, events []combat.Event) ([]combat.Event, error) {
	if len(events) == 0 {
		return []combat.Event{}, nil
	}
	db := getDBFromCtx(ctx, r.db)
	var last int64
	err := db.Model(&model.CombatEvent{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return nil, fmt.Errorf("read last event seq: %w", err)
	}

	rows := make([]model.CombatEvent, 0, len(events))
	out := make([]combat.Event, 0, len(events))
	for i, e := range events {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		e.ID = last + int64(i) + 1
		e.SessionID = sessionID
		rows = append(rows, model.CombatEvent{
			SessionID:  sessionID,
			Seq:        e.ID,
			Type:       string(e.Type),
			Payload:    b,
			OccurredAt: e.OccurredAt,
		})
		out = append(out, e)
	}
	if err := db.Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("append combat events: %w", err)
	}
	return out, nil
}

func (r EventRepo) ListSince(ctx context.Context, sessionID string, afterID int64, limit int) ([]combat.Event, error) {
	rows := []model.CombatEvent{}
	query := getDBFromCtx(ctx, r.db).
		Where("session_id = ? AND seq > ?", sessionID, afterID).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "seq"}}},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]combat.Event, 0, len(rows))
	for _, row := range rows {
		var payload map[string]any
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				return nil, fmt.Errorf("decode event payload %s/%d: %w", row.SessionID, row.Seq, err)
			}
		}
		out = append(out, combat.Event{
			ID:         row.Seq,
			SessionID:  row.SessionID,
			Type:       combat.EventType(row.Type),
			Payload:    payload,
			OccurredAt: row.OccurredAt,
		})
	}
	return out, nil
}

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

type CombatLogRepo struct {
	db *gorm.DB
}

func NewCombatLogRepo(db *gorm.DB) CombatLogRepo {
	return CombatLogRepo{db: db}
}

// Append reads the round's last action order and inserts the next one. The unique index on
// (session_id, round, action_order) rejects a concurrent writer that read the same value.
func (r CombatLogRepo) Append(ctx context.Context, entry combat.LogEntry) (int, error) {
	db := getDBFromCtx(ctx, r.db)
	var last int64
	err := db.Model(&model.CombatLogEntry{}).
		Where("session_id = ? AND round = ?", entry.SessionID, entry.Round).
		Select("COALESCE(MAX(action_order), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, fmt.Errorf("read last action order: %w", err)
	}
	targets, _ := json.Marshal(nonNil(entry.TargetIDs))
	effects, _ := json.Marshal(entry.Effects)
	row := model.CombatLogEntry{
		SessionID:   entry.SessionID,
		Round:       int32(entry.Round),
		ActionOrder: int32(last + 1),
		ActorID:     entry.ActorID,
		TargetIDs:   targets,
		ActionType:  string(entry.ActionType),
		Effects:     effects,
		CreatedAt:   entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("append combat log: %w", err)
	}
	return int(row.ActionOrder), nil
}

func (r CombatLogRepo) ListRound(ctx context.Context, sessionID string, round int) ([]combat.LogEntry, error) {
	return r.list(getDBFromCtx(ctx, r.db).Where("session_id = ? AND round = ?", sessionID, round))
}

func (r CombatLogRepo) ListAll(ctx context.Context, sessionID string) ([]combat.LogEntry, error) {
	return r.list(getDBFromCtx(ctx, r.db).Where("session_id = ?", sessionID))
}

func (r CombatLogRepo) list(query *gorm.DB) ([]combat.LogEntry, error) {
	rows := []model.CombatLogEntry{}
	err := query.Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "round"}},
		{Column: clause.Column{Name: "action_order"}},
	}}).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]combat.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := combat.LogEntry{
			SessionID:   row.SessionID,
			Round:       int(row.Round),
			ActionOrder: int(row.ActionOrder),
			ActorID:     row.ActorID,
			ActionType:  combat.ActionType(row.ActionType),
			CreatedAt:   row.CreatedAt,
		}
		if len(row.TargetIDs) > 0 {
			if err := json.Unmarshal(row.TargetIDs, &entry.TargetIDs); err != nil {
				return nil, fmt.Errorf("decode log targets %s/%d/%d: %w", row.SessionID, row.Round, row.ActionOrder, err)
			}
		}
		if len(row.Effects) > 0 {
			if err := json.Unmarshal(row.Effects, &entry.Effects); err != nil {
				return nil, fmt.Errorf("decode log effects %s/%d/%d: %w", row.SessionID, row.Round, row.ActionOrder, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

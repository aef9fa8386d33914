package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"combatd/internal/adapter/repo/gorm/model"
	"combatd/internal/app/ports"
	"combatd/internal/domain/combat"

	"gorm.io/gorm"
)

type SessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return SessionRepo{db: db}
}

func (r SessionRepo) Create(ctx context.Context, session combat.Session) error {
	db := getDBFromCtx(ctx, r.db)
	row := toSessionModel(session)
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return fmt.Errorf("create combat session: %w", err)
	}
	participants := make([]model.CombatParticipant, 0, len(session.Participants))
	for _, p := range session.Participants {
		participants = append(participants, toParticipantModel(session.ID, p))
	}
	if len(participants) > 0 {
		if err := db.Create(&participants).Error; err != nil {
			return fmt.Errorf("create combat participants: %w", err)
		}
	}
	return nil
}

func (r SessionRepo) Get(ctx context.Context, sessionID string) (combat.Session, error) {
	var row model.CombatSession
	if err := getDBFromCtx(ctx, r.db).Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return combat.Session{}, ports.ErrNotFound
		}
		return combat.Session{}, err
	}
	return r.load(ctx, row)
}

func (r SessionRepo) GetActiveByCharacter(ctx context.Context, characterID string) (combat.Session, error) {
	var row model.CombatSession
	err := getDBFromCtx(ctx, r.db).
		Where("character_id = ? AND status = ?", characterID, string(combat.StatusActive)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return combat.Session{}, ports.ErrNotFound
		}
		return combat.Session{}, err
	}
	return r.load(ctx, row)
}

func (r SessionRepo) SaveWithVersion(ctx context.Context, session combat.Session, expectedVersion int64) error {
	db := getDBFromCtx(ctx, r.db)
	res := db.Model(&model.CombatSession{}).
		Where("session_id = ? AND version = ?", session.ID, expectedVersion).
		Updates(map[string]any{
			"status":     string(session.Status),
			"outcome":    string(session.Outcome),
			"round":      int32(session.Cursor.Round),
			"turn":       int32(session.Cursor.Turn),
			"version":    session.Version,
			"updated_at": session.UpdatedAt,
			"ended_at":   session.EndedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&model.CombatSession{}).Where("session_id = ?", session.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ports.ErrNotFound
		}
		return ports.ErrConflict
	}

	for _, p := range session.Participants {
		statuses, _ := json.Marshal(nonNil(p.Statuses))
		err := db.Model(&model.CombatParticipant{}).
			Where("session_id = ? AND participant_id = ?", session.ID, p.ID).
			Updates(map[string]any{
				"health":   int32(p.Health),
				"is_alive": p.Alive,
				"statuses": statuses,
			}).Error
		if err != nil {
			return fmt.Errorf("update participant %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r SessionRepo) load(ctx context.Context, row model.CombatSession) (combat.Session, error) {
	var rows []model.CombatParticipant
	err := getDBFromCtx(ctx, r.db).
		Where("session_id = ?", row.SessionID).
		Order("order_index ASC").
		Find(&rows).Error
	if err != nil {
		return combat.Session{}, err
	}
	out := combat.Session{
		ID:          row.SessionID,
		CharacterID: row.CharacterID,
		Status:      combat.Status(row.Status),
		Outcome:     combat.Outcome(row.Outcome),
		Cursor:      combat.Cursor{Round: int(row.Round), Turn: int(row.Turn)},
		Seed:        row.Seed,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		EndedAt:     row.EndedAt,
	}
	out.Participants = make([]combat.Participant, 0, len(rows))
	for _, p := range rows {
		var statuses []string
		if len(p.Statuses) > 0 {
			if err := json.Unmarshal(p.Statuses, &statuses); err != nil {
				return combat.Session{}, fmt.Errorf("decode statuses of %s/%s: %w", row.SessionID, p.ParticipantID, err)
			}
		}
		out.Participants = append(out.Participants, combat.Participant{
			ID:         p.ParticipantID,
			Type:       combat.ParticipantType(p.ParticipantType),
			Name:       p.Name,
			Ref:        p.Ref,
			Initiative: int(p.Initiative),
			Health:     int(p.Health),
			MaxHealth:  int(p.MaxHealth),
			Alive:      p.IsAlive,
			OrderIndex: int(p.OrderIndex),
			Statuses:   statuses,
		})
	}
	return out, nil
}

func toSessionModel(s combat.Session) model.CombatSession {
	return model.CombatSession{
		SessionID:   s.ID,
		CharacterID: s.CharacterID,
		Status:      string(s.Status),
		Outcome:     string(s.Outcome),
		Round:       int32(s.Cursor.Round),
		Turn:        int32(s.Cursor.Turn),
		Seed:        s.Seed,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		EndedAt:     s.EndedAt,
	}
}

func toParticipantModel(sessionID string, p combat.Participant) model.CombatParticipant {
	statuses, _ := json.Marshal(nonNil(p.Statuses))
	return model.CombatParticipant{
		SessionID:       sessionID,
		ParticipantID:   p.ID,
		ParticipantType: string(p.Type),
		Name:            p.Name,
		Ref:             p.Ref,
		Initiative:      int32(p.Initiative),
		Health:          int32(p.Health),
		MaxHealth:       int32(p.MaxHealth),
		IsAlive:         p.Alive,
		OrderIndex:      int32(p.OrderIndex),
		Statuses:        statuses,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

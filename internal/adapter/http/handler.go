package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"combatd/internal/app/encounter"
	"combatd/internal/app/history"
	"combatd/internal/app/ports"
	"combatd/internal/app/replay"
	"combatd/internal/app/status"
	"combatd/internal/domain/combat"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
)

var errInvalidBody = errors.New("invalid request body")

var defaultValidate = validator.New()

type Handler struct {
	EncounterUC encounter.UseCase
	ReplayUC    replay.UseCase
	HistoryUC   history.UseCase
	StatusUC    status.UseCase
	KPI         kpiSnapshotProvider
	// AutoNPCTurns plays NPC and enemy turns after each player action and returns them as npc_turns.
	AutoNPCTurns bool
	// CORSOrigins lists the browser origins allowed to call the API; empty allows any.
	CORSOrigins []string
	Validate    *validator.Validate
	Logger      *slog.Logger
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(h.CORSOrigins))

	combatGroup := s.Group("/api/combat")
	combatGroup.POST("/start", h.start)
	combatGroup.POST("/action", h.action)
	combatGroup.POST("/flee", h.flee)
	combatGroup.GET("/events", h.events)
	combatGroup.GET("/status", h.status)
	combatGroup.GET("/log", h.log)

	s.GET("/ops/kpi", h.kpi)
}

type startRequest struct {
	CharacterID string            `json:"character_id" validate:"required,max=128"`
	Opponents   []opponentRequest `json:"opponents" validate:"required,min=1,dive"`
	Seed        *int64            `json:"seed,omitempty"`
}

type opponentRequest struct {
	Ref  string `json:"ref" validate:"required,max=128"`
	Type string `json:"type,omitempty" validate:"omitempty,oneof=ENEMY NPC enemy npc"`
	Name string `json:"name,omitempty" validate:"omitempty,max=64"`
}

type actionRequest struct {
	SessionID string        `json:"session_id" validate:"required"`
	ActorID   string        `json:"actor_id" validate:"required"`
	Action    actionPayload `json:"action"`
}

type actionPayload struct {
	Type      string   `json:"type" validate:"required"`
	TargetIDs []string `json:"target_ids,omitempty" validate:"omitempty,dive,required"`
}

type fleeRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	ActorID   string `json:"actor_id" validate:"required"`
}

type actionResponse struct {
	encounter.ActionResult
	NPCTurns []encounter.ActionResult `json:"npc_turns,omitempty"`
}

type fleeResponse struct {
	encounter.FleeResult
	NPCTurns []encounter.ActionResult `json:"npc_turns,omitempty"`
}

func (h Handler) start(c context.Context, ctx *app.RequestContext) {
	var body startRequest
	if !h.bind(ctx, &body) {
		return
	}

	req := encounter.StartRequest{CharacterID: body.CharacterID, Seed: body.Seed}
	for _, o := range body.Opponents {
		req.Opponents = append(req.Opponents, encounter.OpponentSpec{
			Ref:  o.Ref,
			Type: combat.ParticipantType(strings.ToUpper(o.Type)),
			Name: o.Name,
		})
	}
	resp, err := h.EncounterUC.Start(c, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, resp)
}

func (h Handler) action(c context.Context, ctx *app.RequestContext) {
	var body actionRequest
	if !h.bind(ctx, &body) {
		return
	}

	result, err := h.EncounterUC.SubmitAction(c, encounter.ActionRequest{
		SessionID: body.SessionID,
		ActorID:   body.ActorID,
		Action: combat.Action{
			Type:      combat.ActionType(body.Action.Type),
			TargetIDs: body.Action.TargetIDs,
		},
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, actionResponse{
		ActionResult: result,
		NPCTurns:     h.driveNPCTurns(c, result.SessionID),
	})
}

func (h Handler) flee(c context.Context, ctx *app.RequestContext) {
	var body fleeRequest
	if !h.bind(ctx, &body) {
		return
	}

	result, err := h.EncounterUC.Flee(c, encounter.FleeRequest{SessionID: body.SessionID, ActorID: body.ActorID})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, fleeResponse{
		FleeResult: result,
		NPCTurns:   h.driveNPCTurns(c, result.SessionID),
	})
}

// driveNPCTurns never fails the request: the player's turn is already committed.
func (h Handler) driveNPCTurns(c context.Context, sessionID string) []encounter.ActionResult {
	if !h.AutoNPCTurns {
		return nil
	}
	turns, err := h.EncounterUC.DriveNPCTurns(c, sessionID)
	if err != nil {
		h.logger().Warn("npc turns stopped", "session_id", sessionID, "played", len(turns), "error", err)
	}
	return turns
}

func (h Handler) events(c context.Context, ctx *app.RequestContext) {
	after, err := queryInt(ctx, "after")
	if err != nil {
		writeError(ctx, err)
		return
	}
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.ReplayUC.Execute(c, replay.Request{
		SessionID: string(ctx.Query("session_id")),
		After:     after,
		Limit:     int(limit),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) status(c context.Context, ctx *app.RequestContext) {
	resp, err := h.StatusUC.Execute(c, status.Request{
		SessionID:   string(ctx.Query("session_id")),
		CharacterID: string(ctx.Query("character_id")),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) log(c context.Context, ctx *app.RequestContext) {
	round, err := queryInt(ctx, "round")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.HistoryUC.Execute(c, history.Request{
		SessionID: string(ctx.Query("session_id")),
		Round:     int(round),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured", nil)
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

// bind decodes and validates the JSON body, writing the error response itself on failure.
func (h Handler) bind(ctx *app.RequestContext, out any) bool {
	if err := decodeJSON(ctx, out); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json", nil)
		return false
	}
	v := h.Validate
	if v == nil {
		v = defaultValidate
	}
	if err := v.Struct(out); err != nil {
		writeError(ctx, fmt.Errorf("%w: %s", errInvalidBody, validationMessage(err)))
		return false
	}
	return true
}

func (h Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func queryInt(ctx *app.RequestContext, key string) (int64, error) {
	raw := strings.TrimSpace(string(ctx.Query(key)))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidBody, key)
	}
	return v, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeError(ctx *app.RequestContext, err error) {
	extra := map[string]any{}
	var rejected *encounter.RejectedError
	if errors.As(err, &rejected) && rejected != nil {
		extra["snapshot"] = rejected.Snapshot
	}

	switch {
	case errors.Is(err, encounter.ErrCombatAlreadyActive):
		var active *encounter.CombatAlreadyActiveError
		if errors.As(err, &active) && active != nil && active.SessionID != "" {
			extra["session_id"] = active.SessionID
		}
		writeErrorBody(ctx, consts.StatusConflict, "combat_already_active", err.Error(), extra)
	case errors.Is(err, combat.ErrSessionNotActive):
		writeErrorBody(ctx, consts.StatusConflict, "session_not_active", err.Error(), extra)
	case errors.Is(err, combat.ErrNotActorsTurn):
		writeErrorBody(ctx, consts.StatusConflict, "not_actors_turn", err.Error(), extra)
	case errors.Is(err, combat.ErrTargetAlreadyDefeated):
		writeErrorBody(ctx, consts.StatusUnprocessableEntity, "target_already_defeated", err.Error(), extra)
	case errors.Is(err, combat.ErrInvalidTarget):
		writeErrorBody(ctx, consts.StatusUnprocessableEntity, "invalid_target", err.Error(), extra)
	case errors.Is(err, combat.ErrUnknownActor):
		writeErrorBody(ctx, consts.StatusUnprocessableEntity, "unknown_actor", err.Error(), extra)
	case errors.Is(err, combat.ErrInvalidAction):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_action", err.Error(), extra)
	case errors.Is(err, errInvalidBody),
		errors.Is(err, encounter.ErrInvalidRequest),
		errors.Is(err, replay.ErrInvalidRequest),
		errors.Is(err, history.ErrInvalidRequest),
		errors.Is(err, status.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error(), extra)
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error(), extra)
	case errors.Is(err, encounter.ErrEngineUnavailable):
		extra["retryable"] = true
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "engine_unavailable", "combat engine unavailable, retry", extra)
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string, extra map[string]any) {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	ctx.JSON(status, map[string]any{"error": body})
}

// Package scriptpolicy lets a Tengo script choose NPC and enemy actions.
//
// The script sees these globals:
//
//	actor     map of the acting participant
//	allies    array of living participants on the actor's side, actor excluded
//	opponents array of living participants on the other side
//	round     current round number
//
// and sets `action = {type: "attack", targets: ["enemy-1"]}`. Leaving action unset means wait.
package scriptpolicy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"combatd/internal/domain/combat"
)

const (
	defaultTimeout   = 250 * time.Millisecond
	defaultMaxAllocs = 100_000
)

type Policy struct {
	compiled *tengo.Compiled
	timeout  time.Duration
}

func Load(path string, timeout time.Duration) (*Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy script: %w", err)
	}
	return New(src, timeout)
}

func New(src []byte, timeout time.Duration) (*Policy, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := tengo.NewScript(src)
	s.SetImports(stdlib.GetModuleMap("math", "text", "rand"))
	s.SetMaxAllocs(defaultMaxAllocs)
	// placeholders, replaced on every run
	for name, v := range map[string]any{
		"actor":     map[string]any{},
		"allies":    []any{},
		"opponents": []any{},
		"round":     0,
		"action":    nil,
	} {
		if err := s.Add(name, v); err != nil {
			return nil, fmt.Errorf("declare %s: %w", name, err)
		}
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile policy script: %w", err)
	}
	return &Policy{compiled: compiled, timeout: timeout}, nil
}

func (p *Policy) SelectAction(ctx context.Context, snap combat.Snapshot, participantID string) (combat.Action, error) {
	actor, ok := snap.Participant(participantID)
	if !ok || !actor.Alive {
		return combat.Action{}, fmt.Errorf("%w: %s", combat.ErrUnknownActor, participantID)
	}
	allies, opponents := []any{}, []any{}
	for _, c := range snap.Participants {
		if !c.Alive || c.ID == actor.ID {
			continue
		}
		if c.Type.Allied() == actor.Type.Allied() {
			allies = append(allies, participantObject(c))
		} else {
			opponents = append(opponents, participantObject(c))
		}
	}

	run := p.compiled.Clone()
	for name, v := range map[string]any{
		"actor":     participantObject(actor),
		"allies":    allies,
		"opponents": opponents,
		"round":     snap.Round,
	} {
		if err := run.Set(name, v); err != nil {
			return combat.Action{}, fmt.Errorf("set %s: %w", name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := run.RunContext(runCtx); err != nil {
		return combat.Action{}, fmt.Errorf("run policy script: %w", err)
	}
	return decodeAction(run.Get("action"))
}

func participantObject(c combat.Participant) map[string]any {
	statuses := make([]any, 0, len(c.Statuses))
	for _, s := range c.Statuses {
		statuses = append(statuses, s)
	}
	return map[string]any{
		"id":         c.ID,
		"type":       string(c.Type),
		"name":       c.Name,
		"ref":        c.Ref,
		"health":     c.Health,
		"max_health": c.MaxHealth,
		"initiative": c.Initiative,
		"statuses":   statuses,
	}
}

func decodeAction(v *tengo.Variable) (combat.Action, error) {
	if v.IsUndefined() {
		return combat.Action{Type: combat.ActionWait}, nil
	}
	m := v.Map()
	if m == nil {
		return combat.Action{}, fmt.Errorf("%w: script action must be a map, got %s", combat.ErrInvalidAction, v.ValueType())
	}
	kind, _ := m["type"].(string)
	action := combat.Action{Type: combat.ActionType(strings.ToLower(strings.TrimSpace(kind)))}
	if action.Type == "" {
		return combat.Action{}, fmt.Errorf("%w: script action has no type", combat.ErrInvalidAction)
	}
	switch targets := m["targets"].(type) {
	case nil:
	case string:
		action.TargetIDs = []string{targets}
	case []any:
		for _, t := range targets {
			id, ok := t.(string)
			if !ok {
				return combat.Action{}, fmt.Errorf("%w: target ids must be strings", combat.ErrInvalidAction)
			}
			action.TargetIDs = append(action.TargetIDs, id)
		}
	default:
		return combat.Action{}, fmt.Errorf("%w: unsupported targets %T", combat.ErrInvalidAction, targets)
	}
	return action, nil
}

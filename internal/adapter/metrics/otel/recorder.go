// Package otel records combat KPIs as OpenTelemetry counters.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"combatd/internal/domain/combat"
)

const meterName = "combatd/encounter"

type Recorder struct {
	actions  metric.Int64Counter
	rejected metric.Int64Counter
	sessions metric.Int64Counter
	ended    metric.Int64Counter
}

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	actions, err := meter.Int64Counter("combat.actions",
		metric.WithDescription("Submitted combat actions by result."))
	if err != nil {
		return nil, fmt.Errorf("actions counter: %w", err)
	}
	rejected, err := meter.Int64Counter("combat.actions.rejected",
		metric.WithDescription("Rejected combat actions by reason."))
	if err != nil {
		return nil, fmt.Errorf("rejected counter: %w", err)
	}
	sessions, err := meter.Int64Counter("combat.sessions.started",
		metric.WithDescription("Combat sessions started."))
	if err != nil {
		return nil, fmt.Errorf("sessions counter: %w", err)
	}
	ended, err := meter.Int64Counter("combat.sessions.ended",
		metric.WithDescription("Combat sessions ended by outcome."))
	if err != nil {
		return nil, fmt.Errorf("ended counter: %w", err)
	}
	return &Recorder{actions: actions, rejected: rejected, sessions: sessions, ended: ended}, nil
}

// NewRecorderFromProvider is a convenience for callers holding a MeterProvider.
func NewRecorderFromProvider(mp metric.MeterProvider) (*Recorder, error) {
	return NewRecorder(mp.Meter(meterName))
}

func (r *Recorder) RecordSuccess(actionType combat.ActionType) {
	r.actions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("result", "success"),
		attribute.String("action_type", string(actionType)),
	))
}

func (r *Recorder) RecordRejected(reason string) {
	r.actions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "rejected")))
	r.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) RecordConflict() {
	r.actions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "conflict")))
}

func (r *Recorder) RecordFailure() {
	r.actions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "failure")))
}

func (r *Recorder) RecordStarted() {
	r.sessions.Add(context.Background(), 1)
}

func (r *Recorder) RecordEnded(outcome combat.Outcome) {
	r.ended.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

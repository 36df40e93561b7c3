// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PhaseExecutor executes one phase of the run and returns the next
// state. Phases mutate the workflow state only through its mutators.
type PhaseExecutor interface {
	// Execute runs the phase.
	Execute(ctx context.Context, ws *WorkflowState) (RunState, error)

	// Name returns the phase name.
	Name() string
}

// PhaseRegistry provides access to phase implementations.
type PhaseRegistry interface {
	// GetPhase returns the phase implementation for a state.
	GetPhase(state RunState) (PhaseExecutor, bool)
}

// Engine drives a refinement run through its state machine.
//
// The engine owns no population state; every run gets a fresh
// WorkflowState, so any failure leaves nothing behind for the next
// run to trip over.
//
// Thread Safety: Engine is safe for concurrent use; each Run builds
// its own state.
type Engine struct {
	stateMachine *StateMachine
	registry     PhaseRegistry
	rotation     *Rotation
	logger       *slog.Logger

	// timeout bounds the whole run. Zero means no limit. The deadline
	// rides on the run context, so in-flight collaborator calls are
	// cancelled with it; commits stay atomic, so a run never ends with
	// a half-committed response.
	timeout time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTimeout bounds the total run duration (0 = unlimited).
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// NewEngine creates an engine over the given phases and rotation.
//
// Inputs:
//
//	registry - Phase implementations for every non-terminal state
//	rotation - Backend rotation used to seed each run
//	opts - Configuration options
//
// Outputs:
//
//	*Engine - The configured engine
func NewEngine(registry PhaseRegistry, rotation *Rotation, opts ...EngineOption) *Engine {
	e := &Engine{
		stateMachine: NewStateMachine(),
		registry:     registry,
		rotation:     rotation,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one refinement run to completion.
//
// Description:
//
//	Builds a fresh WorkflowState, then repeatedly executes the phase
//	registered for the current state and transitions to the state that
//	phase returns, until a terminal state is reached. A phase error, a
//	deadline hit, or an edge absent from the transition table aborts
//	the run: the state moves to ERROR and the error is returned along
//	with the partial result for audit.
//
//	When override is non-nil the run skips difficulty classification
//	and uses the supplied configuration as-is (after validation).
//
// Inputs:
//
//	ctx - Context for cancellation
//	question - The question to refine
//	override - Optional pre-sized configuration; nil to classify
//
// Outputs:
//
//	*RunResult - The run outcome, including the audit population
//	error - Non-nil if the run aborted
func (e *Engine) Run(ctx context.Context, question string, override *RunConfig) (*RunResult, error) {
	ws, err := NewWorkflowState(question, e.rotation)
	if err != nil {
		return nil, err
	}
	if override != nil {
		if err := ws.SetConfig(*override); err != nil {
			return nil, err
		}
	}

	ctx, span := otel.Tracer("beamline/refine").Start(ctx, "refine.Run",
		trace.WithAttributes(
			attribute.String("run.id", ws.RunID()),
			attribute.Bool("run.config_override", override != nil),
		))
	defer span.End()

	e.logger.Info("refinement run starting",
		slog.String("run_id", ws.RunID()),
		slog.Int("question_len", len(question)),
		slog.Bool("config_override", override != nil),
	)

	if err := e.transition(ws, StateBootstrap); err != nil {
		return nil, err
	}

	// The deadline rides on the context so a hung collaborator call is
	// aborted too, not just noticed at the next phase boundary.
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			err = e.translateDeadline(ws, err)
			e.fail(ws, err)
			span.SetStatus(codes.Error, err.Error())
			return e.buildResult(ws, start), err
		}

		current := ws.Phase()
		if current.IsTerminal() {
			res := e.buildResult(ws, start)
			e.logger.Info("refinement run finished",
				slog.String("run_id", ws.RunID()),
				slog.String("state", current.String()),
				slog.Int("rounds", res.Rounds),
				slog.Int("llm_calls", res.LLMCalls),
				slog.Duration("duration", res.Duration),
			)
			return res, nil
		}

		phase, ok := e.registry.GetPhase(current)
		if !ok {
			err := fmt.Errorf("%w: %s", ErrPhaseNotFound, current)
			e.fail(ws, err)
			span.SetStatus(codes.Error, err.Error())
			return e.buildResult(ws, start), err
		}

		next, err := phase.Execute(ctx, ws)
		if err != nil {
			err = e.translateDeadline(ws, err)
			e.logger.Error("phase failed",
				slog.String("run_id", ws.RunID()),
				slog.String("phase", phase.Name()),
				slog.String("error", err.Error()),
			)
			e.fail(ws, err)
			span.SetStatus(codes.Error, err.Error())
			return e.buildResult(ws, start), err
		}

		if err := e.transition(ws, next); err != nil {
			e.fail(ws, err)
			span.SetStatus(codes.Error, err.Error())
			return e.buildResult(ws, start), err
		}
	}
}

// translateDeadline converts a run-deadline expiry, wherever it
// surfaced, into the run's TimeoutError. Caller cancellation is
// passed through untouched.
func (e *Engine) translateDeadline(ws *WorkflowState, err error) error {
	if e.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Phase: ws.Phase(), Limit: e.timeout}
	}
	return err
}

// transition attempts a state transition with logging.
func (e *Engine) transition(ws *WorkflowState, to RunState) error {
	from := ws.Phase()

	if err := e.stateMachine.Transition(ws, to); err != nil {
		e.logger.Error("state transition rejected",
			slog.String("run_id", ws.RunID()),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		return err
	}

	e.logger.Debug("state transition",
		slog.String("run_id", ws.RunID()),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("reason", e.stateMachine.TransitionReason(from, to)),
	)
	return nil
}

// fail moves the run to ERROR. Every non-terminal state has an ERROR
// edge so this cannot itself be rejected; a terminal state is left
// as-is.
func (e *Engine) fail(ws *WorkflowState, cause error) {
	if ws.Phase().IsTerminal() {
		return
	}
	if err := e.stateMachine.Transition(ws, StateError); err != nil {
		e.logger.Warn("failed to enter error state",
			slog.String("run_id", ws.RunID()),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Error("refinement run aborted",
		slog.String("run_id", ws.RunID()),
		slog.String("error", cause.Error()),
	)
}

// buildResult assembles the run result from the workflow state.
func (e *Engine) buildResult(ws *WorkflowState, start time.Time) *RunResult {
	return &RunResult{
		FinalText:  ws.FinalText(),
		Population: ws.Population(),
		State:      ws.Phase(),
		Rounds:     ws.Rounds(),
		LLMCalls:   ws.LLMCalls(),
		Duration:   time.Since(start),
	}
}

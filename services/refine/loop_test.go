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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePhase is a scriptable phase executor.
type fakePhase struct {
	name string
	fn   func(ctx context.Context, ws *WorkflowState) (RunState, error)
}

func (p *fakePhase) Name() string { return p.name }

func (p *fakePhase) Execute(ctx context.Context, ws *WorkflowState) (RunState, error) {
	return p.fn(ctx, ws)
}

// fakeRegistry maps states to fake phases.
type fakeRegistry map[RunState]PhaseExecutor

func (r fakeRegistry) GetPhase(state RunState) (PhaseExecutor, bool) {
	p, ok := r[state]
	return p, ok
}

func staticPhase(name string, next RunState) PhaseExecutor {
	return &fakePhase{name: name, fn: func(context.Context, *WorkflowState) (RunState, error) {
		return next, nil
	}}
}

func testRotation(t *testing.T) *Rotation {
	t.Helper()
	rot, err := NewRotation(DefaultRotationOrder())
	require.NoError(t, err)
	return rot
}

func TestEngine_RunToCompletion(t *testing.T) {
	registry := fakeRegistry{
		StateBootstrap: staticPhase("bootstrap", StateClassify),
		StateClassify:  staticPhase("classify", StateSelect),
		StateSelect:    staticPhase("select", StateRevise),
		StateRevise:    staticPhase("revise", StateConverge),
		StateConverge:  staticPhase("converge", StateAggregate),
		StateAggregate: &fakePhase{name: "aggregate", fn: func(_ context.Context, ws *WorkflowState) (RunState, error) {
			ws.SetFinalText("final answer")
			return StateComplete, nil
		}},
	}

	engine := NewEngine(registry, testRotation(t))
	result, err := engine.Run(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, "final answer", result.FinalText)
	assert.NotNil(t, result.Population)
}

func TestEngine_PhaseErrorAborts(t *testing.T) {
	boom := errors.New("judge unreachable")
	registry := fakeRegistry{
		StateBootstrap: &fakePhase{name: "bootstrap", fn: func(context.Context, *WorkflowState) (RunState, error) {
			return StateError, boom
		}},
	}

	engine := NewEngine(registry, testRotation(t))
	result, err := engine.Run(context.Background(), "question", nil)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, result, "partial result kept for audit")
	assert.Equal(t, StateError, result.State)
}

func TestEngine_InvalidTransitionAborts(t *testing.T) {
	// A phase returning a state with no configured edge is fatal.
	registry := fakeRegistry{
		StateBootstrap: staticPhase("bootstrap", StateComplete),
	}

	engine := NewEngine(registry, testRotation(t))
	result, err := engine.Run(context.Background(), "question", nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateError, result.State)
}

func TestEngine_MissingPhaseAborts(t *testing.T) {
	registry := fakeRegistry{}

	engine := NewEngine(registry, testRotation(t))
	result, err := engine.Run(context.Background(), "question", nil)
	require.ErrorIs(t, err, ErrPhaseNotFound)
	assert.Equal(t, StateError, result.State)
}

func TestEngine_TimeoutAborts(t *testing.T) {
	// A phase that outlives the deadline still lands its commit whole;
	// the run then aborts before the next phase starts.
	registry := fakeRegistry{
		StateBootstrap: &fakePhase{name: "bootstrap", fn: func(_ context.Context, ws *WorkflowState) (RunState, error) {
			time.Sleep(20 * time.Millisecond)
			if err := ws.AppendThread(scoredThread(BackendOpenAI, "a", 50)); err != nil {
				return StateError, err
			}
			return StateBootstrap, nil
		}},
	}

	engine := NewEngine(registry, testRotation(t), WithTimeout(10*time.Millisecond))
	result, err := engine.Run(context.Background(), "question", nil)
	require.Error(t, err)

	var terr *TimeoutError
	require.True(t, errors.As(err, &terr), "want TimeoutError, got %v", err)
	assert.Equal(t, StateError, result.State)

	// The committed thread survives whole; nothing half-written.
	require.Len(t, result.Population.Threads, 1)
	assert.True(t, result.Population.Threads[0].History[0].Scored)
}

func TestEngine_DeadlineReachesPhaseContext(t *testing.T) {
	// The run deadline rides on the context handed to phases, so a
	// blocked collaborator call is cancelled rather than waited out.
	var sawDeadline bool
	registry := fakeRegistry{
		StateBootstrap: &fakePhase{name: "bootstrap", fn: func(ctx context.Context, _ *WorkflowState) (RunState, error) {
			_, sawDeadline = ctx.Deadline()
			<-ctx.Done()
			return StateError, ctx.Err()
		}},
	}

	engine := NewEngine(registry, testRotation(t), WithTimeout(10*time.Millisecond))
	result, err := engine.Run(context.Background(), "question", nil)
	require.Error(t, err)
	assert.True(t, sawDeadline, "phase context must carry the run deadline")

	var terr *TimeoutError
	require.True(t, errors.As(err, &terr), "want TimeoutError, got %v", err)
	assert.Equal(t, StateBootstrap, terr.Phase)
	assert.Equal(t, StateError, result.State)
}

func TestEngine_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	registry := fakeRegistry{
		StateBootstrap: &fakePhase{name: "bootstrap", fn: func(context.Context, *WorkflowState) (RunState, error) {
			cancel()
			return StateBootstrap, nil
		}},
	}

	engine := NewEngine(registry, testRotation(t))
	result, err := engine.Run(ctx, "question", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateError, result.State)
}

func TestEngine_OverrideConfig(t *testing.T) {
	override := RunConfig{DifficultyTier: 3, ThreadCount: 7, BeamWidth: 3, RevisionBudget: 2}

	var sawClassified bool
	registry := fakeRegistry{
		StateBootstrap: &fakePhase{name: "bootstrap", fn: func(_ context.Context, ws *WorkflowState) (RunState, error) {
			sawClassified = ws.Classified()
			return StateError, errors.New("stop here")
		}},
	}

	engine := NewEngine(registry, testRotation(t))
	_, err := engine.Run(context.Background(), "question", &override)
	require.Error(t, err)
	assert.True(t, sawClassified, "override must mark the run classified before bootstrap")

	// An inconsistent override never starts the run.
	bad := RunConfig{DifficultyTier: 1, ThreadCount: 3, BeamWidth: 9, RevisionBudget: 1}
	_, err = engine.Run(context.Background(), "question", &bad)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %v", err)
}

func TestEngine_EmptyQuestion(t *testing.T) {
	engine := NewEngine(fakeRegistry{}, testRotation(t))
	_, err := engine.Run(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrEmptyQuestion)
}

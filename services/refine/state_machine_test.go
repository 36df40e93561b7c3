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
	"errors"
	"testing"
)

func TestStateMachine_ValidTransitions(t *testing.T) {
	sm := NewStateMachine()

	validTransitions := []struct {
		from RunState
		to   RunState
	}{
		// IDLE transitions
		{StateIdle, StateBootstrap},

		// BOOTSTRAP transitions
		{StateBootstrap, StateBootstrap},
		{StateBootstrap, StateClassify},
		{StateBootstrap, StateSelect},
		{StateBootstrap, StateError},

		// CLASSIFY transitions
		{StateClassify, StateBootstrap},
		{StateClassify, StateSelect},
		{StateClassify, StateError},

		// SELECT transitions
		{StateSelect, StateRevise},
		{StateSelect, StateError},

		// REVISE transitions
		{StateRevise, StateRevise},
		{StateRevise, StateConverge},
		{StateRevise, StateAggregate},
		{StateRevise, StateError},

		// CONVERGE transitions
		{StateConverge, StateSelect},
		{StateConverge, StateAggregate},
		{StateConverge, StateError},

		// AGGREGATE transitions
		{StateAggregate, StateComplete},
		{StateAggregate, StateError},
	}

	for _, tt := range validTransitions {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if !sm.CanTransition(tt.from, tt.to) {
				t.Errorf("expected transition %s -> %s to be valid", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	sm := NewStateMachine()

	invalidTransitions := []struct {
		from RunState
		to   RunState
	}{
		// Terminal states have no outgoing edges
		{StateComplete, StateIdle},
		{StateComplete, StateBootstrap},
		{StateComplete, StateError},
		{StateError, StateIdle},
		{StateError, StateBootstrap},
		{StateError, StateComplete},

		// Cannot skip phases
		{StateIdle, StateSelect},
		{StateIdle, StateRevise},
		{StateIdle, StateComplete},

		// Bootstrap cannot jump straight to revision or aggregation
		{StateBootstrap, StateRevise},
		{StateBootstrap, StateAggregate},
		{StateBootstrap, StateComplete},

		// Classification happens at most once
		{StateClassify, StateClassify},
		{StateSelect, StateClassify},
		{StateRevise, StateClassify},

		// Revision cannot skip back without a round boundary
		{StateRevise, StateSelect},
		{StateRevise, StateBootstrap},

		// Convergence only routes forward or to a new selection
		{StateConverge, StateRevise},
		{StateConverge, StateConverge},
		{StateConverge, StateComplete},

		// Aggregation is final work
		{StateAggregate, StateSelect},
		{StateAggregate, StateRevise},
	}

	for _, tt := range invalidTransitions {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if sm.CanTransition(tt.from, tt.to) {
				t.Errorf("expected transition %s -> %s to be invalid", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_ErrorReachableFromNonTerminal(t *testing.T) {
	sm := NewStateMachine()

	for _, state := range AllStates() {
		if state.IsTerminal() {
			continue
		}
		if !sm.CanTransition(state, StateError) {
			t.Errorf("expected %s -> ERROR to be valid", state)
		}
	}
}

func TestStateMachine_Transition(t *testing.T) {
	sm := NewStateMachine()
	rot, _ := NewRotation(DefaultRotationOrder())

	ws, err := NewWorkflowState("what is the airspeed of an unladen swallow", rot)
	if err != nil {
		t.Fatalf("NewWorkflowState: %v", err)
	}
	if got := ws.Phase(); got != StateIdle {
		t.Fatalf("initial phase = %s, want IDLE", got)
	}

	if err := sm.Transition(ws, StateBootstrap); err != nil {
		t.Fatalf("IDLE -> BOOTSTRAP should succeed: %v", err)
	}
	if got := ws.Phase(); got != StateBootstrap {
		t.Errorf("phase = %s after transition, want BOOTSTRAP", got)
	}

	err = sm.Transition(ws, StateComplete)
	if err == nil {
		t.Fatal("BOOTSTRAP -> COMPLETE should be rejected")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	if got := ws.Phase(); got != StateBootstrap {
		t.Errorf("phase = %s after rejected transition, want BOOTSTRAP unchanged", got)
	}
}

func TestStateMachine_ValidTransitionsFrom(t *testing.T) {
	sm := NewStateMachine()

	targets := sm.ValidTransitionsFrom(StateConverge)
	want := map[RunState]bool{StateSelect: true, StateAggregate: true, StateError: true}
	if len(targets) != len(want) {
		t.Fatalf("ValidTransitionsFrom(CONVERGE) = %v, want %d targets", targets, len(want))
	}
	for _, s := range targets {
		if !want[s] {
			t.Errorf("unexpected target %s from CONVERGE", s)
		}
	}

	if got := sm.ValidTransitionsFrom(StateComplete); len(got) != 0 {
		t.Errorf("COMPLETE should have no outgoing transitions, got %v", got)
	}
}

func TestStateMachine_TransitionReason(t *testing.T) {
	sm := NewStateMachine()

	if got := sm.TransitionReason(StateRevise, StateAggregate); got != "Revision budget exhausted" {
		t.Errorf("TransitionReason(REVISE, AGGREGATE) = %q", got)
	}
	if got := sm.TransitionReason(StateComplete, StateIdle); got != "Unknown transition" {
		t.Errorf("TransitionReason for unknown edge = %q", got)
	}
}

func TestRunState_IsTerminal(t *testing.T) {
	for _, state := range AllStates() {
		want := state == StateComplete || state == StateError
		if got := state.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", state, got, want)
		}
	}
}

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
	"fmt"
	"sync"
)

// StateMachine manages valid state transitions for the refinement run.
//
// The state machine enforces the following transition graph:
//
//	IDLE → BOOTSTRAP             : Question received
//	BOOTSTRAP → BOOTSTRAP        : Population below target size
//	BOOTSTRAP → CLASSIFY         : Initial threads scored, difficulty unknown
//	BOOTSTRAP → SELECT           : Population reached configured size
//	CLASSIFY → BOOTSTRAP         : Configured size exceeds current population
//	CLASSIFY → SELECT            : Bootstrap already satisfies configured size
//	SELECT → REVISE              : Beam selected and population refilled
//	REVISE → REVISE              : Thread committed, more threads this round
//	REVISE → CONVERGE            : Round complete
//	REVISE → AGGREGATE           : Revision budget exhausted
//	CONVERGE → SELECT            : Judge wants another round
//	CONVERGE → AGGREGATE         : Judge declared convergence
//	AGGREGATE → COMPLETE         : Final answer assembled
//	* → ERROR                    : Any state can transition to ERROR
//
// A phase returning a state with no configured edge aborts the run:
// Transition returns ErrInvalidTransition and the engine treats it as
// fatal.
//
// Thread Safety:
//
//	StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps (from, to) pairs that are valid.
	transitions map[RunState]map[RunState]bool
}

// NewStateMachine creates a new state machine with all valid transitions.
//
// Outputs:
//
//	*StateMachine - Configured state machine
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[RunState]map[RunState]bool),
	}

	// Initialize all states with empty transition maps
	for _, state := range AllStates() {
		sm.transitions[state] = make(map[RunState]bool)
	}

	// Define valid transitions
	sm.addTransition(StateIdle, StateBootstrap)

	sm.addTransition(StateBootstrap, StateBootstrap)
	sm.addTransition(StateBootstrap, StateClassify)
	sm.addTransition(StateBootstrap, StateSelect)

	sm.addTransition(StateClassify, StateBootstrap)
	sm.addTransition(StateClassify, StateSelect)

	sm.addTransition(StateSelect, StateRevise)

	sm.addTransition(StateRevise, StateRevise)
	sm.addTransition(StateRevise, StateConverge)
	sm.addTransition(StateRevise, StateAggregate)

	sm.addTransition(StateConverge, StateSelect)
	sm.addTransition(StateConverge, StateAggregate)

	sm.addTransition(StateAggregate, StateComplete)

	// ERROR is reachable from every non-terminal state
	for _, state := range AllStates() {
		if !state.IsTerminal() {
			sm.addTransition(state, StateError)
		}
	}

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to RunState) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition from one state to another is valid.
//
// Inputs:
//
//	from - Current state
//	to - Target state
//
// Outputs:
//
//	bool - True if the transition is valid
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to RunState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition attempts to move the workflow from its current state to
// the target state.
//
// Description:
//
//	Validates the transition and updates the workflow state if valid.
//	Returns an error if the transition is not allowed.
//
// Inputs:
//
//	ws - The workflow state to transition
//	to - Target state
//
// Outputs:
//
//	error - ErrInvalidTransition if transition not allowed
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) Transition(ws *WorkflowState, to RunState) error {
	from := ws.Phase()

	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	ws.setPhase(to)
	return nil
}

// ValidTransitionsFrom returns all valid transitions from a given state.
//
// Inputs:
//
//	from - The source state
//
// Outputs:
//
//	[]RunState - All valid target states
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) ValidTransitionsFrom(from RunState) []RunState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []RunState
	if toMap, ok := sm.transitions[from]; ok {
		for state, valid := range toMap {
			if valid {
				result = append(result, state)
			}
		}
	}
	return result
}

// TransitionReason provides a human-readable description of a transition.
//
// Inputs:
//
//	from - Source state
//	to - Target state
//
// Outputs:
//
//	string - Description of why this transition occurs
func (sm *StateMachine) TransitionReason(from, to RunState) string {
	key := from.String() + "->" + to.String()

	reasons := map[string]string{
		"IDLE->BOOTSTRAP":      "Question received",
		"BOOTSTRAP->BOOTSTRAP": "Population below target size",
		"BOOTSTRAP->CLASSIFY":  "Initial threads scored, difficulty unknown",
		"BOOTSTRAP->SELECT":    "Population reached configured size",
		"CLASSIFY->BOOTSTRAP":  "Configured size exceeds current population",
		"CLASSIFY->SELECT":     "Bootstrap already satisfies configured size",
		"SELECT->REVISE":       "Beam selected and population refilled",
		"REVISE->REVISE":       "Thread committed, more threads this round",
		"REVISE->CONVERGE":     "Round complete",
		"REVISE->AGGREGATE":    "Revision budget exhausted",
		"CONVERGE->SELECT":     "Judge wants another round",
		"CONVERGE->AGGREGATE":  "Judge declared convergence",
		"AGGREGATE->COMPLETE":  "Final answer assembled",
	}

	if reason, ok := reasons[key]; ok {
		return reason
	}
	if to == StateError {
		return "Unrecoverable failure"
	}
	return "Unknown transition"
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generate runs the per-call generation subgraph.
//
// One subgraph run drives a single backend through an LLM/tool loop
// and a final summarization: the backend is invoked with the
// accumulated message trace, requested tool calls are executed and
// fed back to the same backend, and once the backend answers without
// tool calls the whole reasoning trace is condensed into one final
// answer text.
//
// The subgraph is a small state machine: INVOKING, DECIDING,
// EXECUTING_TOOLS, SUMMARIZING, DONE.
package generate

import "fmt"

// CallState is a state in the generation subgraph.
type CallState string

const (
	// StateInvoking sends the accumulated trace to the backend.
	StateInvoking CallState = "INVOKING"

	// StateDeciding routes on whether the backend requested tools.
	StateDeciding CallState = "DECIDING"

	// StateExecutingTools runs requested tool calls and feeds the
	// results back to the same backend.
	StateExecutingTools CallState = "EXECUTING_TOOLS"

	// StateSummarizing condenses the trace into one final answer.
	StateSummarizing CallState = "SUMMARIZING"

	// StateDone is the terminal state.
	StateDone CallState = "DONE"
)

// String returns the string representation of the state.
func (s CallState) String() string {
	return string(s)
}

// callTransitions is the subgraph's transition table.
var callTransitions = map[CallState]map[CallState]bool{
	StateInvoking:       {StateDeciding: true},
	StateDeciding:       {StateExecutingTools: true, StateSummarizing: true},
	StateExecutingTools: {StateInvoking: true},
	StateSummarizing:    {StateDone: true},
	StateDone:           {},
}

// advance validates and performs a subgraph transition.
func advance(from, to CallState) (CallState, error) {
	if !callTransitions[from][to] {
		return from, fmt.Errorf("invalid generation transition: %s -> %s", from, to)
	}
	return to, nil
}

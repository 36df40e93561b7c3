// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refine implements a population-based refinement search over
// LLM reasoning threads.
//
// A run bootstraps initial answers across a rotating set of generation
// backends, critiques and scores each one, classifies the question's
// difficulty to size the search, then loops {beam-select, revise,
// re-critique, re-score} until a convergence judgment halts the loop
// and an aggregator merges the surviving threads into one answer.
//
// The run is driven by a finite state machine with phases: IDLE,
// BOOTSTRAP, CLASSIFY, SELECT, REVISE, CONVERGE, AGGREGATE, COMPLETE,
// and ERROR.
//
// Thread Safety:
//
//	WorkflowState is protected by internal synchronization. Population
//	and ResponseThread are owned by a single run and must not be
//	mutated outside the WorkflowState mutators.
package refine

import (
	"time"

	"github.com/google/uuid"
)

// RunState represents a state in the refinement run state machine.
//
// Valid state transitions are enforced by the state machine. Invalid
// transitions return ErrInvalidTransition.
type RunState string

const (
	// StateIdle is the initial state before a question is received.
	StateIdle RunState = "IDLE"

	// StateBootstrap generates and scores initial response threads.
	StateBootstrap RunState = "BOOTSTRAP"

	// StateClassify determines question difficulty and sizes the run.
	StateClassify RunState = "CLASSIFY"

	// StateSelect keeps the best-scoring threads and refills by cloning.
	StateSelect RunState = "SELECT"

	// StateRevise drives one revision pass over the population.
	StateRevise RunState = "REVISE"

	// StateConverge asks the judge whether another round would help.
	StateConverge RunState = "CONVERGE"

	// StateAggregate merges surviving threads into one final answer.
	StateAggregate RunState = "AGGREGATE"

	// StateComplete indicates successful completion.
	StateComplete RunState = "COMPLETE"

	// StateError indicates an unrecoverable error occurred.
	StateError RunState = "ERROR"
)

// String returns the string representation of the state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the state is a terminal state (COMPLETE or ERROR).
func (s RunState) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

// AllStates returns all valid run states.
func AllStates() []RunState {
	return []RunState{
		StateIdle,
		StateBootstrap,
		StateClassify,
		StateSelect,
		StateRevise,
		StateConverge,
		StateAggregate,
		StateComplete,
		StateError,
	}
}

// BackendID identifies a generation backend in the rotation.
type BackendID string

const (
	// BackendOpenAI is the OpenAI chat-completions backend.
	BackendOpenAI BackendID = "openai"

	// BackendAnthropic is the Anthropic messages backend.
	BackendAnthropic BackendID = "anthropic"

	// BackendMistral is the Mistral chat-completions backend.
	BackendMistral BackendID = "mistral"
)

// String returns the string representation of the backend identifier.
func (b BackendID) String() string {
	return string(b)
}

// AgentResponse is one fully-processed answer in a thread's history.
//
// Responses are committed to a thread only as a whole: text, critique
// comments, and score are attached before the entry becomes visible to
// routing. Scored marks that the critique/score steps completed.
type AgentResponse struct {
	// Text is the answer produced by the generation backend.
	Text string `json:"text"`

	// Comments is the critique attached by the commenter judge.
	Comments string `json:"comments"`

	// Score is the judge's quality score for Text, typically 0-100.
	Score float64 `json:"score"`

	// Scored is true once the critique and score steps completed.
	Scored bool `json:"scored"`
}

// ResponseThread is one line of reasoning evolving across revision
// rounds. History[0] is the initial bootstrap response; every later
// entry is a revision of its predecessor.
type ResponseThread struct {
	// ID uniquely identifies the thread. Clones get fresh IDs.
	ID string `json:"id"`

	// AgentIdentity is the backend that produced History[0]. Revisions
	// are always sent to this same backend.
	AgentIdentity BackendID `json:"agent_identity"`

	// History holds every committed response, oldest first. It never
	// shrinks.
	History []AgentResponse `json:"history"`
}

// NewResponseThread creates a thread seeded with one initial response.
func NewResponseThread(identity BackendID, initial AgentResponse) *ResponseThread {
	return &ResponseThread{
		ID:            uuid.NewString(),
		AgentIdentity: identity,
		History:       []AgentResponse{initial},
	}
}

// Latest returns the most recent committed response.
//
// Outputs:
//
//	AgentResponse - The last history entry
//	bool - False if the history is empty
func (t *ResponseThread) Latest() (AgentResponse, bool) {
	if len(t.History) == 0 {
		return AgentResponse{}, false
	}
	return t.History[len(t.History)-1], true
}

// Clone returns a deep copy of the thread with a fresh ID.
//
// The copy shares no mutable state with the original: appending to or
// modifying the clone's history never affects the source thread.
func (t *ResponseThread) Clone() *ResponseThread {
	history := make([]AgentResponse, len(t.History))
	copy(history, t.History)
	return &ResponseThread{
		ID:            uuid.NewString(),
		AgentIdentity: t.AgentIdentity,
		History:       history,
	}
}

// Population is the set of threads alive in the current round plus an
// audit trail of every thread discarded by selection.
type Population struct {
	// Threads are the live threads, in selection order.
	Threads []*ResponseThread `json:"threads"`

	// Discarded accumulates threads dropped by selection. Append-only.
	Discarded []*ResponseThread `json:"discarded"`
}

// RunConfig sizes a refinement run. Produced by ConfigForTier or
// supplied directly as an override.
type RunConfig struct {
	// DifficultyTier is the classified difficulty, 1 (easy) to 4 (hard).
	DifficultyTier int `json:"difficulty_tier" validate:"min=1,max=4"`

	// ThreadCount is the population size maintained during revision.
	ThreadCount int `json:"thread_count" validate:"min=1"`

	// BeamWidth is how many threads survive each selection.
	BeamWidth int `json:"beam_width" validate:"min=1"`

	// RevisionBudget is the maximum number of revision rounds.
	RevisionBudget int `json:"revision_budget" validate:"min=0"`
}

// RunResult is the outcome of a completed run. The population is
// retained, including discarded threads, for audit.
type RunResult struct {
	// FinalText is the aggregated answer.
	FinalText string `json:"final_text"`

	// Population is the full population at the end of the run.
	Population *Population `json:"population"`

	// State is the terminal state the run reached.
	State RunState `json:"state"`

	// Rounds is the number of completed revision rounds.
	Rounds int `json:"rounds"`

	// LLMCalls is the number of collaborator calls made.
	LLMCalls int `json:"llm_calls"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

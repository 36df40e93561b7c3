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

	"github.com/google/uuid"
)

// WorkflowState is the mutable state of one refinement run.
//
// All writes go through mutator methods so the run invariants hold at
// every observation point: thread histories never shrink, a response
// is committed whole or not at all, and the cursor resets exactly when
// a round begins.
//
// Thread Safety:
//
//	WorkflowState is safe for concurrent use.
type WorkflowState struct {
	mu sync.RWMutex

	runID    string
	question string
	rotation *Rotation

	phase      RunState
	config     RunConfig
	classified bool

	pop    *Population
	cursor int
	staged map[int]AgentResponse

	rounds    int
	llmCalls  int
	finalText string
}

// NewWorkflowState creates the state for a fresh run in IDLE.
//
// Inputs:
//
//	question - The question to refine; must not be empty
//	rotation - Backend rotation for bootstrap assignment
//
// Outputs:
//
//	*WorkflowState - Initialized state
//	error - ErrEmptyQuestion if the question is blank
func NewWorkflowState(question string, rotation *Rotation) (*WorkflowState, error) {
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if rotation == nil || rotation.Len() == 0 {
		return nil, ErrEmptyRotation
	}
	return &WorkflowState{
		runID:    uuid.NewString(),
		question: question,
		rotation: rotation,
		phase:    StateIdle,
		pop:      &Population{},
	}, nil
}

// RunID returns the unique identifier of this run.
func (ws *WorkflowState) RunID() string {
	return ws.runID
}

// Question returns the question under refinement.
func (ws *WorkflowState) Question() string {
	return ws.question
}

// Rotation returns the backend rotation for this run.
func (ws *WorkflowState) Rotation() *Rotation {
	return ws.rotation
}

// Phase returns the current run phase.
func (ws *WorkflowState) Phase() RunState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.phase
}

// setPhase records the new phase. Transitions are validated by the
// state machine; this is the commit half.
func (ws *WorkflowState) setPhase(phase RunState) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.phase = phase
}

// Config returns the current run configuration. The zero value means
// the run has not been classified or overridden yet.
func (ws *WorkflowState) Config() RunConfig {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.config
}

// SetConfig installs a validated run configuration and marks the run
// classified.
//
// Outputs:
//
//	error - ConfigError if the configuration is inconsistent
func (ws *WorkflowState) SetConfig(cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.config = cfg
	ws.classified = true
	return nil
}

// Classified reports whether the run configuration has been set.
func (ws *WorkflowState) Classified() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.classified
}

// Population returns the run's population. Callers must mutate it only
// through WorkflowState mutators or the selection phase.
func (ws *WorkflowState) Population() *Population {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.pop
}

// AppendThread adds a freshly bootstrapped thread to the population.
//
// Outputs:
//
//	error - If the thread's initial response is not fully scored
func (ws *WorkflowState) AppendThread(t *ResponseThread) error {
	latest, ok := t.Latest()
	if !ok || !latest.Scored {
		return fmt.Errorf("thread %s: initial response not fully scored", t.ID)
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.pop.Threads = append(ws.pop.Threads, t)
	return nil
}

// Cursor returns the index of the next thread to revise this round.
func (ws *WorkflowState) Cursor() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.cursor
}

// BeginRound resets the cursor to the first thread and drops any
// staged results from the previous round. Called exactly once per
// selection, before revision starts.
func (ws *WorkflowState) BeginRound() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.cursor = 0
	ws.staged = nil
}

// StageRound caches prefetched revision results for the current
// round, keyed by cursor position. The cache lives on the run's own
// state, so concurrent runs never see each other's staged results.
func (ws *WorkflowState) StageRound(resps []AgentResponse) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.staged = make(map[int]AgentResponse, len(resps))
	for i, resp := range resps {
		ws.staged[i] = resp
	}
}

// StagedRevision returns the prefetched result for a cursor position.
//
// Outputs:
//
//	AgentResponse - The staged result
//	bool - False if nothing is staged for that position
func (ws *WorkflowState) StagedRevision(cursor int) (AgentResponse, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	resp, ok := ws.staged[cursor]
	return resp, ok
}

// CommitRevision appends a complete response to the thread at the
// cursor and advances the cursor.
//
// Description:
//
//	The commit is all-or-nothing: the response must already carry its
//	critique and score. A partially-processed response is rejected and
//	nothing is appended.
//
// Outputs:
//
//	error - If the cursor is out of range or the response is unscored
func (ws *WorkflowState) CommitRevision(resp AgentResponse) error {
	if !resp.Scored {
		return fmt.Errorf("revision commit rejected: response not fully scored")
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.cursor >= len(ws.pop.Threads) {
		return fmt.Errorf("revision commit rejected: cursor %d outside population %d", ws.cursor, len(ws.pop.Threads))
	}
	t := ws.pop.Threads[ws.cursor]
	t.History = append(t.History, resp)
	ws.cursor++
	return nil
}

// RoundComplete reports whether every thread has been revised this
// round.
func (ws *WorkflowState) RoundComplete() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.cursor >= len(ws.pop.Threads)
}

// IncrementRounds records one completed revision round.
func (ws *WorkflowState) IncrementRounds() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.rounds++
}

// Rounds returns the number of completed revision rounds.
func (ws *WorkflowState) Rounds() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.rounds
}

// AddLLMCalls adds to the collaborator call counter.
func (ws *WorkflowState) AddLLMCalls(n int) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.llmCalls += n
}

// LLMCalls returns the number of collaborator calls made so far.
func (ws *WorkflowState) LLMCalls() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.llmCalls
}

// SetFinalText records the aggregated answer.
func (ws *WorkflowState) SetFinalText(text string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.finalText = text
}

// FinalText returns the aggregated answer, if aggregation has run.
func (ws *WorkflowState) FinalText() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.finalText
}

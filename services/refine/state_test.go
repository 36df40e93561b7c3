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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *WorkflowState {
	t.Helper()
	rot, err := NewRotation(DefaultRotationOrder())
	require.NoError(t, err)
	ws, err := NewWorkflowState("why is the sky blue", rot)
	require.NoError(t, err)
	return ws
}

func TestNewWorkflowState_Validation(t *testing.T) {
	rot, err := NewRotation(DefaultRotationOrder())
	require.NoError(t, err)

	_, err = NewWorkflowState("", rot)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = NewWorkflowState("question", nil)
	assert.ErrorIs(t, err, ErrEmptyRotation)

	ws, err := NewWorkflowState("question", rot)
	require.NoError(t, err)
	assert.NotEmpty(t, ws.RunID())
	assert.Equal(t, StateIdle, ws.Phase())
	assert.False(t, ws.Classified())
}

func TestWorkflowState_SetConfig(t *testing.T) {
	ws := newTestState(t)

	err := ws.SetConfig(RunConfig{DifficultyTier: 1, ThreadCount: 3, BeamWidth: 7, RevisionBudget: 1})
	require.Error(t, err, "inconsistent config must be rejected")
	assert.False(t, ws.Classified())

	cfg, err := ConfigForTier(2)
	require.NoError(t, err)
	require.NoError(t, ws.SetConfig(cfg))
	assert.True(t, ws.Classified())
	assert.Equal(t, cfg, ws.Config())
}

func TestWorkflowState_AppendThread_RequiresScored(t *testing.T) {
	ws := newTestState(t)

	err := ws.AppendThread(NewResponseThread(BackendOpenAI, AgentResponse{Text: "draft"}))
	require.Error(t, err, "unscored initial response must be rejected")
	assert.Empty(t, ws.Population().Threads)

	require.NoError(t, ws.AppendThread(scoredThread(BackendOpenAI, "a", 50)))
	assert.Len(t, ws.Population().Threads, 1)
}

func TestWorkflowState_CommitRevision(t *testing.T) {
	ws := newTestState(t)
	require.NoError(t, ws.AppendThread(scoredThread(BackendOpenAI, "a", 50)))
	require.NoError(t, ws.AppendThread(scoredThread(BackendAnthropic, "b", 60)))
	ws.BeginRound()

	// Unscored commit is rejected whole: no append, no cursor move.
	err := ws.CommitRevision(AgentResponse{Text: "partial"})
	require.Error(t, err)
	assert.Equal(t, 0, ws.Cursor())
	assert.Len(t, ws.Population().Threads[0].History, 1)

	require.NoError(t, ws.CommitRevision(AgentResponse{Text: "a2", Comments: "better", Score: 70, Scored: true}))
	assert.Equal(t, 1, ws.Cursor())
	assert.Len(t, ws.Population().Threads[0].History, 2)
	assert.False(t, ws.RoundComplete())

	require.NoError(t, ws.CommitRevision(AgentResponse{Text: "b2", Comments: "ok", Score: 65, Scored: true}))
	assert.True(t, ws.RoundComplete())

	// Past the end of the round the commit is rejected.
	err = ws.CommitRevision(AgentResponse{Text: "c", Scored: true})
	require.Error(t, err)
}

func TestWorkflowState_BeginRoundResetsCursor(t *testing.T) {
	ws := newTestState(t)
	require.NoError(t, ws.AppendThread(scoredThread(BackendOpenAI, "a", 50)))
	ws.BeginRound()
	require.NoError(t, ws.CommitRevision(AgentResponse{Text: "a2", Score: 51, Scored: true}))
	require.True(t, ws.RoundComplete())

	ws.BeginRound()
	assert.Equal(t, 0, ws.Cursor())
	assert.False(t, ws.RoundComplete())
}

func TestWorkflowState_Counters(t *testing.T) {
	ws := newTestState(t)

	ws.AddLLMCalls(3)
	ws.AddLLMCalls(2)
	assert.Equal(t, 5, ws.LLMCalls())

	ws.IncrementRounds()
	ws.IncrementRounds()
	assert.Equal(t, 2, ws.Rounds())

	ws.SetFinalText("the answer")
	assert.Equal(t, "the answer", ws.FinalText())
}

func TestResponseThread_Latest(t *testing.T) {
	th := &ResponseThread{}
	_, ok := th.Latest()
	assert.False(t, ok)

	th = scoredThread(BackendMistral, "v1", 10)
	th.History = append(th.History, AgentResponse{Text: "v2", Score: 20, Scored: true})
	latest, ok := th.Latest()
	require.True(t, ok)
	assert.Equal(t, "v2", latest.Text)
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoredThread builds a thread whose latest entry carries the given
// text and score.
func scoredThread(identity BackendID, text string, score float64) *ResponseThread {
	return NewResponseThread(identity, AgentResponse{
		Text:     text,
		Comments: "comments on " + text,
		Score:    score,
		Scored:   true,
	})
}

func TestSelect_KeepAllNoReplication(t *testing.T) {
	// beamWidth == threadCount: every thread survives, nothing cloned.
	pop := &Population{Threads: []*ResponseThread{
		scoredThread(BackendOpenAI, "a", 62),
		scoredThread(BackendAnthropic, "b", 85),
		scoredThread(BackendMistral, "c", 41),
	}}

	require.NoError(t, Select(context.Background(), pop, 3, 3))

	require.Len(t, pop.Threads, 3)
	assert.Empty(t, pop.Discarded)

	// Sorted best-first, no new IDs.
	assert.Equal(t, "b", pop.Threads[0].History[0].Text)
	assert.Equal(t, "a", pop.Threads[1].History[0].Text)
	assert.Equal(t, "c", pop.Threads[2].History[0].Text)
}

func TestSelect_DiscardAndRefill(t *testing.T) {
	// Five threads scored [9,8,7,6,5], beam width 3: the two worst are
	// discarded and the two best are cloned once each, appended after
	// the survivors.
	a := scoredThread(BackendOpenAI, "a", 9)
	b := scoredThread(BackendAnthropic, "b", 8)
	c := scoredThread(BackendMistral, "c", 7)
	d := scoredThread(BackendOpenAI, "d", 6)
	e := scoredThread(BackendAnthropic, "e", 5)
	pop := &Population{Threads: []*ResponseThread{c, a, e, b, d}}

	require.NoError(t, Select(context.Background(), pop, 3, 5))

	require.Len(t, pop.Threads, 5)
	texts := make([]string, 0, 5)
	for _, th := range pop.Threads {
		texts = append(texts, th.History[0].Text)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, texts)

	// Originals keep their IDs; clones get fresh ones.
	assert.Equal(t, a.ID, pop.Threads[0].ID)
	assert.Equal(t, b.ID, pop.Threads[1].ID)
	assert.Equal(t, c.ID, pop.Threads[2].ID)
	assert.NotEqual(t, a.ID, pop.Threads[3].ID)
	assert.NotEqual(t, b.ID, pop.Threads[4].ID)

	require.Len(t, pop.Discarded, 2)
	assert.Equal(t, "d", pop.Discarded[0].History[0].Text)
	assert.Equal(t, "e", pop.Discarded[1].History[0].Text)
}

func TestSelect_SingleBeam(t *testing.T) {
	// beamWidth == 1: the population becomes threadCount descendants
	// of the single best thread.
	best := scoredThread(BackendAnthropic, "best", 99)
	pop := &Population{Threads: []*ResponseThread{
		scoredThread(BackendOpenAI, "meh", 40),
		best,
		scoredThread(BackendMistral, "bad", 12),
	}}

	require.NoError(t, Select(context.Background(), pop, 1, 3))

	require.Len(t, pop.Threads, 3)
	for _, th := range pop.Threads {
		assert.Equal(t, "best", th.History[0].Text)
		assert.Equal(t, BackendAnthropic, th.AgentIdentity)
	}
	assert.Len(t, pop.Discarded, 2)
}

func TestSelect_StableOnEqualScores(t *testing.T) {
	// Equal scores keep their pre-sort order, so selection is
	// deterministic.
	first := scoredThread(BackendOpenAI, "first", 50)
	second := scoredThread(BackendAnthropic, "second", 50)
	third := scoredThread(BackendMistral, "third", 50)
	pop := &Population{Threads: []*ResponseThread{first, second, third}}

	require.NoError(t, Select(context.Background(), pop, 2, 3))

	require.Len(t, pop.Threads, 3)
	assert.Equal(t, first.ID, pop.Threads[0].ID)
	assert.Equal(t, second.ID, pop.Threads[1].ID)
	require.Len(t, pop.Discarded, 1)
	assert.Equal(t, third.ID, pop.Discarded[0].ID)
}

func TestSelect_CloneIndependence(t *testing.T) {
	orig := scoredThread(BackendOpenAI, "root", 70)
	pop := &Population{Threads: []*ResponseThread{orig}}

	require.NoError(t, Select(context.Background(), pop, 1, 3))
	require.Len(t, pop.Threads, 3)

	clone := pop.Threads[1]
	require.NotSame(t, orig, clone)

	// Growing the clone's history must not leak into the original or
	// its sibling.
	clone.History = append(clone.History, AgentResponse{Text: "revised", Score: 80, Scored: true})

	assert.Len(t, orig.History, 1)
	assert.Len(t, pop.Threads[2].History, 1)
	assert.Equal(t, "root", orig.History[0].Text)
}

func TestSelect_DiscardedAccumulates(t *testing.T) {
	pop := &Population{Threads: []*ResponseThread{
		scoredThread(BackendOpenAI, "a", 9),
		scoredThread(BackendAnthropic, "b", 8),
		scoredThread(BackendMistral, "c", 7),
	}}

	require.NoError(t, Select(context.Background(), pop, 2, 3))
	require.Len(t, pop.Discarded, 1)

	// Lower the survivors' scores so the next selection discards a
	// different thread; the audit trail keeps both.
	pop.Threads[2].History[0].Score = 1
	require.NoError(t, Select(context.Background(), pop, 2, 3))
	assert.Len(t, pop.Discarded, 2)
}

func TestSelect_Errors(t *testing.T) {
	tests := []struct {
		name        string
		pop         *Population
		beamWidth   int
		threadCount int
	}{
		{
			name:        "empty population",
			pop:         &Population{},
			beamWidth:   1,
			threadCount: 3,
		},
		{
			name:        "zero beam width",
			pop:         &Population{Threads: []*ResponseThread{scoredThread(BackendOpenAI, "a", 1)}},
			beamWidth:   0,
			threadCount: 3,
		},
		{
			name:        "beam wider than target",
			pop:         &Population{Threads: []*ResponseThread{scoredThread(BackendOpenAI, "a", 1)}},
			beamWidth:   4,
			threadCount: 3,
		},
		{
			name:        "beam wider than population",
			pop:         &Population{Threads: []*ResponseThread{scoredThread(BackendOpenAI, "a", 1)}},
			beamWidth:   2,
			threadCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Select(context.Background(), tt.pop, tt.beamWidth, tt.threadCount)
			require.Error(t, err)
		})
	}
}

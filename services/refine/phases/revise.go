// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phases

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/beamline/services/refine"
)

// RevisePhase advances the thread under the cursor by one revision:
// the thread's own backend revises its latest answer against the
// attached critique, the result is re-critiqued and re-scored, and the
// finished entry is committed atomically.
//
// When a round opens and cannot end the run (no thread is one commit
// away from exhausting its budget), the collaborator chains for the
// whole round are issued concurrently and staged on the run's
// WorkflowState; commits still happen one per execution, strictly in
// cursor order, so routing stays exactly sequential. A round that can
// exhaust the budget runs one thread at a time, since its first commit
// may already end the run.
//
// Thread Safety: the executor itself is stateless; all per-round
// staging lives on the WorkflowState, so one registry can serve
// concurrent runs.
type RevisePhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *RevisePhase) Name() string { return "revise" }

// Execute implements refine.PhaseExecutor.
func (p *RevisePhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	cfg := ws.Config()
	pop := ws.Population()
	cursor := ws.Cursor()

	if cursor >= len(pop.Threads) {
		return refine.StateError, fmt.Errorf("revise: cursor %d past population of %d", cursor, len(pop.Threads))
	}
	thread := pop.Threads[cursor]
	latest, ok := thread.Latest()
	if !ok {
		return refine.StateError, fmt.Errorf("revise: thread %s has no history", thread.ID)
	}

	// The budget exhausts on the commit that takes a thread's history
	// to RevisionBudget+1 entries. Threads enter a round with equal
	// lengths, so if that commit cannot happen this round, the whole
	// round's calls can run up front.
	if cursor == 0 && len(thread.History) < cfg.RevisionBudget {
		if err := p.prefetch(ctx, ws); err != nil {
			return refine.StateError, err
		}
	}

	resp, ok := ws.StagedRevision(cursor)
	if !ok {
		var err error
		resp, err = p.reviseOne(ctx, ws.Question(), thread, latest)
		if err != nil {
			return refine.StateError, err
		}
	}

	if err := ws.CommitRevision(resp); err != nil {
		return refine.StateError, err
	}
	ws.AddLLMCalls(3)

	p.deps.Logger.Debug("revision committed",
		slog.String("run_id", ws.RunID()),
		slog.String("thread_id", thread.ID),
		slog.String("backend", thread.AgentIdentity.String()),
		slog.Float64("score", resp.Score),
	)

	switch {
	// Note: a zero-budget override still performs the one revision
	// above before this routes to aggregation.
	case len(thread.History) >= cfg.RevisionBudget+1:
		// This thread has no revisions left; the run ends now.
		return refine.StateAggregate, nil
	case ws.Cursor() == cfg.ThreadCount:
		return refine.StateConverge, nil
	default:
		return refine.StateRevise, nil
	}
}

// prefetch runs the revise/critique/score chain for every thread in
// the round concurrently and stages the results on the run's state.
func (p *RevisePhase) prefetch(ctx context.Context, ws *refine.WorkflowState) error {
	question := ws.Question()
	threads := ws.Population().Threads

	results := make([]refine.AgentResponse, len(threads))
	g, gctx := errgroup.WithContext(ctx)
	for i, thread := range threads {
		idx, th := i, thread
		latest, ok := th.Latest()
		if !ok {
			return fmt.Errorf("revise: thread %s has no history", th.ID)
		}
		g.Go(func() error {
			resp, err := p.reviseOne(gctx, question, th, latest)
			if err != nil {
				return err
			}
			results[idx] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ws.StageRound(results)
	return nil
}

// reviseOne runs one thread's revise/critique/score chain.
func (p *RevisePhase) reviseOne(ctx context.Context, question string, thread *refine.ResponseThread, latest refine.AgentResponse) (refine.AgentResponse, error) {
	text, err := p.deps.Generator.Revise(ctx, thread.AgentIdentity, question, latest.Text, latest.Comments)
	if err != nil {
		return refine.AgentResponse{}, err
	}
	comments, err := p.deps.Critic.Critique(ctx, question, text)
	if err != nil {
		return refine.AgentResponse{}, err
	}
	score, err := p.deps.Scorer.Score(ctx, question, text, comments)
	if err != nil {
		return refine.AgentResponse{}, annotateParseError(err, refine.StateRevise, thread.ID)
	}
	return refine.AgentResponse{Text: text, Comments: comments, Score: score, Scored: true}, nil
}

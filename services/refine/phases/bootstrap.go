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
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/beamline/services/refine"
)

// BootstrapPhase grows the population to its current target: three
// threads before classification, the configured ThreadCount after.
//
// Backends are drawn from the rotation in order before any call is
// issued, so the identity assignment is deterministic regardless of
// which generation finishes first. The generate/critique/score chains
// run concurrently; threads are appended serially in draw order.
type BootstrapPhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *BootstrapPhase) Name() string { return "bootstrap" }

// Execute implements refine.PhaseExecutor.
func (p *BootstrapPhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	target := refine.BootstrapCount
	if ws.Classified() {
		target = ws.Config().ThreadCount
	}

	pop := ws.Population()
	need := target - len(pop.Threads)
	if need > 0 {
		if err := p.generate(ctx, ws, need); err != nil {
			return refine.StateError, err
		}
	}

	p.deps.Logger.Debug("bootstrap round complete",
		slog.String("run_id", ws.RunID()),
		slog.Int("population", len(pop.Threads)),
		slog.Int("target", target),
	)

	switch {
	case len(pop.Threads) < target:
		return refine.StateBootstrap, nil
	case !ws.Classified():
		return refine.StateClassify, nil
	default:
		return refine.StateSelect, nil
	}
}

// generate fans out `need` initial responses and appends the resulting
// threads in draw order.
func (p *BootstrapPhase) generate(ctx context.Context, ws *refine.WorkflowState, need int) error {
	question := ws.Question()
	rotation := ws.Rotation()

	backends := make([]refine.BackendID, need)
	for i := range backends {
		backends[i] = rotation.Next()
	}

	responses := make([]refine.AgentResponse, need)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < need; i++ {
		idx := i
		backend := backends[i]
		g.Go(func() error {
			resp, err := p.evaluate(gctx, backend, question)
			if err != nil {
				return err
			}
			responses[idx] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, resp := range responses {
		thread := refine.NewResponseThread(backends[i], resp)
		if err := ws.AppendThread(thread); err != nil {
			return err
		}
		ws.AddLLMCalls(3)
	}
	return nil
}

// evaluate runs the generate/critique/score chain for one new thread.
func (p *BootstrapPhase) evaluate(ctx context.Context, backend refine.BackendID, question string) (refine.AgentResponse, error) {
	text, err := p.deps.Generator.Generate(ctx, backend, question)
	if err != nil {
		return refine.AgentResponse{}, err
	}
	comments, err := p.deps.Critic.Critique(ctx, question, text)
	if err != nil {
		return refine.AgentResponse{}, err
	}
	score, err := p.deps.Scorer.Score(ctx, question, text, comments)
	if err != nil {
		return refine.AgentResponse{}, annotateParseError(err, refine.StateBootstrap, "")
	}
	return refine.AgentResponse{Text: text, Comments: comments, Score: score, Scored: true}, nil
}

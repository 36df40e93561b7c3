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

	"github.com/AleutianAI/beamline/services/refine"
)

// ConvergePhase consults the judge at a round boundary: every thread
// must carry the same history length before the question is asked.
type ConvergePhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *ConvergePhase) Name() string { return "converge" }

// Execute implements refine.PhaseExecutor.
func (p *ConvergePhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	pop := ws.Population()

	if err := assertRoundBoundary(pop); err != nil {
		return refine.StateError, err
	}

	done, err := p.deps.Judge.CheckConvergence(ctx, ws.Question(), pop)
	if err != nil {
		return refine.StateError, err
	}
	ws.AddLLMCalls(1)
	ws.IncrementRounds()

	p.deps.Logger.Info("convergence checked",
		slog.String("run_id", ws.RunID()),
		slog.Int("rounds", ws.Rounds()),
		slog.Bool("converged", done),
	)

	if done {
		return refine.StateAggregate, nil
	}
	return refine.StateSelect, nil
}

// assertRoundBoundary verifies the population sits at a round
// boundary, with every thread at the same history length.
func assertRoundBoundary(pop *refine.Population) error {
	if len(pop.Threads) == 0 {
		return refine.ErrEmptyPopulation
	}
	want := len(pop.Threads[0].History)
	for _, thread := range pop.Threads[1:] {
		if len(thread.History) != want {
			return fmt.Errorf("converge: thread %s has %d history entries, expected %d",
				thread.ID, len(thread.History), want)
		}
	}
	return nil
}

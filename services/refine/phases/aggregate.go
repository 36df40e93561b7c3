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

	"github.com/AleutianAI/beamline/services/refine"
)

// AggregatePhase combines the surviving threads' final answers into
// the run's result text.
type AggregatePhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *AggregatePhase) Name() string { return "aggregate" }

// Execute implements refine.PhaseExecutor.
func (p *AggregatePhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	final, err := p.deps.Aggregator.Aggregate(ctx, ws.Question(), ws.Population())
	if err != nil {
		return refine.StateError, err
	}
	ws.AddLLMCalls(1)
	ws.SetFinalText(final)

	p.deps.Logger.Info("run aggregated",
		slog.String("run_id", ws.RunID()),
		slog.Int("rounds", ws.Rounds()),
		slog.Int("llm_calls", ws.LLMCalls()),
	)
	return refine.StateComplete, nil
}

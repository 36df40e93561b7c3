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

// ClassifyPhase asks the judge for a difficulty tier using the scored
// bootstrap threads as evidence, then pins the run configuration.
type ClassifyPhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *ClassifyPhase) Name() string { return "classify" }

// Execute implements refine.PhaseExecutor.
func (p *ClassifyPhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	pop := ws.Population()

	tier, err := p.deps.Classifier.ClassifyDifficulty(ctx, ws.Question(), pop.Threads)
	if err != nil {
		return refine.StateError, annotateParseError(err, refine.StateClassify, "")
	}
	ws.AddLLMCalls(1)

	cfg, err := refine.ConfigForTier(tier)
	if err != nil {
		return refine.StateError, err
	}
	if err := ws.SetConfig(cfg); err != nil {
		return refine.StateError, err
	}

	p.deps.Logger.Info("question classified",
		slog.String("run_id", ws.RunID()),
		slog.Int("tier", tier),
		slog.Int("thread_count", cfg.ThreadCount),
		slog.Int("revision_budget", cfg.RevisionBudget),
	)

	if cfg.ThreadCount > len(pop.Threads) {
		return refine.StateBootstrap, nil
	}
	return refine.StateSelect, nil
}

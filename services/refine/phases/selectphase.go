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

// SelectPhase applies beam selection to the population and opens the
// next revision round.
type SelectPhase struct {
	deps Dependencies
}

// Name implements refine.PhaseExecutor.
func (p *SelectPhase) Name() string { return "select" }

// Execute implements refine.PhaseExecutor.
func (p *SelectPhase) Execute(ctx context.Context, ws *refine.WorkflowState) (refine.RunState, error) {
	cfg := ws.Config()
	pop := ws.Population()

	if err := refine.Select(ctx, pop, cfg.BeamWidth, cfg.ThreadCount); err != nil {
		return refine.StateError, err
	}

	// Selection must leave exactly ThreadCount threads.
	if got := len(pop.Threads); got != cfg.ThreadCount {
		return refine.StateError, &refine.ConfigError{
			Field:  "ThreadCount",
			Reason: fmt.Sprintf("selection produced %d threads, expected %d", got, cfg.ThreadCount),
		}
	}

	ws.BeginRound()

	p.deps.Logger.Debug("beam selection applied",
		slog.String("run_id", ws.RunID()),
		slog.Int("survivors", cfg.BeamWidth),
		slog.Int("population", len(pop.Threads)),
		slog.Int("discarded_total", len(pop.Discarded)),
	)
	return refine.StateRevise, nil
}

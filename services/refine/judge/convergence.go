// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package judge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AleutianAI/beamline/services/refine"
)

// CheckConvergence implements refine.ConvergenceJudge.
//
// Only the exact reply "PROCESS DONE" (after trimming whitespace)
// halts the loop. Any other reply, including malformed ones, means
// continue; the revision budget bounds the run regardless.
func (j *Judge) CheckConvergence(ctx context.Context, question string, pop *refine.Population) (bool, error) {
	reply, err := j.complete(ctx, "converge", convergenceSystemPrompt, renderChains(question, pop))
	if err != nil {
		return false, err
	}

	done := strings.TrimSpace(reply) == convergenceDone
	j.logger.Debug("convergence check",
		slog.Bool("done", done),
		slog.Int("threads", len(pop.Threads)),
	)
	return done, nil
}

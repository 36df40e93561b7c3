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
	"strconv"
	"strings"

	"github.com/AleutianAI/beamline/services/refine"
)

// Score implements refine.Scorer.
//
// The reply must be a bare base-10 decimal after stripping outer
// whitespace. Anything else ("8/10", "Score: 7", prose) is a
// ParseError; there is no salvage parsing.
func (j *Judge) Score(ctx context.Context, question, text, comments string) (float64, error) {
	reply, err := j.complete(ctx, "score", scorerSystemPrompt, scorerUserPrompt(question, text, comments))
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(reply)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Phase and thread context are filled in by the calling phase.
		return 0, &refine.ParseError{Raw: reply, Err: err}
	}
	return score, nil
}

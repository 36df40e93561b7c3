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
	"fmt"
	"strings"

	"github.com/AleutianAI/beamline/services/refine"
)

// Aggregate implements refine.Aggregator.
//
// Only each thread's final history entry is shown to the model; the
// intermediate revisions have already served their purpose and would
// only dilute the combination prompt.
func (j *Judge) Aggregate(ctx context.Context, question string, pop *refine.Population) (string, error) {
	reply, err := j.complete(ctx, "aggregate", aggregatorSystemPrompt, aggregatorUserPrompt(question, pop))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func aggregatorUserPrompt(question string, pop *refine.Population) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the question: %s \n", question)
	b.WriteString("Here are the reasoning chains: \n")
	for i, thread := range pop.Threads {
		latest, ok := thread.Latest()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Chain %d final response: %s\n", i+1, latest.Text)
		if latest.Comments != "" {
			fmt.Fprintf(&b, "Chain %d comments: %s\n", i+1, latest.Comments)
		}
		if latest.Scored {
			fmt.Fprintf(&b, "Chain %d score: %g\n", i+1, latest.Score)
		}
		b.WriteString("\n")
	}
	return b.String()
}

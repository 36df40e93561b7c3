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
	"strings"
)

// Critique implements refine.Critic.
//
// The reply is used verbatim as the thread's comments; only outer
// whitespace is trimmed.
func (j *Judge) Critique(ctx context.Context, question, text string) (string, error) {
	reply, err := j.complete(ctx, "critique", commenterSystemPrompt, commenterUserPrompt(question, text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refine

import "context"

// Generator produces and revises answers on behalf of one backend
// identity. Implementations run the full generation subgraph for each
// call (LLM invocation, optional tool loop, summarization).
type Generator interface {
	// Generate produces an initial answer to the question.
	Generate(ctx context.Context, backend BackendID, question string) (string, error)

	// Revise produces an improved answer from the prior answer and the
	// critique attached to it. The call goes to the given backend,
	// which is always the thread's recorded identity.
	Revise(ctx context.Context, backend BackendID, question, prior, comments string) (string, error)
}

// Critic produces critique comments for an answer.
type Critic interface {
	Critique(ctx context.Context, question, text string) (string, error)
}

// Scorer assigns a numeric quality score to an answer, taking the
// critique into account. A malformed judge reply is a ParseError.
type Scorer interface {
	Score(ctx context.Context, question, text, comments string) (float64, error)
}

// DifficultyClassifier assigns a difficulty tier to the question given
// the scored bootstrap threads as evidence. The tier must fall in the
// configured table; an unparseable reply is a ParseError.
type DifficultyClassifier interface {
	ClassifyDifficulty(ctx context.Context, question string, evidence []*ResponseThread) (int, error)
}

// ConvergenceJudge decides, at a round boundary, whether further
// revision rounds would improve the population.
type ConvergenceJudge interface {
	// CheckConvergence returns true when the population has converged
	// and the run should aggregate.
	CheckConvergence(ctx context.Context, question string, pop *Population) (bool, error)
}

// Aggregator merges the surviving threads' final answers into one
// consolidated answer. Implementations read only each thread's latest
// history entry and never mutate the population.
type Aggregator interface {
	Aggregate(ctx context.Context, question string, pop *Population) (string, error)
}

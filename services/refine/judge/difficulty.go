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
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/beamline/services/refine"
)

// ClassifyDifficulty implements refine.DifficultyClassifier.
//
// Concurrent classifications of the same question are coalesced into
// one judge call via singleflight, keyed on a hash of the question.
// The reply must parse as a bare integer after stripping whitespace;
// the tier table lookup downstream rejects out-of-range values.
func (j *Judge) ClassifyDifficulty(ctx context.Context, question string, evidence []*refine.ResponseThread) (int, error) {
	tracer := otel.Tracer("beamline/judge")
	ctx, span := tracer.Start(ctx, "judge.ClassifyDifficulty")
	defer span.End()

	key := questionKey(question)
	span.SetAttributes(attribute.String("question.key", key))

	v, err, shared := j.group.Do(key, func() (interface{}, error) {
		return j.classify(ctx, question, evidence)
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(
		attribute.Bool("coalesced", shared),
		attribute.Int("tier", v.(int)),
	)
	return v.(int), nil
}

func (j *Judge) classify(ctx context.Context, question string, evidence []*refine.ResponseThread) (int, error) {
	reply, err := j.complete(ctx, "classify", difficultySystemPrompt, difficultyUserPrompt(question, evidence))
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(reply)
	tier, perr := strconv.Atoi(raw)
	if perr != nil {
		return 0, &refine.ParseError{
			Phase: refine.StateClassify,
			Raw:   reply,
			Err:   perr,
		}
	}
	return tier, nil
}

func questionKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:8])
}

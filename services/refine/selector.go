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

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Select performs one beam selection over the population.
//
// Description:
//
//	Threads are stable-sorted by their latest score, best first; ties
//	keep their pre-sort order. The first beamWidth threads survive,
//	the rest move to the Discarded audit trail. The survivors are then
//	cloned to refill the population back to threadCount: every kept
//	thread contributes threadCount/beamWidth members (itself plus
//	clones), and the first threadCount%beamWidth kept threads
//	contribute one extra. Clones are deep copies with fresh IDs;
//	mutating a clone never affects its siblings or the original.
//
//	When beamWidth equals threadCount no thread is discarded and no
//	clone is made. When beamWidth is 1 the population becomes
//	threadCount descendants of the single best thread.
//
// Inputs:
//
//	ctx - Context for tracing
//	pop - The population to select over; mutated in place
//	beamWidth - Number of survivors, 1 <= beamWidth <= threadCount
//	threadCount - Target population size after refill
//
// Outputs:
//
//	error - ConfigError on invalid widths, ErrEmptyPopulation on an
//	        empty population
func Select(ctx context.Context, pop *Population, beamWidth, threadCount int) error {
	_, span := otel.Tracer("beamline/refine").Start(ctx, "refine.Select")
	defer span.End()

	if len(pop.Threads) == 0 {
		return ErrEmptyPopulation
	}
	if beamWidth < 1 || beamWidth > threadCount {
		return &ConfigError{
			Field:  "beam_width",
			Reason: fmt.Sprintf("beam width %d outside [1, %d]", beamWidth, threadCount),
		}
	}
	if beamWidth > len(pop.Threads) {
		return &ConfigError{
			Field:  "beam_width",
			Reason: fmt.Sprintf("beam width %d exceeds population %d", beamWidth, len(pop.Threads)),
		}
	}

	span.SetAttributes(
		attribute.Int("population.size", len(pop.Threads)),
		attribute.Int("beam.width", beamWidth),
		attribute.Int("thread.count", threadCount),
	)

	sort.SliceStable(pop.Threads, func(i, j int) bool {
		a, _ := pop.Threads[i].Latest()
		b, _ := pop.Threads[j].Latest()
		return a.Score > b.Score
	})

	kept := pop.Threads[:beamWidth]
	pop.Discarded = append(pop.Discarded, pop.Threads[beamWidth:]...)

	// Refill by cloning survivors. Each survivor contributes base
	// members; the first remainder survivors contribute one extra.
	base := threadCount / beamWidth
	remainder := threadCount % beamWidth

	next := make([]*ResponseThread, 0, threadCount)
	for _, t := range kept {
		next = append(next, t)
		for c := 1; c < base; c++ {
			next = append(next, t.Clone())
		}
	}
	for i := 0; i < remainder; i++ {
		next = append(next, kept[i].Clone())
	}
	pop.Threads = next

	span.SetAttributes(attribute.Int("population.refilled", len(pop.Threads)))
	return nil
}

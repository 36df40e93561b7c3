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
	"fmt"

	"github.com/go-playground/validator/v10"
)

// BootstrapCount is the number of initial responses generated before
// difficulty classification. Classification needs scored evidence, so
// the first batch is always this size regardless of tier.
const BootstrapCount = 3

// tierTable maps each difficulty tier to its run sizing. The table is
// total over tiers 1-4; any other tier is a hard configuration error,
// never a fallback.
var tierTable = map[int]RunConfig{
	1: {DifficultyTier: 1, ThreadCount: 3, BeamWidth: 3, RevisionBudget: 4},
	2: {DifficultyTier: 2, ThreadCount: 5, BeamWidth: 3, RevisionBudget: 3},
	3: {DifficultyTier: 3, ThreadCount: 7, BeamWidth: 3, RevisionBudget: 2},
	4: {DifficultyTier: 4, ThreadCount: 9, BeamWidth: 3, RevisionBudget: 1},
}

// ConfigForTier returns the run sizing for a classified difficulty
// tier.
//
// Inputs:
//
//	tier - Difficulty tier, must be 1-4
//
// Outputs:
//
//	RunConfig - Sizing for the tier
//	error - ConfigError for any tier outside the table
func ConfigForTier(tier int) (RunConfig, error) {
	cfg, ok := tierTable[tier]
	if !ok {
		return RunConfig{}, &ConfigError{
			Field:  "difficulty_tier",
			Reason: fmt.Sprintf("tier %d outside known range 1-4", tier),
		}
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration's internal consistency.
//
// Outputs:
//
//	error - ConfigError describing the first violation found
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	if c.BeamWidth > c.ThreadCount {
		return &ConfigError{
			Field:  "beam_width",
			Reason: fmt.Sprintf("beam width %d exceeds thread count %d", c.BeamWidth, c.ThreadCount),
		}
	}
	return nil
}

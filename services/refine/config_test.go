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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigForTier_KnownTiers(t *testing.T) {
	tests := []struct {
		tier           int
		threadCount    int
		beamWidth      int
		revisionBudget int
	}{
		{1, 3, 3, 4},
		{2, 5, 3, 3},
		{3, 7, 3, 2},
		{4, 9, 3, 1},
	}

	for _, tt := range tests {
		cfg, err := ConfigForTier(tt.tier)
		require.NoError(t, err, "tier %d", tt.tier)

		assert.Equal(t, tt.tier, cfg.DifficultyTier)
		assert.Equal(t, tt.threadCount, cfg.ThreadCount)
		assert.Equal(t, tt.beamWidth, cfg.BeamWidth)
		assert.Equal(t, tt.revisionBudget, cfg.RevisionBudget)

		// Every tier's sizing must itself be a valid configuration.
		assert.NoError(t, cfg.Validate(), "tier %d", tt.tier)
		assert.LessOrEqual(t, cfg.BeamWidth, cfg.ThreadCount, "tier %d", tt.tier)
	}
}

func TestConfigForTier_UnknownTierIsError(t *testing.T) {
	for _, tier := range []int{0, 5, -1, 100} {
		_, err := ConfigForTier(tier)
		require.Error(t, err, "tier %d", tier)

		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), "tier %d should yield ConfigError, got %v", tier, err)
	}
}

func TestRunConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RunConfig
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  RunConfig{DifficultyTier: 2, ThreadCount: 5, BeamWidth: 3, RevisionBudget: 3},
		},
		{
			name:    "beam wider than threads",
			cfg:     RunConfig{DifficultyTier: 1, ThreadCount: 3, BeamWidth: 5, RevisionBudget: 2},
			wantErr: true,
		},
		{
			name:    "zero threads",
			cfg:     RunConfig{DifficultyTier: 1, ThreadCount: 0, BeamWidth: 1, RevisionBudget: 2},
			wantErr: true,
		},
		{
			name:    "negative budget",
			cfg:     RunConfig{DifficultyTier: 1, ThreadCount: 3, BeamWidth: 3, RevisionBudget: -1},
			wantErr: true,
		},
		{
			name:    "tier out of range",
			cfg:     RunConfig{DifficultyTier: 9, ThreadCount: 3, BeamWidth: 3, RevisionBudget: 1},
			wantErr: true,
		},
		{
			name: "zero budget allowed",
			cfg:  RunConfig{DifficultyTier: 4, ThreadCount: 9, BeamWidth: 3, RevisionBudget: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				var cfgErr *ConfigError
				assert.True(t, errors.As(err, &cfgErr), "want ConfigError, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

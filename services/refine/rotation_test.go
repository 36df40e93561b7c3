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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotation_WrapAround(t *testing.T) {
	rot, err := NewRotation(DefaultRotationOrder())
	require.NoError(t, err)

	// Seven draws over a three-backend rotation wrap twice.
	want := []BackendID{
		BackendOpenAI, BackendAnthropic, BackendMistral,
		BackendOpenAI, BackendAnthropic, BackendMistral,
		BackendOpenAI,
	}
	for i, w := range want {
		assert.Equal(t, w, rot.Next(), "draw %d", i)
	}
}

func TestRotation_ArbitraryLength(t *testing.T) {
	tests := []struct {
		name     string
		backends []BackendID
		draws    int
	}{
		{"single backend", []BackendID{BackendAnthropic}, 5},
		{"two backends", []BackendID{BackendMistral, BackendOpenAI}, 7},
		{"five backends", []BackendID{"a", "b", "c", "d", "e"}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rot, err := NewRotation(tt.backends)
			require.NoError(t, err)

			for i := 0; i < tt.draws; i++ {
				want := tt.backends[i%len(tt.backends)]
				assert.Equal(t, want, rot.Next(), "draw %d", i)
			}
		})
	}
}

func TestRotation_Empty(t *testing.T) {
	_, err := NewRotation(nil)
	require.ErrorIs(t, err, ErrEmptyRotation)
}

func TestRotation_CopiesInput(t *testing.T) {
	backends := []BackendID{BackendOpenAI, BackendAnthropic}
	rot, err := NewRotation(backends)
	require.NoError(t, err)

	// Mutating the caller's slice must not change the rotation order.
	backends[0] = BackendMistral
	assert.Equal(t, BackendOpenAI, rot.Next())

	order := rot.Backends()
	order[0] = BackendMistral
	assert.Equal(t, []BackendID{BackendOpenAI, BackendAnthropic}, rot.Backends())
}

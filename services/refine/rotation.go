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

import "sync"

// Rotation hands out backend identities in a fixed circular order.
//
// Bootstrap assigns each new thread the next backend in the rotation;
// the assignment wraps when the population outgrows the backend list.
// The rotation supports any number of backends (one is fine), and the
// order is determined entirely by construction.
//
// Thread Safety:
//
//	Rotation is safe for concurrent use.
type Rotation struct {
	mu       sync.Mutex
	backends []BackendID
	next     int
}

// DefaultRotationOrder is the standard backend ordering.
func DefaultRotationOrder() []BackendID {
	return []BackendID{BackendOpenAI, BackendAnthropic, BackendMistral}
}

// NewRotation creates a rotation over the given backends in order.
//
// Inputs:
//
//	backends - Ordered backend identities, at least one
//
// Outputs:
//
//	*Rotation - The rotation positioned at the first backend
//	error - ErrEmptyRotation if no backends were given
func NewRotation(backends []BackendID) (*Rotation, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyRotation
	}
	order := make([]BackendID, len(backends))
	copy(order, backends)
	return &Rotation{backends: order}, nil
}

// Next returns the next backend identity and advances the rotation,
// wrapping to the first backend after the last.
func (r *Rotation) Next() BackendID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.backends[r.next]
	r.next = (r.next + 1) % len(r.backends)
	return id
}

// Backends returns the rotation order. The slice is a copy.
func (r *Rotation) Backends() []BackendID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]BackendID, len(r.backends))
	copy(out, r.backends)
	return out
}

// Len returns the number of backends in the rotation.
func (r *Rotation) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backends)
}

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
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the refine package.
var (
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEmptyQuestion indicates the question is empty.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrEmptyRotation indicates the backend rotation has no entries.
	ErrEmptyRotation = errors.New("backend rotation must not be empty")

	// ErrEmptyPopulation indicates an operation requires at least one thread.
	ErrEmptyPopulation = errors.New("population must not be empty")

	// ErrPhaseNotFound indicates no executor is registered for a state.
	ErrPhaseNotFound = errors.New("no phase registered for state")
)

// ConfigError indicates an invalid run configuration: a difficulty
// tier outside the known table, a beam width larger than the thread
// count, or a negative budget. Configuration errors are fatal; the
// run never falls back to a default.
type ConfigError struct {
	// Field names the offending configuration field, when known.
	Field string

	// Reason describes the violation.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ParseError indicates a collaborator returned output that could not
// be parsed into the expected shape (a non-numeric score, an
// unparseable difficulty tier). Parse errors are fatal and carry
// enough context to locate the failing call.
type ParseError struct {
	// Phase is the run phase in which parsing failed.
	Phase RunState

	// ThreadID is the thread being processed, when applicable.
	ThreadID string

	// Raw is the collaborator output that failed to parse.
	Raw string

	// Err is the underlying parse failure.
	Err error
}

func (e *ParseError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("parse failure in %s (thread %s): %v: %q", e.Phase, e.ThreadID, e.Err, e.Raw)
	}
	return fmt.Sprintf("parse failure in %s: %v: %q", e.Phase, e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CollaboratorError indicates an LLM collaborator call failed after
// the transport exhausted its retries. Collaborator errors are fatal.
type CollaboratorError struct {
	// Backend identifies the failing backend, when known.
	Backend BackendID

	// Op names the collaborator operation (generate, critique, score, ...).
	Op string

	// Err is the underlying transport or API error.
	Err error
}

func (e *CollaboratorError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("collaborator %s failed on %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("collaborator failed on %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the run exceeded its overall deadline. The
// run aborts at the next phase boundary with no partial commit.
type TimeoutError struct {
	// Phase is the phase active when the deadline fired.
	Phase RunState

	// Limit is the configured run deadline.
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run exceeded %s deadline in %s", e.Limit, e.Phase)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phases provides the phase executors that drive a refinement
// run: bootstrap, classify, select, revise, converge, and aggregate.
// Each executor performs one unit of work against the shared
// WorkflowState and returns the next state; all routing decisions live
// here, all state mutation goes through the WorkflowState mutators.
package phases

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/beamline/services/refine"
)

// Dependencies bundles the collaborators the phases call out to.
type Dependencies struct {
	Generator  refine.Generator
	Critic     refine.Critic
	Scorer     refine.Scorer
	Classifier refine.DifficultyClassifier
	Judge      refine.ConvergenceJudge
	Aggregator refine.Aggregator
	Logger     *slog.Logger
}

// validate checks that every collaborator is present.
func (d *Dependencies) validate() error {
	switch {
	case d.Generator == nil:
		return fmt.Errorf("phases: Generator not configured")
	case d.Critic == nil:
		return fmt.Errorf("phases: Critic not configured")
	case d.Scorer == nil:
		return fmt.Errorf("phases: Scorer not configured")
	case d.Classifier == nil:
		return fmt.Errorf("phases: Classifier not configured")
	case d.Judge == nil:
		return fmt.Errorf("phases: Judge not configured")
	case d.Aggregator == nil:
		return fmt.Errorf("phases: Aggregator not configured")
	}
	return nil
}

// Registry maps run states to their executors.
//
// Thread Safety: Registry is immutable after construction.
type Registry struct {
	phases map[refine.RunState]refine.PhaseExecutor
}

// NewRegistry builds the full phase set over the given dependencies.
func NewRegistry(deps Dependencies) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Registry{
		phases: map[refine.RunState]refine.PhaseExecutor{
			refine.StateBootstrap: &BootstrapPhase{deps: deps},
			refine.StateClassify:  &ClassifyPhase{deps: deps},
			refine.StateSelect:    &SelectPhase{deps: deps},
			refine.StateRevise:    &RevisePhase{deps: deps},
			refine.StateConverge:  &ConvergePhase{deps: deps},
			refine.StateAggregate: &AggregatePhase{deps: deps},
		},
	}, nil
}

// GetPhase implements refine.PhaseRegistry.
func (r *Registry) GetPhase(state refine.RunState) (refine.PhaseExecutor, bool) {
	phase, ok := r.phases[state]
	return phase, ok
}

// annotateParseError fills in the phase and thread context that the
// collaborator layer cannot know.
func annotateParseError(err error, phase refine.RunState, threadID string) error {
	var parseErr *refine.ParseError
	if errors.As(err, &parseErr) {
		if parseErr.Phase == "" {
			parseErr.Phase = phase
		}
		if parseErr.ThreadID == "" {
			parseErr.ThreadID = threadID
		}
	}
	return err
}

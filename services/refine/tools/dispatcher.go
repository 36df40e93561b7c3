// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher executes the tool calls a model requests.
//
// A failed execution is reported back to the model as an error result
// rather than aborting the caller; only a missing tool or undecodable
// arguments count as failures the model can act on too, so they are
// returned the same way.
//
// Thread Safety:
//
//	Dispatcher is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	// timeout bounds a single tool execution (0 = no limit).
	timeout time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithExecutionTimeout bounds each tool execution.
func WithExecutionTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.logger = logger
	}
}

// NewDispatcher creates a dispatcher over a registry.
//
// Inputs:
//
//	registry - Tool registry to dispatch against
//	opts - Configuration options
//
// Outputs:
//
//	*Dispatcher - The configured dispatcher
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes one tool call.
//
// Description:
//
//	Looks up the named tool, decodes the JSON arguments, and executes
//	with the configured per-call timeout. Every outcome, including a
//	missing tool or bad arguments, comes back as a Result the model
//	can read; the error return is reserved for context cancellation.
//
// Inputs:
//
//	ctx - Context for cancellation
//	callID - The model's tool call identifier
//	name - The tool name
//	arguments - JSON-encoded arguments from the model
//
// Outputs:
//
//	Result - The execution outcome
//	error - Non-nil only when ctx was cancelled
func (d *Dispatcher) Dispatch(ctx context.Context, callID, name, arguments string) (Result, error) {
	start := time.Now()

	tool, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warn("tool call for unknown tool", slog.String("tool", name))
		return Result{
			ToolCallID: callID,
			Content:    fmt.Sprintf("%v: %s", ErrToolNotFound, name),
			IsError:    true,
			Duration:   time.Since(start),
		}, nil
	}

	params := make(map[string]any)
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &params); err != nil {
			return Result{
				ToolCallID: callID,
				Content:    fmt.Sprintf("%v: %v", ErrBadArguments, err),
				IsError:    true,
				Duration:   time.Since(start),
			}, nil
		}
	}

	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	output, err := tool.Execute(execCtx, params)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		d.logger.Warn("tool execution failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return Result{
			ToolCallID: callID,
			Content:    fmt.Sprintf("tool %s failed: %v", name, err),
			IsError:    true,
			Duration:   duration,
		}, nil
	}

	d.logger.Debug("tool executed",
		slog.String("tool", name),
		slog.Int("output_len", len(output)),
		slog.Duration("duration", duration),
	)
	return Result{
		ToolCallID: callID,
		Content:    output,
		Duration:   duration,
	}, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines the tool contract for generation backends.
//
// The refinement engine ships no tools of its own; implementations
// (web search, execution sandboxes) are injected at wiring time. This
// package provides the interface, a thread-safe registry, and the
// dispatcher that executes the tool calls an LLM requests.
//
// Thread Safety:
//
//	Registry and Dispatcher are safe for concurrent use. Tool
//	implementations must be too.
package tools

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for tool dispatch.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrBadArguments indicates the tool arguments could not be decoded.
	ErrBadArguments = errors.New("tool arguments could not be decoded")
)

// Param describes one tool parameter.
type Param struct {
	// Type is the JSON type ("string", "number", "boolean", ...).
	Type string `json:"type"`

	// Description explains the parameter to the model.
	Description string `json:"description"`

	// Required marks the parameter as mandatory.
	Required bool `json:"required,omitempty"`
}

// Definition is a tool's schema as presented to the model.
type Definition struct {
	// Name is the unique tool name.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters maps parameter names to their schemas.
	Parameters map[string]Param `json:"parameters,omitempty"`
}

// RequiredParams returns the names of all required parameters.
func (d *Definition) RequiredParams() []string {
	var required []string
	for name, param := range d.Parameters {
		if param.Required {
			required = append(required, name)
		}
	}
	return required
}

// Tool is an executable capability offered to generation backends.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Definition returns the tool's schema.
	Definition() Definition

	// Execute runs the tool with decoded parameters.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   params - Decoded input parameters
	//
	// Outputs:
	//   string - Tool output as text for the model
	//   error - Non-nil if execution failed
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Result is the outcome of one dispatched tool call.
type Result struct {
	// ToolCallID links back to the model's tool call.
	ToolCallID string `json:"tool_call_id"`

	// Content is the tool output, or the error message on failure.
	Content string `json:"content"`

	// IsError marks a failed execution. Failed calls are reported back
	// to the model rather than aborting the run.
	IsError bool `json:"is_error,omitempty"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration"`
}

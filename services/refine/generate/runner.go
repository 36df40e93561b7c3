// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/beamline/services/refine"
	"github.com/AleutianAI/beamline/services/refine/llm"
	"github.com/AleutianAI/beamline/services/refine/tools"
)

// DefaultMaxToolIterations bounds the tool loop per subgraph run.
const DefaultMaxToolIterations = 8

// Runner implements refine.Generator over a set of backend clients.
//
// The caller supplies the backend identity for every call; the runner
// never picks a backend itself, so a thread's revisions always reach
// the backend that produced its initial response.
//
// Thread Safety: Runner is safe for concurrent use.
type Runner struct {
	clients    map[refine.BackendID]llm.Client
	summarizer llm.Client
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	logger     *slog.Logger

	maxToolIterations int
	maxTokens         int
	temperature       float64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxToolIterations bounds the tool loop per call.
func WithMaxToolIterations(n int) RunnerOption {
	return func(r *Runner) {
		r.maxToolIterations = n
	}
}

// WithMaxTokens limits each backend response.
func WithMaxTokens(n int) RunnerOption {
	return func(r *Runner) {
		r.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature for backend calls.
func WithTemperature(t float64) RunnerOption {
	return func(r *Runner) {
		r.temperature = t
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a generation runner.
//
// Inputs:
//
//	clients - One client per backend identity in the rotation
//	summarizer - Client for the trace-condensing call
//	registry - Tool registry offered to backends (may be empty)
//	opts - Configuration options
//
// Outputs:
//
//	*Runner - The configured runner
//	error - Non-nil if clients or summarizer are missing
func NewRunner(clients map[refine.BackendID]llm.Client, summarizer llm.Client, registry *tools.Registry, opts ...RunnerOption) (*Runner, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("generate: no backend clients configured")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("generate: summarizer client not configured")
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}

	r := &Runner{
		clients:           clients,
		summarizer:        summarizer,
		registry:          registry,
		logger:            slog.Default(),
		maxToolIterations: DefaultMaxToolIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dispatcher = tools.NewDispatcher(registry, tools.WithDispatcherLogger(r.logger))
	return r, nil
}

// Generate implements refine.Generator.
func (r *Runner) Generate(ctx context.Context, backend refine.BackendID, question string) (string, error) {
	return r.run(ctx, backend, responseSystemPrompt(r.registry.Names()), question)
}

// Revise implements refine.Generator.
func (r *Runner) Revise(ctx context.Context, backend refine.BackendID, question, prior, comments string) (string, error) {
	return r.run(ctx, backend, revisionSystemPrompt(r.registry.Names()), revisionUserPrompt(question, prior, comments))
}

// run executes the subgraph for one call.
func (r *Runner) run(ctx context.Context, backend refine.BackendID, systemPrompt, userPrompt string) (string, error) {
	client, ok := r.clients[backend]
	if !ok {
		return "", &refine.CollaboratorError{
			Backend: backend,
			Op:      "generate",
			Err:     fmt.Errorf("no client configured for backend"),
		}
	}

	trace := []llm.Message{{Role: "user", Content: userPrompt}}
	defs := r.registry.Definitions()

	state := StateInvoking
	toolIterations := 0
	var lastResponse *llm.Response

	for state != StateDone {
		switch state {
		case StateInvoking:
			resp, err := client.Complete(ctx, &llm.Request{
				SystemPrompt: systemPrompt,
				Messages:     trace,
				Tools:        defs,
				MaxTokens:    r.maxTokens,
				Temperature:  r.temperature,
			})
			if err != nil {
				return "", &refine.CollaboratorError{Backend: backend, Op: "invoke", Err: err}
			}
			lastResponse = resp
			trace = append(trace, llm.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			if state, err = advance(state, StateDeciding); err != nil {
				return "", err
			}

		case StateDeciding:
			var err error
			if lastResponse.HasToolCalls() {
				toolIterations++
				if toolIterations > r.maxToolIterations {
					return "", &refine.CollaboratorError{
						Backend: backend,
						Op:      "tool-loop",
						Err:     fmt.Errorf("exceeded %d tool iterations", r.maxToolIterations),
					}
				}
				state, err = advance(state, StateExecutingTools)
			} else {
				state, err = advance(state, StateSummarizing)
			}
			if err != nil {
				return "", err
			}

		case StateExecutingTools:
			results := make([]llm.ToolCallResult, 0, len(lastResponse.ToolCalls))
			for _, call := range lastResponse.ToolCalls {
				res, err := r.dispatcher.Dispatch(ctx, call.ID, call.Name, call.Arguments)
				if err != nil {
					return "", &refine.CollaboratorError{Backend: backend, Op: "tool:" + call.Name, Err: err}
				}
				results = append(results, llm.ToolCallResult{
					ToolCallID: res.ToolCallID,
					Content:    res.Content,
					IsError:    res.IsError,
				})
			}
			trace = append(trace, llm.Message{Role: "tool", ToolResults: results})
			// Results go back to the SAME backend.
			var err error
			if state, err = advance(state, StateInvoking); err != nil {
				return "", err
			}

		case StateSummarizing:
			summary, err := r.summarize(ctx, trace)
			if err != nil {
				return "", err
			}
			if state, err = advance(state, StateDone); err != nil {
				return "", err
			}

			r.logger.Debug("generation subgraph finished",
				slog.String("backend", backend.String()),
				slog.Int("tool_iterations", toolIterations),
				slog.Int("trace_len", len(trace)),
			)
			return summary, nil
		}
	}

	return "", fmt.Errorf("generation subgraph exited without summarizing")
}

// summarize condenses the full reasoning trace into one answer text.
func (r *Runner) summarize(ctx context.Context, trace []llm.Message) (string, error) {
	resp, err := r.summarizer.Complete(ctx, &llm.Request{
		SystemPrompt: summarySystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: flattenTrace(trace)}},
		MaxTokens:    r.maxTokens,
	})
	if err != nil {
		return "", &refine.CollaboratorError{
			Backend: refine.BackendID(r.summarizer.Name()),
			Op:      "summarize",
			Err:     err,
		}
	}
	return resp.Content, nil
}

// flattenTrace renders the message trace as readable text for the
// summarizer.
func flattenTrace(trace []llm.Message) string {
	var b strings.Builder
	for _, msg := range trace {
		switch msg.Role {
		case "tool":
			for _, res := range msg.ToolResults {
				b.WriteString("tool result: ")
				b.WriteString(res.Content)
				b.WriteString("\n\n")
			}
		default:
			if msg.Content == "" && len(msg.ToolCalls) > 0 {
				for _, call := range msg.ToolCalls {
					fmt.Fprintf(&b, "%s requested tool %s(%s)\n\n", msg.Role, call.Name, call.Arguments)
				}
				continue
			}
			b.WriteString(msg.Role)
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

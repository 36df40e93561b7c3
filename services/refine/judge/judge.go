// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/beamline/services/refine"
	"github.com/AleutianAI/beamline/services/refine/llm"
	"golang.org/x/sync/singleflight"
)

// Judge runs every evaluation collaborator over one designated client.
//
// The original design used a single cheap model for all judging calls;
// keeping one client here preserves that and keeps the evaluation
// rubric consistent across threads.
//
// Thread Safety: Judge is safe for concurrent use.
type Judge struct {
	client llm.Client
	logger *slog.Logger

	maxTokens int
	group     singleflight.Group
}

// Option configures a Judge.
type Option func(*Judge)

// WithLogger sets the judge's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Judge) {
		j.logger = logger
	}
}

// WithMaxTokens limits each judging reply.
func WithMaxTokens(n int) Option {
	return func(j *Judge) {
		j.maxTokens = n
	}
}

// New creates a Judge over the given client.
func New(client llm.Client, opts ...Option) (*Judge, error) {
	if client == nil {
		return nil, fmt.Errorf("judge: client not configured")
	}
	j := &Judge{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// complete issues a single system+user exchange to the judge client.
func (j *Judge) complete(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	resp, err := j.client.Complete(ctx, &llm.Request{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userPrompt}},
		MaxTokens:    j.maxTokens,
	})
	if err != nil {
		return "", &refine.CollaboratorError{
			Backend: refine.BackendID(j.client.Name()),
			Op:      op,
			Err:     err,
		}
	}
	return resp.Content, nil
}

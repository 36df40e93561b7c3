// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIClient implements Client over the OpenAI chat completions API.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *slog.Logger
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// Model is the chat model to use. Default: "gpt-4o-mini".
	Model string

	// BaseURL overrides the API endpoint, for proxies and compatible
	// servers. Empty uses the official endpoint.
	BaseURL string

	// RequestsPerMinute caps the request rate (0 = unlimited).
	RequestsPerMinute float64

	// Retry overrides the retry policy. Zero value uses defaults.
	Retry RetryConfig

	// Logger is the structured logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewOpenAIClient creates an OpenAI-backed client.
//
// Outputs:
//
//	*OpenAIClient - The configured client
//	error - Non-nil if the API key is missing
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	cfg.Logger.Info("initializing OpenAI client", slog.String("model", cfg.Model))
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: NewLimiter(cfg.RequestsPerMinute),
		retry:   cfg.Retry,
		logger:  cfg.Logger,
	}, nil
}

// Name implements Client.
func (o *OpenAIClient) Name() string { return "openai" }

// Model implements Client.
func (o *OpenAIClient) Model() string { return o.model }

// Complete implements Client.
func (o *OpenAIClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := waitForLimiter(ctx, o.limiter); err != nil {
		return nil, err
	}

	req := o.buildRequest(request)
	start := time.Now()

	var resp openai.ChatCompletionResponse
	attempts, err := Retry(ctx, o.retry, func(ctx context.Context, attempt int) error {
		var callErr error
		resp, callErr = o.client.CreateChatCompletion(ctx, req)
		return translateOpenAIError(callErr)
	})
	if err != nil {
		o.logger.Error("OpenAI API call failed",
			slog.String("model", o.model),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	choice := resp.Choices[0]

	out := &Response{
		Content:      choice.Message.Content,
		StopReason:   translateOpenAIStop(choice.FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
		Model:        resp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	o.logger.Debug("OpenAI completion",
		slog.String("model", o.model),
		slog.String("stop_reason", out.StopReason),
		slog.Int("tokens", out.TokensUsed),
		slog.Duration("duration", out.Duration),
	)
	return out, nil
}

// buildRequest converts the provider-neutral request.
func (o *OpenAIClient) buildRequest(request *Request) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: float32(request.Temperature),
		Stop:        request.StopSequences,
	}
	if request.MaxTokens > 0 {
		req.MaxCompletionTokens = request.MaxTokens
	}

	if request.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "tool":
			for _, res := range msg.ToolResults {
				req.Messages = append(req.Messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    res.Content,
					ToolCallID: res.ToolCallID,
				})
			}
		case "assistant":
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			req.Messages = append(req.Messages, m)
		default:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	for _, def := range request.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schemaFor(def),
			},
		})
	}

	return req
}

// translateOpenAIError maps SDK errors onto StatusError so the retry
// policy can classify them.
func translateOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{
			Provider: "openai",
			Code:     apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
		}
	}
	return err
}

// translateOpenAIStop normalizes finish reasons.
func translateOpenAIStop(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonToolCalls:
		return "tool_use"
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonStop:
		return "end"
	default:
		return string(reason)
	}
}

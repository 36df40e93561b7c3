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
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

const mistralBaseURL = "https://api.mistral.ai/v1"

// MistralClient implements Client over the Mistral chat completions
// API, which is OpenAI-compatible, through langchaingo.
//
// Thread Safety: MistralClient is safe for concurrent use.
type MistralClient struct {
	llm     llms.Model
	model   string
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *slog.Logger
}

// MistralConfig configures a MistralClient.
type MistralConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// Model is the chat model to use. Default: "mistral-large-latest".
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// RequestsPerMinute caps the request rate (0 = unlimited).
	RequestsPerMinute float64

	// Retry overrides the retry policy. Zero value uses defaults.
	Retry RetryConfig

	// Logger is the structured logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewMistralClient creates a Mistral-backed client.
//
// Outputs:
//
//	*MistralClient - The configured client
//	error - Non-nil if the API key is missing or setup failed
func NewMistralClient(cfg MistralConfig) (*MistralClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mistral: API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-large-latest"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = mistralBaseURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	model, err := lcopenai.New(
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("mistral: failed to create client: %w", err)
	}

	cfg.Logger.Info("initializing Mistral client", slog.String("model", cfg.Model))
	return &MistralClient{
		llm:     model,
		model:   cfg.Model,
		limiter: NewLimiter(cfg.RequestsPerMinute),
		retry:   cfg.Retry,
		logger:  cfg.Logger,
	}, nil
}

// Name implements Client.
func (m *MistralClient) Name() string { return "mistral" }

// Model implements Client.
func (m *MistralClient) Model() string { return m.model }

// Complete implements Client.
func (m *MistralClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := waitForLimiter(ctx, m.limiter); err != nil {
		return nil, err
	}

	messages := m.buildMessages(request)
	opts := m.buildOptions(request)
	start := time.Now()

	var resp *llms.ContentResponse
	attempts, err := Retry(ctx, m.retry, func(ctx context.Context, attempt int) error {
		var callErr error
		resp, callErr = m.llm.GenerateContent(ctx, messages, opts...)
		return callErr
	})
	if err != nil {
		m.logger.Error("Mistral API call failed",
			slog.String("model", m.model),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("mistral completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("mistral returned no choices")
	}
	choice := resp.Choices[0]

	out := &Response{
		Content:    choice.Content,
		StopReason: translateMistralStop(choice.StopReason),
		Duration:   time.Since(start),
		Model:      m.model,
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	if len(out.ToolCalls) > 0 && out.StopReason == "end" {
		out.StopReason = "tool_use"
	}

	m.logger.Debug("Mistral completion",
		slog.String("model", m.model),
		slog.String("stop_reason", out.StopReason),
		slog.Duration("duration", out.Duration),
	)
	return out, nil
}

// buildMessages converts the provider-neutral request.
func (m *MistralClient) buildMessages(request *Request) []llms.MessageContent {
	var messages []llms.MessageContent

	if request.SystemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(request.SystemPrompt)},
		})
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "tool":
			for _, res := range msg.ToolResults {
				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: res.ToolCallID,
						Content:    res.Content,
					}},
				})
			}
		case "assistant":
			var parts []llms.ContentPart
			// Mistral rejects mixed text and tool_calls content; the
			// tool calls win when both are present.
			if msg.Content != "" && len(msg.ToolCalls) == 0 {
				parts = append(parts, llms.TextPart(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})
		default:
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
			})
		}
	}

	return messages
}

// buildOptions converts request parameters to call options.
func (m *MistralClient) buildOptions(request *Request) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(request.Temperature),
	}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}
	if len(request.StopSequences) > 0 {
		opts = append(opts, llms.WithStopWords(request.StopSequences))
	}

	if len(request.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(request.Tools))
		for _, def := range request.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  schemaFor(def),
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
	}

	return opts
}

// translateMistralStop normalizes stop reasons.
func translateMistralStop(reason string) string {
	switch reason {
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	case "stop":
		return "end"
	default:
		return reason
	}
}

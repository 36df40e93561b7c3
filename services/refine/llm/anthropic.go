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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *anthropicError `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicClient implements Client over the Anthropic messages API.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     *slog.Logger
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// Model is the messages model to use.
	// Default: "claude-3-5-sonnet-20240620".
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

// NewAnthropicClient creates an Anthropic-backed client.
//
// Outputs:
//
//	*AnthropicClient - The configured client
//	error - Non-nil if the API key is missing
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20240620"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cfg.Logger.Info("initializing Anthropic client", slog.String("model", cfg.Model))
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		limiter:    NewLimiter(cfg.RequestsPerMinute),
		retry:      cfg.Retry,
		logger:     cfg.Logger,
	}, nil
}

// Name implements Client.
func (a *AnthropicClient) Name() string { return "anthropic" }

// Model implements Client.
func (a *AnthropicClient) Model() string { return a.model }

// Complete implements Client.
func (a *AnthropicClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := waitForLimiter(ctx, a.limiter); err != nil {
		return nil, err
	}

	payload, err := a.buildRequest(request)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	var apiResp anthropicResponse
	attempts, err := Retry(ctx, a.retry, func(ctx context.Context, attempt int) error {
		return a.doRequest(ctx, payload, &apiResp)
	})
	if err != nil {
		a.logger.Error("Anthropic API call failed",
			slog.String("model", a.model),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned empty content")
	}

	out := &Response{
		StopReason:   translateAnthropicStop(apiResp.StopReason),
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		TokensUsed:   apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		Duration:     time.Since(start),
		Model:        apiResp.Model,
	}
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	a.logger.Debug("Anthropic completion",
		slog.String("model", a.model),
		slog.String("stop_reason", out.StopReason),
		slog.Int("tokens", out.TokensUsed),
		slog.Duration("duration", out.Duration),
	)
	return out, nil
}

// buildRequest converts the provider-neutral request.
func (a *AnthropicClient) buildRequest(request *Request) ([]byte, error) {
	req := anthropicRequest{
		Model:     a.model,
		System:    request.SystemPrompt,
		MaxTokens: request.MaxTokens,
		StopSeqs:  request.StopSequences,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 4096
	}
	if request.Temperature > 0 {
		req.Temperature = &request.Temperature
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "tool":
			// Tool results go back as user-role content blocks.
			m := anthropicMessage{Role: "user"}
			for _, res := range msg.ToolResults {
				m.Content = append(m.Content, anthropicContent{
					Type:      "tool_result",
					ToolUseID: res.ToolCallID,
					Content:   res.Content,
					IsError:   res.IsError,
				})
			}
			req.Messages = append(req.Messages, m)
		case "assistant":
			m := anthropicMessage{Role: "assistant"}
			if msg.Content != "" {
				m.Content = append(m.Content, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if input == "" {
					input = "{}"
				}
				m.Content = append(m.Content, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(input),
				})
			}
			req.Messages = append(req.Messages, m)
		default:
			req.Messages = append(req.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		}
	}

	for _, def := range request.Tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schemaFor(def),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// doRequest performs one HTTP round trip.
func (a *AnthropicClient) doRequest(ctx context.Context, payload []byte, out *anthropicResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			Provider: "anthropic",
			Code:     resp.StatusCode,
			Message:  string(bodyBytes),
		}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}

// translateAnthropicStop normalizes stop reasons.
func translateAnthropicStop(reason string) string {
	switch reason {
	case "tool_use":
		return "tool_use"
	case "max_tokens":
		return "max_tokens"
	case "end_turn":
		return "end"
	case "stop_sequence":
		return "stop_sequence"
	default:
		return reason
	}
}

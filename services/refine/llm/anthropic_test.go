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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/beamline/services/refine/tools"
)

func newAnthropicTestClient(t *testing.T, url string) *AnthropicClient {
	t.Helper()
	client, err := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		BaseURL: url,
		Retry: RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  1.0,
		},
	})
	require.NoError(t, err)
	return client
}

func TestAnthropicClient_Complete(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []map[string]any{{"type": "text", "text": "hello there"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 12, "output_tokens": 8},
		})
	}))
	defer srv.Close()

	client := newAnthropicTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), &Request{
		SystemPrompt: "be concise",
		Messages:     []Message{{Role: "user", Content: "hi"}},
		MaxTokens:    256,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "end", resp.StopReason)
	assert.Equal(t, 20, resp.TokensUsed)
	assert.False(t, resp.HasToolCalls())

	assert.Equal(t, "be concise", gotReq.System)
	assert.Equal(t, 256, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestAnthropicClient_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "search", req.Tools[0].Name)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_2",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-test",
			"content": []map[string]any{
				{"type": "tool_use", "id": "toolu_1", "name": "search", "input": map[string]any{"query": "beam search"}},
			},
			"stop_reason": "tool_use",
			"usage":       map[string]int{"input_tokens": 30, "output_tokens": 15},
		})
	}))
	defer srv.Close()

	client := newAnthropicTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "look this up"}},
		Tools: []tools.Definition{{
			Name:        "search",
			Description: "web search",
			Parameters:  map[string]tools.Param{"query": {Type: "string", Required: true}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "tool_use", resp.StopReason)
	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"beam search"}`, resp.ToolCalls[0].Arguments)
}

func TestAnthropicClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_3",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []map[string]any{{"type": "text", "text": "recovered"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 5, "output_tokens": 2},
		})
	}))
	defer srv.Close()

	client := newAnthropicTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	client := newAnthropicTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(AnthropicConfig{})
	require.Error(t, err)
}

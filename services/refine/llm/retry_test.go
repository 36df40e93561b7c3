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
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
		JitterFactor:   0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastRetryConfig(), func(_ context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return &StatusError{Provider: "test", Code: http.StatusServiceUnavailable}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	appErr := errors.New("bad request shape")
	attempts, err := Retry(context.Background(), fastRetryConfig(), func(context.Context, int) error {
		calls++
		return appErr
	})

	require.ErrorIs(t, err, appErr)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastRetryConfig(), func(context.Context, int) error {
		calls++
		return &StatusError{Provider: "test", Code: http.StatusTooManyRequests}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastRetryConfig(), func(context.Context, int) error {
		t.Fatal("function should not run with cancelled context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"server error", &StatusError{Code: http.StatusInternalServerError}, true},
		{"bad gateway", &StatusError{Code: http.StatusBadGateway}, true},
		{"unauthorized", &StatusError{Code: http.StatusUnauthorized}, false},
		{"bad request", &StatusError{Code: http.StatusBadRequest}, false},
		{"application error", errors.New("no choices"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestNextBackoff_Caps(t *testing.T) {
	got := nextBackoff(20*time.Second, 2.0, 30*time.Second)
	assert.Equal(t, 30*time.Second, got)

	got = nextBackoff(time.Second, 2.0, 30*time.Second)
	assert.Equal(t, 2*time.Second, got)
}

func TestCalculateBackoff_JitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := calculateBackoff(base, 0.2)
		assert.GreaterOrEqual(t, got, 80*time.Millisecond)
		assert.LessOrEqual(t, got, 120*time.Millisecond)
	}

	assert.Equal(t, base, calculateBackoff(base, 0))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-5))

	limiter := NewLimiter(120)
	require.NotNil(t, limiter)
	// 120 requests per minute is 2 per second.
	assert.InDelta(t, 2.0, float64(limiter.Limit()), 0.001)
}

package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_Success(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return nil
	}

	err := Retry(context.Background(), policy, fn)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary transport error")
		}
		return nil
	}

	err := Retry(context.Background(), policy, fn)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return &APIError{Platform: "twitter", StatusCode: 503, Message: "unavailable"}
	}

	err := Retry(context.Background(), policy, fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("expected wrapped APIError, got %v", err)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.InitialBackoff = 10 * time.Millisecond

	attempts := 0
	fn := func() error {
		attempts++
		return &AuthenticationError{Platform: "twitter", Reason: "bad token"}
	}

	err := Retry(context.Background(), policy, fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if attempts != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got %d", attempts)
	}
}

func TestRetry_HonorsRetryAfterHint(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     60 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	attempts := 0
	started := time.Now()
	fn := func() error {
		attempts++
		if attempts == 1 {
			return &RateLimitError{Platform: "news", RetryAfter: 40 * time.Millisecond}
		}
		return nil
	}

	if err := Retry(context.Background(), policy, fn); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Errorf("expected retry to wait for the provider hint, waited %v", elapsed)
	}
}

func TestRetry_HintCappedAtMaxBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	attempts := 0
	started := time.Now()
	fn := func() error {
		attempts++
		if attempts == 1 {
			return &RateLimitError{Platform: "news", RetryAfter: 10 * time.Second}
		}
		return nil
	}

	if err := Retry(context.Background(), policy, fn); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Errorf("expected hint capped at MaxBackoff, waited %v", elapsed)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		BackoffFactor:  2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	fn := func() error {
		attempts++
		return errors.New("retryable transport error")
	}

	err := Retry(ctx, policy, fn)
	if err == nil {
		t.Fatal("expected context error, got nil")
	}

	// Should have attempted once, then cancelled during backoff
	if attempts < 1 {
		t.Errorf("expected at least 1 attempt, got %d", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"plain transport error", errors.New("connection reset"), true},
		{"rate limit", &RateLimitError{Platform: "twitter"}, true},
		{"server error", &APIError{Platform: "news", StatusCode: 502}, true},
		{"client error", &APIError{Platform: "news", StatusCode: 400}, false},
		{"authentication", &AuthenticationError{Platform: "twitter", Reason: "expired"}, false},
		{"extraction", &ExtractionError{URL: "https://example.com/x", Reason: "thin page"}, false},
		{"normalization", &NormalizationError{Platform: "news", Reason: "no url"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRetryAfterHint(t *testing.T) {
	if hint := RetryAfterHint(&RateLimitError{Platform: "news", RetryAfter: 7 * time.Second}); hint != 7*time.Second {
		t.Errorf("expected 7s hint, got %v", hint)
	}
	if hint := RetryAfterHint(errors.New("plain")); hint != 0 {
		t.Errorf("expected zero hint, got %v", hint)
	}
}

func TestCalculateBackoff(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         false,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // Capped at max
		{5, 10 * time.Second}, // Stays at max
	}

	for _, tt := range tests {
		backoff := calculateBackoff(policy, tt.attempt)
		if backoff != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, backoff)
		}
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", policy.MaxAttempts)
	}
	if policy.InitialBackoff != 1*time.Second {
		t.Errorf("expected InitialBackoff=1s, got %v", policy.InitialBackoff)
	}
	if policy.MaxBackoff != 60*time.Second {
		t.Errorf("expected MaxBackoff=60s, got %v", policy.MaxBackoff)
	}
	if !policy.Jitter {
		t.Error("expected Jitter=true")
	}
}

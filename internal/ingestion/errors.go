package ingestion

import (
	"errors"
	"fmt"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// AuthenticationError signals missing or rejected credentials. It disables the
// affected connector for the rest of the run; it is never retried.
type AuthenticationError struct {
	Platform models.Platform
	Reason   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %s", e.Platform, e.Reason)
}

// RateLimitError signals a provider rate-limit response. RetryAfter carries
// the provider-reported wait when available; zero means backoff-computed.
type RateLimitError struct {
	Platform   models.Platform
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited (retry after %s)", e.Platform, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Platform)
}

// APIError wraps a non-success provider response. 5xx responses are retried;
// 4xx responses are surfaced immediately.
type APIError struct {
	Platform   models.Platform
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Platform, e.StatusCode, e.Message)
}

// ExtractionError marks a per-URL content extraction failure. The candidate
// is dropped; the error never propagates past the URL boundary.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, e.Reason)
}

// NormalizationError marks a single raw item that could not be converted to a
// UnifiedPost. The caller skips the item and continues with the batch.
type NormalizationError struct {
	Platform models.Platform
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s item skipped: %s", e.Platform, e.Reason)
}

// IsRetryable reports whether an error should trigger another attempt.
// Rate limits and 5xx API errors are retryable; authentication, 4xx,
// extraction and normalization failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	var authErr *AuthenticationError
	var extractErr *ExtractionError
	var normErr *NormalizationError
	if errors.As(err, &authErr) || errors.As(err, &extractErr) || errors.As(err, &normErr) {
		return false
	}

	// Plain transport failures (timeouts, resets) arrive unclassified.
	return true
}

// RetryAfterHint extracts a provider-reported retry delay, if any.
func RetryAfterHint(err error) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return rateLimit.RetryAfter
	}
	return 0
}

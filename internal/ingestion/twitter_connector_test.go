package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const twitterSearchPayload = `{
	"data": [
		{"id": "101", "text": "Acme announces a new funding round", "author_id": "u1", "created_at": "2026-08-20T10:00:00Z"},
		{"id": "102", "text": "", "author_id": "u1", "created_at": "2026-08-20T11:00:00Z"},
		{"id": "103", "text": "Globex partnership expands", "author_id": "u2", "created_at": "2026-08-20T12:00:00Z"}
	],
	"includes": {"users": [
		{"id": "u1", "username": "acmecorp", "name": "Acme Corp"},
		{"id": "u2", "username": "globex", "name": "Globex"}
	]},
	"meta": {"newest_id": "103", "next_token": "tok-abc"}
}`

func newTestTwitterConnector(srv *httptest.Server) *TwitterConnector {
	c := NewTwitterConnector("test-token", testLogger())
	c.baseURL = srv.URL
	return c
}

func TestTwitterConnector_FetchPosts(t *testing.T) {
	var gotQuery, gotSinceID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotSinceID = r.URL.Query().Get("since_id")
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twitterSearchPayload))
	}))
	defer srv.Close()

	c := newTestTwitterConnector(srv)
	cursor := &models.FetchCursor{Platform: models.PlatformTwitter, RuleID: "rule-1", LastPostID: "100"}

	posts, next, err := c.FetchPosts(context.Background(), "from:acmecorp -is:retweet", cursor, 50)
	if err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}

	if gotQuery != "from:acmecorp -is:retweet" {
		t.Errorf("unexpected query sent: %q", gotQuery)
	}
	if gotSinceID != "100" {
		t.Errorf("expected since_id from cursor, got %q", gotSinceID)
	}

	// The empty-text tweet is skipped, never fatal.
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].PostID != "twitter-101" {
		t.Errorf("unexpected post ID: %q", posts[0].PostID)
	}
	if posts[0].Handle != "acmecorp" || posts[0].Author != "Acme Corp" {
		t.Errorf("unexpected author fields: %q / %q", posts[0].Author, posts[0].Handle)
	}
	if posts[0].URL != "https://twitter.com/acmecorp/status/101" {
		t.Errorf("unexpected URL: %q", posts[0].URL)
	}
	if !posts[0].PostedAt.Equal(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected PostedAt: %v", posts[0].PostedAt)
	}

	if next == nil {
		t.Fatal("expected next cursor")
	}
	if next.LastPostID != "103" {
		t.Errorf("expected newest_id in cursor, got %q", next.LastPostID)
	}
	if next.Meta("next_token") != "tok-abc" {
		t.Errorf("expected continuation token, got %q", next.Meta("next_token"))
	}
	if next.RuleID != "rule-1" {
		t.Errorf("expected rule carried to next cursor, got %q", next.RuleID)
	}
}

func TestTwitterConnector_ClassifiesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestTwitterConnector(srv)
	_, _, err := c.FetchPosts(context.Background(), "acme", nil, 10)

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthenticationError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("authentication failure must not be retryable")
	}
}

func TestTwitterConnector_ClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestTwitterConnector(srv)
	_, _, err := c.FetchPosts(context.Background(), "acme", nil, 10)

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if rateErr.RetryAfter != 42*time.Second {
		t.Errorf("expected 42s retry-after, got %v", rateErr.RetryAfter)
	}
	if !IsRetryable(err) {
		t.Error("rate limit must be retryable")
	}
}

func TestTwitterConnector_ClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestTwitterConnector(srv)
	_, _, err := c.FetchPosts(context.Background(), "acme", nil, 10)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected status code: %d", apiErr.StatusCode)
	}
	if !IsRetryable(err) {
		t.Error("5xx must be retryable")
	}
}

func TestTwitterConnector_AuthenticateWithoutToken(t *testing.T) {
	c := NewTwitterConnector("", testLogger())

	err := c.Authenticate(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthenticationError for missing token, got %v", err)
	}
}

func TestTwitterConnector_LimitClamping(t *testing.T) {
	var gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		_, _ = w.Write([]byte(`{"data": [], "meta": {}}`))
	}))
	defer srv.Close()

	c := newTestTwitterConnector(srv)

	if _, _, err := c.FetchPosts(context.Background(), "acme", nil, 3); err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}
	if gotMax != "10" {
		t.Errorf("expected max_results clamped up to 10, got %q", gotMax)
	}

	if _, _, err := c.FetchPosts(context.Background(), "acme", nil, 500); err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}
	if gotMax != "100" {
		t.Errorf("expected max_results clamped down to 100, got %q", gotMax)
	}
}

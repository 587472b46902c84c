package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// newTestScrapeConnector points both the search backend and the page fetches
// at local test servers, with pacing disabled.
func newTestScrapeConnector(platform models.Platform, searchSrv *httptest.Server) *ScrapeConnector {
	extractor := NewContentExtractor(ExtractorOptions{Timeout: 2 * time.Second}, testLogger())
	c := NewScrapeConnector(platform, extractor, testLogger())
	c.searchURL = searchSrv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func searchResultsHTML(results ...searchResult) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range results {
		fmt.Fprintf(&b,
			`<div class="result"><a class="result__a" href="%s">%s</a><div class="result__snippet">%s</div></div>`,
			r.URL, r.Title, r.Snippet)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestScrapeConnector_FetchPosts(t *testing.T) {
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="usertext-body"><p>Acme announced a partnership with Globex covering the enterprise market in Europe.</p></div></body></html>`))
	}))
	defer pageSrv.Close()

	postURL := pageSrv.URL + "/comments/abc123/acme-announcement"
	profileURL := pageSrv.URL + "/user/someone"

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got == "" {
			t.Error("expected query parameter on search request")
		}
		_, _ = w.Write([]byte(searchResultsHTML(
			searchResult{Title: "Acme announcement", URL: postURL, Snippet: "partnership details"},
			searchResult{Title: "Profile page", URL: profileURL, Snippet: "not a post"},
		)))
	}))
	defer searchSrv.Close()

	c := newTestScrapeConnector(models.PlatformReddit, searchSrv)
	posts, next, err := c.FetchPosts(context.Background(), `"acme" site:reddit.com`, nil, 10)
	if err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}

	// The profile URL fails the direct-post gate before any fetch.
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if !strings.Contains(posts[0].Content, "partnership with Globex") {
		t.Errorf("expected extracted page content, got %q", posts[0].Content)
	}
	if !strings.HasPrefix(posts[0].PostID, "reddit-") {
		t.Errorf("expected platform-qualified post ID, got %q", posts[0].PostID)
	}
	if posts[0].PostedAt.IsZero() {
		t.Error("expected PostedAt defaulted, got zero")
	}
	if next != nil {
		t.Error("scrape connector has no continuation marker")
	}
}

func TestScrapeConnector_SkipsFailedExtractions(t *testing.T) {
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer pageSrv.Close()

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchResultsHTML(
			searchResult{Title: "Gone", URL: pageSrv.URL + "/comments/gone/thread", Snippet: "tiny"},
		)))
	}))
	defer searchSrv.Close()

	c := newTestScrapeConnector(models.PlatformReddit, searchSrv)
	posts, _, err := c.FetchPosts(context.Background(), "acme", nil, 10)
	if err != nil {
		t.Fatalf("per-URL failures must not fail the fetch: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}

func TestScrapeConnector_SearchRateLimit(t *testing.T) {
	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer searchSrv.Close()

	c := newTestScrapeConnector(models.PlatformLinkedIn, searchSrv)
	_, _, err := c.FetchPosts(context.Background(), "acme", nil, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Error("search backend rate limit should be retryable")
	}
}

func TestResolveRedirect(t *testing.T) {
	target := "https://www.reddit.com/r/startups/comments/abc/post/"
	wrapped := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target)

	if got := resolveRedirect(wrapped); got != target {
		t.Errorf("resolveRedirect = %q, want %q", got, target)
	}
	if got := resolveRedirect(target); got != target {
		t.Errorf("direct URL should pass through, got %q", got)
	}
}

func TestHandleFromURL(t *testing.T) {
	tests := []struct {
		platform models.Platform
		url      string
		want     string
	}{
		{models.PlatformTwitter, "https://twitter.com/acmecorp/status/123", "acmecorp"},
		{models.PlatformLinkedIn, "https://linkedin.com/in/jane-doe/", "jane-doe"},
		{models.PlatformLinkedIn, "https://linkedin.com/posts/jane-doe_activity-99", "jane-doe"},
		{models.PlatformReddit, "https://reddit.com/r/startups/comments/abc/x/", "startups"},
		{models.PlatformReddit, "https://reddit.com/", ""},
	}

	for _, tt := range tests {
		if got := handleFromURL(tt.platform, tt.url); got != tt.want {
			t.Errorf("handleFromURL(%s, %q) = %q, want %q", tt.platform, tt.url, got, tt.want)
		}
	}
}

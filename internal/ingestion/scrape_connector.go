package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const searchBackendBase = "https://html.duckduckgo.com/html/"

// searchResult is one hit from the web search backend.
type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// ScrapeConnector is the fallback source for platforms without a usable
// public API (LinkedIn, Reddit) and a supplement for platforms that have one.
// It runs the query against a general web search backend, then extracts the
// real post body from each landing page.
type ScrapeConnector struct {
	platform  models.Platform
	client    *http.Client
	extractor *ContentExtractor
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
	searchURL string
}

// NewScrapeConnector builds a scrape connector for one platform. The limiter
// paces landing-page fetches to stay polite toward the scraped hosts.
func NewScrapeConnector(platform models.Platform, extractor *ContentExtractor, logger *slog.Logger) *ScrapeConnector {
	return &ScrapeConnector{
		platform:  platform,
		client:    &http.Client{Timeout: DefaultExtractTimeout},
		extractor: extractor,
		limiter:   rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
		userAgent: defaultBrowserUA,
		logger:    logger,
		searchURL: searchBackendBase,
	}
}

// Platform implements Connector.
func (c *ScrapeConnector) Platform() models.Platform {
	return c.platform
}

// RequiredCredentials implements Connector. Scraping needs none.
func (c *ScrapeConnector) RequiredCredentials() []string {
	return nil
}

// Authenticate implements Connector; scraping is always available.
func (c *ScrapeConnector) Authenticate(ctx context.Context) error {
	return nil
}

// Close implements Connector.
func (c *ScrapeConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// FetchPosts searches the web backend and extracts content from the direct
// post URLs among the results. Per-URL failures (timeouts, non-200s, thin
// pages) are logged and skipped, never fatal.
func (c *ScrapeConnector) FetchPosts(ctx context.Context, query string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error) {
	if limit <= 0 {
		limit = 10
	}

	results, err := c.search(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	posts := make([]models.UnifiedPost, 0, limit)
	for _, result := range results {
		if len(posts) >= limit {
			break
		}

		cleanURL := CleanURL(result.URL)
		if !IsDirectPostURL(c.platform, cleanURL) {
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return posts, nil, fmt.Errorf("scrape pacing interrupted: %w", err)
		}

		fallback := strings.TrimSpace(result.Title + " " + result.Snippet)
		content, err := c.extractor.Extract(ctx, c.platform, cleanURL, fallback)
		if err != nil {
			c.logger.Debug("dropping candidate", "url", cleanURL, "error", err)
			continue
		}

		post, err := c.normalizeResult(cleanURL, result.Title, content)
		if err != nil {
			c.logger.Warn("skipping search result", "url", cleanURL, "error", err)
			continue
		}
		posts = append(posts, post)
	}

	// The search backend exposes no stable continuation marker.
	return posts, nil, nil
}

// search fetches one page of results from the HTML search backend.
func (c *ScrapeConnector) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Platform: c.platform, RetryAfter: parseRetryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Platform: c.platform, StatusCode: resp.StatusCode, Message: "search backend error"}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []searchResult
	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.result__a")
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		results = append(results, searchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
	})
	return results, nil
}

// resolveRedirect unwraps the backend's redirect links (the target hides in
// the uddg query parameter).
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	if u.Host == "" {
		return "https:" + href
	}
	return href
}

// normalizeResult builds the UnifiedPost for an extracted scrape candidate.
func (c *ScrapeConnector) normalizeResult(cleanURL, title, content string) (models.UnifiedPost, error) {
	handle := handleFromURL(c.platform, cleanURL)

	post, err := models.NewUnifiedPost(
		c.platform,
		fmt.Sprintf("%s-%s", c.platform, shortHash(cleanURL)),
		"",
		handle,
		content,
		cleanURL,
		time.Time{}, // the search backend exposes no publish time; defaults to now
	)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: c.platform, Reason: err.Error()}
	}
	post.Metadata = map[string]any{"search_title": title, "scraped": true}
	return post, nil
}

// handleFromURL recovers the author handle from a direct post URL where the
// platform encodes it in the path.
func handleFromURL(platform models.Platform, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}

	switch platform {
	case models.PlatformTwitter:
		// twitter.com/<handle>/status/<id>
		if len(segments) >= 3 && segments[1] == "status" {
			return segments[0]
		}
	case models.PlatformLinkedIn:
		// linkedin.com/in/<handle>/… or linkedin.com/posts/<handle>_…
		if len(segments) >= 2 && (segments[0] == "in" || segments[0] == "posts") {
			return strings.SplitN(segments[1], "_", 2)[0]
		}
	case models.PlatformReddit:
		// reddit.com/r/<sub>/…
		if len(segments) >= 2 && segments[0] == "r" {
			return segments[1]
		}
	}
	return ""
}

package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const (
	// DefaultExtractTimeout bounds a single landing-page fetch.
	DefaultExtractTimeout = 8 * time.Second

	// DefaultMinContentLength is the shortest extracted text still treated as
	// a successful extraction.
	DefaultMinContentLength = 30

	defaultBrowserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxPageBytes = 2 << 20 // 2 MB
)

// trackingParams are query parameters stripped from candidate URLs before
// deduplication and fetching.
var trackingParams = map[string]bool{
	"fbclid":     true,
	"gclid":      true,
	"igshid":     true,
	"mc_cid":     true,
	"mc_eid":     true,
	"ref":        true,
	"ref_src":    true,
	"ref_url":    true,
	"source":     true,
	"trk":        true,
	"trackingId": true,
}

// CleanURL strips tracking parameters (utm_*, fbclid, ref, …) and fragments
// deterministically so identical articles compare equal.
func CleanURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	q := u.Query()
	for key := range q {
		if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "?")
}

// IsDirectPostURL reports whether the URL points at an individual post or
// article rather than a profile, search, or category listing page. Non-direct
// URLs are rejected before any fetch is attempted.
func IsDirectPostURL(platform models.Platform, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	path := u.Path

	switch platform {
	case models.PlatformTwitter:
		return strings.Contains(path, "/status/")
	case models.PlatformReddit:
		if strings.Contains(path, "/search") {
			return false
		}
		// Individual threads, or a subreddit root (subreddit monitoring).
		return strings.Contains(path, "/comments/") || subredditPattern.MatchString(path)
	case models.PlatformLinkedIn:
		if strings.Contains(path, "/search/") || strings.Contains(path, "/jobs/") {
			return false
		}
		return strings.Contains(path, "/posts/") ||
			strings.Contains(path, "/pulse/") ||
			strings.Contains(path, "/feed/update/") ||
			strings.Contains(path, "/in/")
	default:
		// News and generic sources: anything with a real path that is not an
		// obvious listing page.
		trimmed := strings.Trim(path, "/")
		if trimmed == "" {
			return false
		}
		for _, listing := range []string{"search", "category/", "tag/", "topics/"} {
			if strings.HasPrefix(trimmed, listing) {
				return false
			}
		}
		return true
	}
}

var subredditPattern = regexp.MustCompile(`^/r/[A-Za-z0-9_]+/?$`)

// platformSelectors is the platform-specific content-container cascade tried
// before the generic meta-tag fallbacks.
var platformSelectors = map[models.Platform][]string{
	models.PlatformLinkedIn: {
		"div.attributed-text-segment-list__content",
		"article p",
		"div.feed-shared-update-v2__description",
	},
	models.PlatformReddit: {
		"div[data-post-click-location=text-body]",
		"shreddit-post p",
		"div.usertext-body",
	},
	models.PlatformTwitter: {
		"div[data-testid=tweetText]",
	},
	models.PlatformNews: {
		"article p",
		"div.article-body p",
		"main p",
	},
}

// clutterPhrases are UI fragments stripped from extracted text.
var clutterPhrases = []string{
	"Sign in to view",
	"Sign up to see",
	"Log in to continue",
	"Join now to see",
	"Agree & Join LinkedIn",
	"Accept cookies",
	"We use cookies",
	"Cookie Policy",
	"Subscribe to continue reading",
	"Enable JavaScript",
	"JavaScript is disabled",
	"Skip to main content",
}

// ContentExtractor fetches scraped landing pages and pulls the authentic post
// or article body out of them via a selector cascade with graceful fallback.
type ContentExtractor struct {
	client    *http.Client
	userAgent string
	minLength int
	maxLength int
	logger    *slog.Logger
}

// ExtractorOptions tunes the extractor; zero values pick the defaults.
type ExtractorOptions struct {
	Timeout   time.Duration
	UserAgent string
	MinLength int
	MaxLength int
}

// NewContentExtractor constructs an extractor with a bounded-timeout client
// and a realistic browser user agent.
func NewContentExtractor(opts ExtractorOptions, logger *slog.Logger) *ContentExtractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultExtractTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultBrowserUA
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinContentLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = models.MaxContentLength
	}

	return &ContentExtractor{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		minLength: opts.MinLength,
		maxLength: opts.MaxLength,
		logger:    logger,
	}
}

// Extract fetches the URL and walks the fallback chain: platform-specific
// containers, then meta description, then og:description, then the supplied
// search-result fallback text. Every failure falls through to the next
// strategy; total failure returns an *ExtractionError and the candidate is
// dropped downstream.
func (e *ContentExtractor) Extract(ctx context.Context, platform models.Platform, pageURL, fallback string) (string, error) {
	doc, fetchErr := e.fetchDocument(ctx, pageURL)

	if fetchErr == nil {
		for _, selector := range platformSelectors[platform] {
			text := collectSelectorText(doc, selector)
			if cleaned := e.finish(text); cleaned != "" {
				return cleaned, nil
			}
		}

		for _, metaSel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
			if content, ok := doc.Find(metaSel).Attr("content"); ok {
				if cleaned := e.finish(content); cleaned != "" {
					return cleaned, nil
				}
			}
		}
	} else {
		e.logger.Debug("page fetch failed, using search-result fallback", "url", pageURL, "error", fetchErr)
	}

	if cleaned := e.finish(fallback); cleaned != "" {
		return cleaned, nil
	}

	return "", &ExtractionError{URL: pageURL, Reason: "no strategy produced usable content"}
}

// finish normalizes candidate text and enforces the length bounds. Returns ""
// when the text is too short to count as a successful extraction.
func (e *ContentExtractor) finish(text string) string {
	cleaned := CleanText(text)
	if utf8.RuneCountInString(cleaned) < e.minLength {
		return ""
	}
	return models.TruncateContent(cleaned, e.maxLength)
}

func (e *ContentExtractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// collectSelectorText joins the text of all nodes matching the selector.
func collectSelectorText(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace and strips known UI clutter phrases.
func CleanText(text string) string {
	for _, phrase := range clutterPhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

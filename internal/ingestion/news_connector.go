package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// NewsProvider selects which upstream news API the connector talks to.
type NewsProvider string

const (
	ProviderNewsAPI NewsProvider = "newsapi"
	ProviderGNews   NewsProvider = "gnews"
)

const (
	newsAPIBase = "https://newsapi.org/v2"
	gnewsBase   = "https://gnews.io/api/v4"
)

// NewsConnector fetches articles from one of two interchangeable news
// providers. Queries may embed source:, from:DATE and to:DATE tokens in the
// free text; the connector extracts and strips them before issuing the
// request.
type NewsConnector struct {
	provider  NewsProvider
	apiKey    string
	baseURL   string
	client    *http.Client
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewNewsConnector creates a connector for the configured provider.
func NewNewsConnector(provider NewsProvider, apiKey string, logger *slog.Logger) *NewsConnector {
	base := newsAPIBase
	if provider == ProviderGNews {
		base = gnewsBase
	}
	return &NewsConnector{
		provider:  provider,
		apiKey:    apiKey,
		baseURL:   base,
		client:    &http.Client{Timeout: 30 * time.Second},
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Platform implements Connector.
func (c *NewsConnector) Platform() models.Platform {
	return models.PlatformNews
}

// RequiredCredentials implements Connector.
func (c *NewsConnector) RequiredCredentials() []string {
	return []string{"NEWS_API_KEY"}
}

// Authenticate implements Connector.
func (c *NewsConnector) Authenticate(ctx context.Context) error {
	if c.apiKey == "" {
		return &AuthenticationError{Platform: models.PlatformNews, Reason: "NEWS_API_KEY is not set"}
	}
	return nil
}

// Close implements Connector.
func (c *NewsConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// newsQuery is the parsed form of the informal query grammar.
type newsQuery struct {
	Text   string
	Source string
	From   time.Time
	To     time.Time
}

// parseNewsQuery extracts source:, from: and to: tokens from the free-text
// query. Unparseable date tokens are dropped rather than failing the query.
func parseNewsQuery(raw string) newsQuery {
	var q newsQuery
	var textParts []string

	for _, token := range strings.Fields(raw) {
		lower := strings.ToLower(token)
		switch {
		case strings.HasPrefix(lower, "source:"):
			q.Source = token[len("source:"):]
		case strings.HasPrefix(lower, "from:"):
			if t, err := parseNewsDate(token[len("from:"):]); err == nil {
				q.From = t
			}
		case strings.HasPrefix(lower, "to:"):
			if t, err := parseNewsDate(token[len("to:"):]); err == nil {
				q.To = t
			}
		default:
			textParts = append(textParts, token)
		}
	}

	q.Text = strings.Join(textParts, " ")
	return q
}

// parseNewsDate normalizes the date formats the grammar accepts to UTC.
func parseNewsDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02", "01-02-2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", raw)
}

type newsArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

type newsSearchResponse struct {
	Status       string        `json:"status,omitempty"`
	TotalResults int           `json:"totalResults"`
	Articles     []newsArticle `json:"articles"`
}

// FetchPosts issues one search against the configured provider.
func (c *NewsConnector) FetchPosts(ctx context.Context, query string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	parsed := parseNewsQuery(query)
	if parsed.From.IsZero() && cursor != nil && !cursor.LastTimestamp.IsZero() {
		parsed.From = cursor.LastTimestamp
	}

	reqURL := c.buildRequestURL(parsed, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build news request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("news search: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(models.PlatformNews, resp); err != nil {
		return nil, nil, err
	}

	var result newsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nil, fmt.Errorf("decode news response: %w", err)
	}

	var newest time.Time
	posts := make([]models.UnifiedPost, 0, len(result.Articles))
	for _, article := range result.Articles {
		post, err := c.normalizeArticle(article)
		if err != nil {
			c.logger.Warn("skipping article", "url", article.URL, "error", err)
			continue
		}
		if post.PostedAt.After(newest) {
			newest = post.PostedAt
		}
		posts = append(posts, post)
	}

	if newest.IsZero() {
		return posts, nil, nil
	}

	next := &models.FetchCursor{
		Platform:      models.PlatformNews,
		LastTimestamp: newest,
	}
	if cursor != nil {
		next.RuleID = cursor.RuleID
	}
	return posts, next, nil
}

// buildRequestURL maps the parsed query onto the provider's parameter names.
func (c *NewsConnector) buildRequestURL(q newsQuery, limit int) string {
	params := url.Values{}
	params.Set("q", q.Text)

	switch c.provider {
	case ProviderGNews:
		params.Set("max", strconv.Itoa(limit))
		params.Set("token", c.apiKey)
		params.Set("lang", "en")
		if !q.From.IsZero() {
			params.Set("from", q.From.Format(time.RFC3339))
		}
		if !q.To.IsZero() {
			params.Set("to", q.To.Format(time.RFC3339))
		}
		return fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	default:
		params.Set("pageSize", strconv.Itoa(limit))
		params.Set("apiKey", c.apiKey)
		params.Set("language", "en")
		params.Set("sortBy", "publishedAt")
		if q.Source != "" {
			params.Set("sources", q.Source)
		}
		if !q.From.IsZero() {
			params.Set("from", q.From.Format("2006-01-02"))
		}
		if !q.To.IsZero() {
			params.Set("to", q.To.Format("2006-01-02"))
		}
		return fmt.Sprintf("%s/everything?%s", c.baseURL, params.Encode())
	}
}

// normalizeArticle converts a provider article into a UnifiedPost. Provider
// timestamps are normalized to UTC.
func (c *NewsConnector) normalizeArticle(article newsArticle) (models.UnifiedPost, error) {
	if article.URL == "" || article.Title == "" {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformNews, Reason: "missing url or title"}
	}

	publishedAt, err := parseProviderTimestamp(article.PublishedAt)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformNews, Reason: err.Error()}
	}

	// Descriptions arrive with embedded markup from some sources.
	title := strings.TrimSpace(c.sanitizer.Sanitize(article.Title))
	description := strings.TrimSpace(c.sanitizer.Sanitize(article.Description))
	content := title
	if description != "" {
		content = title + ". " + description
	}

	cleanURL := CleanURL(article.URL)
	post, err := models.NewUnifiedPost(
		models.PlatformNews,
		"news-"+shortHash(cleanURL),
		article.Author,
		"",
		CleanText(content),
		cleanURL,
		publishedAt,
	)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformNews, Reason: err.Error()}
	}
	post.Metadata = map[string]any{"source_name": article.Source.Name, "provider": string(c.provider)}
	return post, nil
}

// parseProviderTimestamp accepts the date shapes the two providers emit and
// normalizes them to UTC.
func parseProviderTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable publishedAt: %q", raw)
}

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// RSSConnector ingests RSS/Atom feeds attached to a rule. The query passed to
// FetchPosts is the feed URL itself; the cursor's timestamp bounds incremental
// fetches.
type RSSConnector struct {
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewRSSConnector creates the feed connector.
func NewRSSConnector(logger *slog.Logger) *RSSConnector {
	parser := gofeed.NewParser()
	parser.UserAgent = defaultBrowserUA
	return &RSSConnector{
		parser:    parser,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Platform implements Connector.
func (c *RSSConnector) Platform() models.Platform {
	return models.PlatformRSS
}

// RequiredCredentials implements Connector; feeds are public.
func (c *RSSConnector) RequiredCredentials() []string {
	return nil
}

// Authenticate implements Connector.
func (c *RSSConnector) Authenticate(ctx context.Context) error {
	return nil
}

// Close implements Connector.
func (c *RSSConnector) Close() error {
	return nil
}

// FetchPosts parses the feed at the query URL, skipping items already covered
// by the cursor timestamp. A malformed item is skipped, never fatal.
func (c *RSSConnector) FetchPosts(ctx context.Context, feedURL string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error) {
	if limit <= 0 {
		limit = 25
	}

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	var since time.Time
	if cursor != nil {
		since = cursor.LastTimestamp
	}

	var newest time.Time
	posts := make([]models.UnifiedPost, 0, limit)
	for _, item := range feed.Items {
		if len(posts) >= limit {
			break
		}

		post, err := c.normalizeItem(feed, item)
		if err != nil {
			c.logger.Debug("skipping feed item", "feed", feedURL, "error", err)
			continue
		}
		if !since.IsZero() && !post.PostedAt.After(since) {
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
		Platform:      models.PlatformRSS,
		LastTimestamp: newest,
	}
	if cursor != nil {
		next.RuleID = cursor.RuleID
	}
	return posts, next, nil
}

// normalizeItem converts one feed entry into a UnifiedPost.
func (c *RSSConnector) normalizeItem(feed *gofeed.Feed, item *gofeed.Item) (models.UnifiedPost, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" || item.Title == "" {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformRSS, Reason: "missing link or title"}
	}

	postedAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		postedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		postedAt = item.UpdatedParsed.UTC()
	}

	title := strings.TrimSpace(c.sanitizer.Sanitize(item.Title))
	body := item.Description
	if body == "" {
		body = item.Content
	}
	body = strings.TrimSpace(c.sanitizer.Sanitize(body))

	content := title
	if body != "" {
		content = title + ". " + body
	}

	author := feed.Title
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	}

	cleanURL := CleanURL(link)
	post, err := models.NewUnifiedPost(
		models.PlatformRSS,
		"rss-"+shortHash(cleanURL),
		author,
		"",
		CleanText(content),
		cleanURL,
		postedAt,
	)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformRSS, Reason: err.Error()}
	}
	post.Metadata = map[string]any{"feed_title": feed.Title, "feed_url": feed.FeedLink}
	return post, nil
}

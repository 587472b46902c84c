package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const twitterAPIBase = "https://api.twitter.com/2"

// TwitterConnector searches recent tweets through the Twitter API v2.
// Incremental fetches use since_id from the cursor; pagination uses the
// provider's continuation token stored in the cursor metadata.
type TwitterConnector struct {
	bearerToken string
	baseURL     string
	client      *http.Client
	logger      *slog.Logger
}

// NewTwitterConnector creates a connector around the given bearer token.
func NewTwitterConnector(bearerToken string, logger *slog.Logger) *TwitterConnector {
	return &TwitterConnector{
		bearerToken: bearerToken,
		baseURL:     twitterAPIBase,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// Platform implements Connector.
func (c *TwitterConnector) Platform() models.Platform {
	return models.PlatformTwitter
}

// RequiredCredentials implements Connector.
func (c *TwitterConnector) RequiredCredentials() []string {
	return []string{"TWITTER_BEARER_TOKEN"}
}

// Authenticate verifies a token is configured. Token validity surfaces on the
// first fetch as an AuthenticationError from the 401 handler.
func (c *TwitterConnector) Authenticate(ctx context.Context) error {
	if c.bearerToken == "" {
		return &AuthenticationError{Platform: models.PlatformTwitter, Reason: "TWITTER_BEARER_TOKEN is not set"}
	}
	return nil
}

// Close implements Connector.
func (c *TwitterConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type twitterTweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

type twitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type twitterSearchResponse struct {
	Data     []twitterTweet `json:"data"`
	Includes struct {
		Users []twitterUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NewestID  string `json:"newest_id"`
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// FetchPosts runs one recent-search query and normalizes the page of tweets.
func (c *TwitterConnector) FetchPosts(ctx context.Context, query string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error) {
	if limit < 10 {
		limit = 10 // API minimum for max_results
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("tweet.fields", "created_at,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,name")
	if sinceID := cursorLastPostID(cursor); sinceID != "" {
		params.Set("since_id", sinceID)
	}
	if token := cursor.Meta("next_token"); token != "" {
		params.Set("next_token", token)
	}

	reqURL := fmt.Sprintf("%s/tweets/search/recent?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build twitter request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("twitter search: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(models.PlatformTwitter, resp); err != nil {
		return nil, nil, err
	}

	var result twitterSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nil, fmt.Errorf("decode twitter response: %w", err)
	}

	usersByID := make(map[string]twitterUser, len(result.Includes.Users))
	for _, u := range result.Includes.Users {
		usersByID[u.ID] = u
	}

	posts := make([]models.UnifiedPost, 0, len(result.Data))
	for _, tweet := range result.Data {
		post, err := c.normalizeTweet(tweet, usersByID)
		if err != nil {
			// A malformed item never aborts the batch.
			c.logger.Warn("skipping tweet", "tweet_id", tweet.ID, "error", err)
			continue
		}
		posts = append(posts, post)
	}

	next := nextTwitterCursor(cursor, result)
	return posts, next, nil
}

// normalizeTweet converts one raw tweet into a UnifiedPost.
func (c *TwitterConnector) normalizeTweet(tweet twitterTweet, users map[string]twitterUser) (models.UnifiedPost, error) {
	if tweet.ID == "" || tweet.Text == "" {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformTwitter, Reason: "missing id or text"}
	}

	user, hasUser := users[tweet.AuthorID]
	if !hasUser {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformTwitter, Reason: "author not in expansion payload"}
	}

	postedAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformTwitter, Reason: "unparseable created_at"}
	}

	tweetURL := fmt.Sprintf("https://twitter.com/%s/status/%s", user.Username, tweet.ID)
	post, err := models.NewUnifiedPost(
		models.PlatformTwitter,
		"twitter-"+tweet.ID,
		user.Name,
		user.Username,
		tweet.Text,
		tweetURL,
		postedAt,
	)
	if err != nil {
		return models.UnifiedPost{}, &NormalizationError{Platform: models.PlatformTwitter, Reason: err.Error()}
	}
	post.Metadata = map[string]any{"tweet_id": tweet.ID, "author_id": tweet.AuthorID}
	return post, nil
}

// nextTwitterCursor builds the incremental cursor from the response metadata.
// Returns nil when the provider supplied no marker at all.
func nextTwitterCursor(prev *models.FetchCursor, result twitterSearchResponse) *models.FetchCursor {
	if result.Meta.NewestID == "" && result.Meta.NextToken == "" {
		return nil
	}

	next := &models.FetchCursor{
		Platform:      models.PlatformTwitter,
		LastPostID:    result.Meta.NewestID,
		LastTimestamp: time.Now().UTC(),
		Metadata:      map[string]string{},
	}
	if prev != nil {
		next.RuleID = prev.RuleID
		if next.LastPostID == "" {
			next.LastPostID = prev.LastPostID
		}
	}
	if result.Meta.NextToken != "" {
		next.Metadata["next_token"] = result.Meta.NextToken
	}
	return next
}

func cursorLastPostID(cursor *models.FetchCursor) string {
	if cursor == nil {
		return ""
	}
	return cursor.LastPostID
}

// classifyResponse converts a non-200 provider response into the error
// taxonomy: 401/403 authentication, 429 rate limit with Retry-After, the rest
// APIError.
func classifyResponse(platform models.Platform, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthenticationError{Platform: platform, Reason: fmt.Sprintf("provider returned %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Platform: platform, RetryAfter: parseRetryAfter(resp)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Platform: platform, StatusCode: resp.StatusCode, Message: string(body)}
	}
}

// parseRetryAfter reads the Retry-After header in either seconds or reset
// epoch form.
func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return 0
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength bounds the sanitized content stored on a post.
const MaxContentLength = 1500

// UnifiedPost is the platform-agnostic representation every connector
// normalizes into. Immutable once constructed; QualityScore is the only field
// written later, by the filter chain.
type UnifiedPost struct {
	PostID       string         `json:"post_id"` // platform-qualified, e.g. "twitter-17223…"
	Platform     Platform       `json:"platform"`
	Author       string         `json:"author,omitempty"`
	Handle       string         `json:"handle,omitempty"`
	Content      string         `json:"content"`
	URL          string         `json:"url,omitempty"`
	PostedAt     time.Time      `json:"posted_at"`
	FetchedAt    time.Time      `json:"fetched_at"`
	QualityScore int            `json:"quality_score"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewUnifiedPost constructs a post, enforcing the model invariants: a
// non-empty platform-qualified ID, non-empty content, and bounded content
// length. Content longer than MaxContentLength is truncated with an ellipsis.
func NewUnifiedPost(platform Platform, postID, author, handle, content, url string, postedAt time.Time) (UnifiedPost, error) {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return UnifiedPost{}, err
	}
	if strings.TrimSpace(postID) == "" {
		return UnifiedPost{}, fmt.Errorf("post id is required")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return UnifiedPost{}, fmt.Errorf("post content is empty")
	}
	content = TruncateContent(content, MaxContentLength)

	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}

	return UnifiedPost{
		PostID:    postID,
		Platform:  platform,
		Author:    strings.TrimSpace(author),
		Handle:    strings.TrimPrefix(strings.TrimSpace(handle), "@"),
		Content:   content,
		URL:       url,
		PostedAt:  postedAt.UTC(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Fingerprint returns the deduplication hash for the post, derived from the
// platform, post ID and content. A changed content for the same ID therefore
// hashes differently and is treated as new.
func (p *UnifiedPost) Fingerprint() string {
	sum := sha256.Sum256([]byte(string(p.Platform) + "|" + p.PostID + "|" + p.Content))
	return hex.EncodeToString(sum[:])
}

// TruncateContent cuts s to at most max runes, appending an ellipsis marker
// when truncation happened.
func TruncateContent(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

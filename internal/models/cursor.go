package models

import "time"

// FetchCursor marks where the previous successful fetch for a
// (platform, rule) pair left off. Created on the first successful fetch,
// overwritten on every subsequent one, removed only by explicit reset.
type FetchCursor struct {
	Platform      Platform          `json:"platform"`
	RuleID        string            `json:"rule_id"`
	LastPostID    string            `json:"last_post_id,omitempty"`
	LastTimestamp time.Time         `json:"last_timestamp,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"` // provider continuation tokens etc.
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Meta returns a cursor metadata value, tolerating a nil map.
func (c *FetchCursor) Meta(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

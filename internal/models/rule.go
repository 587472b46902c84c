package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogicType controls how a rule combines its keywords and handles.
type LogicType string

const (
	LogicKeywordsOnly       LogicType = "keywords_only"
	LogicHandlesOnly        LogicType = "handles_only"
	LogicKeywordsAndHandles LogicType = "keywords_and_handles"
	LogicKeywordsOrHandles  LogicType = "keywords_or_handles"
)

// Frequency determines how often a rule runs and how many results a run may keep.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// ResultCap returns the maximum number of accepted posts a single run may
// produce. Real-time runs stay small and urgent; weekly runs read like a digest.
func (f Frequency) ResultCap() int {
	switch f {
	case FrequencyRealtime:
		return 10
	case FrequencyHourly:
		return 18
	case FrequencyDaily:
		return 25
	case FrequencyWeekly:
		return 50
	default:
		return 25
	}
}

// Interval returns the minimum wait between scheduled runs of a rule.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyRealtime:
		return 10 * time.Minute
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// RuleStatus marks whether a rule participates in scheduled ingestion.
type RuleStatus string

const (
	RuleStatusActive RuleStatus = "active"
	RuleStatusPaused RuleStatus = "paused"
)

// TrackingRule is a user-defined specification of what to monitor. The
// pipeline never mutates a rule except for its LastRunAt timestamp.
type TrackingRule struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Keywords  []string   `json:"keywords"`
	Handles   []string   `json:"handles"`
	Platforms []Platform `json:"platforms"`
	LogicType LogicType  `json:"logic_type"`
	Frequency Frequency  `json:"frequency"`
	Status    RuleStatus `json:"status"`
	FeedURLs  []string   `json:"feed_urls,omitempty"` // optional RSS feeds consumed by the news platform
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate applies defaults and checks the rule is runnable.
func (r *TrackingRule) Validate() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}

	r.Keywords = trimNonEmpty(r.Keywords)
	r.Handles = trimNonEmpty(r.Handles)

	if r.LogicType == "" {
		r.LogicType = LogicKeywordsOrHandles
	}
	switch r.LogicType {
	case LogicKeywordsOnly, LogicHandlesOnly, LogicKeywordsAndHandles, LogicKeywordsOrHandles:
	default:
		return fmt.Errorf("invalid logic type: %q", r.LogicType)
	}

	if r.LogicType != LogicHandlesOnly && len(r.Keywords) == 0 && len(r.Handles) == 0 {
		return fmt.Errorf("rule needs at least one keyword or handle")
	}
	if r.LogicType == LogicHandlesOnly && len(r.Handles) == 0 {
		return fmt.Errorf("handles_only rule needs at least one handle")
	}
	if r.LogicType == LogicKeywordsOnly && len(r.Keywords) == 0 {
		return fmt.Errorf("keywords_only rule needs at least one keyword")
	}

	if len(r.Platforms) == 0 {
		return fmt.Errorf("rule needs at least one platform")
	}
	seen := make(map[Platform]bool, len(r.Platforms))
	for _, p := range r.Platforms {
		if _, err := ParsePlatform(string(p)); err != nil {
			return err
		}
		if seen[p] {
			return fmt.Errorf("duplicate platform: %s", p)
		}
		seen[p] = true
	}

	if r.Frequency == "" {
		r.Frequency = FrequencyDaily
	}
	switch r.Frequency {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
	default:
		return fmt.Errorf("invalid frequency: %q", r.Frequency)
	}

	if r.Status == "" {
		r.Status = RuleStatusActive
	}
	switch r.Status {
	case RuleStatusActive, RuleStatusPaused:
	default:
		return fmt.Errorf("invalid status: %q", r.Status)
	}

	return nil
}

// UsesKeywords reports whether the rule's logic consumes its keyword set.
func (r *TrackingRule) UsesKeywords() bool {
	return r.LogicType != LogicHandlesOnly && len(r.Keywords) > 0
}

// UsesHandles reports whether the rule's logic consumes its handle set.
func (r *TrackingRule) UsesHandles() bool {
	return r.LogicType != LogicKeywordsOnly && len(r.Handles) > 0
}

// Due reports whether enough time has elapsed since the last run for the
// rule's frequency.
func (r *TrackingRule) Due(now time.Time) bool {
	if r.Status != RuleStatusActive {
		return false
	}
	if r.LastRunAt == nil {
		return true
	}
	return now.Sub(*r.LastRunAt) >= r.Frequency.Interval()
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

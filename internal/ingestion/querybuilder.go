package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// MaxQueriesPerPlatform caps the queries executed per platform per rule run.
// The cap protects upstream rate limits and is not a tunable business rule.
const MaxQueriesPerPlatform = 5

// QueryBuilder turns a rule's keywords, handles, platform and frequency into
// prioritized source-specific query strings.
type QueryBuilder struct {
	// Year anchors the frequency-dependent recency vocabulary. Defaults to
	// the current wall-clock year.
	Year int
}

// NewQueryBuilder constructs a builder anchored to the current year.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{Year: time.Now().UTC().Year()}
}

// Build returns at most MaxQueriesPerPlatform queries for the platform,
// handle-targeted queries first (most specific), keyword-targeted after.
// Under keywords_and_handles logic the keywords ride inside the handle
// queries; standalone keyword queries would match posts with no handle at all.
func (b *QueryBuilder) Build(rule models.TrackingRule, platform models.Platform) []string {
	var queries []string

	if rule.UsesHandles() {
		queries = append(queries, b.handleQueries(rule, platform)...)
	}
	combined := rule.LogicType == models.LogicKeywordsAndHandles && len(rule.Handles) > 0
	if rule.UsesKeywords() && !combined {
		queries = append(queries, b.keywordQueries(rule, platform)...)
	}

	if len(queries) > MaxQueriesPerPlatform {
		queries = queries[:MaxQueriesPerPlatform]
	}
	return queries
}

// handleQueries targets specific accounts or organizations.
func (b *QueryBuilder) handleQueries(rule models.TrackingRule, platform models.Platform) []string {
	queries := make([]string, 0, len(rule.Handles))

	var andTerms string
	if rule.LogicType == models.LogicKeywordsAndHandles && len(rule.Keywords) > 0 {
		andTerms = strings.Join(quoteMulti(rule.Keywords), " OR ")
	}

	for _, handle := range rule.Handles {
		handle = strings.TrimPrefix(handle, "@")

		switch platform {
		case models.PlatformTwitter:
			q := fmt.Sprintf("from:%s -is:retweet", handle)
			if andTerms != "" {
				q = fmt.Sprintf("from:%s (%s) -is:retweet", handle, andTerms)
			}
			queries = append(queries, q)
		case models.PlatformNews, models.PlatformRSS:
			q := fmt.Sprintf("%q %s", handle, b.recencyTokens(rule.Frequency))
			if andTerms != "" {
				q = fmt.Sprintf("%q (%s) %s", handle, andTerms, b.recencyTokens(rule.Frequency))
			}
			queries = append(queries, q)
		default:
			// Scrape-backed platforms search for the handle on its home site.
			q := fmt.Sprintf("%q %s %s", handle, siteToken(platform), b.recencyTokens(rule.Frequency))
			if andTerms != "" {
				q = fmt.Sprintf("%q (%s) %s %s", handle, andTerms, siteToken(platform), b.recencyTokens(rule.Frequency))
			}
			queries = append(queries, q)
		}
	}
	return queries
}

// keywordQueries cover the rule's subject terms.
func (b *QueryBuilder) keywordQueries(rule models.TrackingRule, platform models.Platform) []string {
	if len(rule.Keywords) == 0 {
		return nil
	}

	switch platform {
	case models.PlatformTwitter:
		// One boolean query per rule keeps the request count down.
		return []string{fmt.Sprintf("(%s) -is:retweet lang:en", strings.Join(quoteMulti(rule.Keywords), " OR "))}
	case models.PlatformNews, models.PlatformRSS:
		queries := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			queries = append(queries, fmt.Sprintf("%s %s", kw, b.recencyTokens(rule.Frequency)))
		}
		return queries
	default:
		queries := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			queries = append(queries, strings.TrimSpace(fmt.Sprintf("%q %s %s", kw, siteToken(platform), b.recencyTokens(rule.Frequency))))
		}
		return queries
	}
}

// recencyTokens biases query results toward the rule's cadence: real-time
// rules chase breaking items, slower cadences widen to digests and forecasts.
func (b *QueryBuilder) recencyTokens(freq models.Frequency) string {
	switch freq {
	case models.FrequencyRealtime:
		return `breaking OR "just announced"`
	case models.FrequencyHourly:
		return fmt.Sprintf("today OR latest %d", b.Year)
	case models.FrequencyDaily:
		return fmt.Sprintf("latest news %d", b.Year)
	case models.FrequencyWeekly:
		return fmt.Sprintf("latest OR forecast %d", b.Year+1)
	default:
		return fmt.Sprintf("latest %d", b.Year)
	}
}

// siteToken restricts a web search to the platform's own domain.
func siteToken(platform models.Platform) string {
	switch platform {
	case models.PlatformLinkedIn:
		return "site:linkedin.com"
	case models.PlatformReddit:
		return "site:reddit.com"
	case models.PlatformTwitter:
		return "site:twitter.com"
	default:
		return ""
	}
}

func quoteMulti(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.ContainsRune(t, ' ') {
			out = append(out, fmt.Sprintf("%q", t))
		} else {
			out = append(out, t)
		}
	}
	return out
}

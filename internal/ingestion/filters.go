package ingestion

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// Filter stage names, recorded on rejections for metrics and run summaries.
const (
	StageDedup    = "dedup"
	StageIndustry = "industry_relevance"
	StageRecency  = "recency"
	StageAccepted = "accepted"
)

// personalVocab flags personal-achievement announcements (awards, promotions,
// anniversaries, first-person phrasing).
var personalVocab = []string{
	"birthday", "anniversary", "wedding", "congratulations to me",
	"i am thrilled", "i'm thrilled", "i am excited", "i'm excited",
	"i am honored", "i'm honored", "i am humbled", "i'm humbled",
	"my new role", "my promotion", "my journey", "personal milestone",
	"proud to announce that i", "graduated", "work anniversary",
	"new certification", "certified in",
}

// orgVocab marks organizational context that rescues an otherwise personal
// sounding item.
var orgVocab = []string{
	"company", "corporation", "corp", "inc.", "ltd", "startup", "firm",
	"organization", "enterprise", "product", "platform", "service",
	"launched", "launches", "announced", "unveiled", "released",
	"our team", "the team",
}

// industryVocab scores industry/business news signals.
var industryVocab = []string{
	"funding", "acquisition", "acquires", "merger", "ipo", "valuation",
	"market share", "revenue", "growth", "expansion", "partnership",
	"competitor", "industry", "sector", "quarterly", "earnings",
	"investment", "investors", "strategy", "regulation", "layoffs",
	"hiring", "customers", "contract", "deal",
}

// businessContextVocab is the explicit business-context requirement for
// social-platform posts.
var businessContextVocab = []string{
	"business", "market", "industry", "enterprise", "b2b", "saas",
	"startup", "company", "ceo", "founder", "product launch",
}

// highValueVocab and mediumValueVocab drive the quality score; celebratory
// vocabulary penalizes it.
var highValueVocab = []string{
	"acquisition", "merger", "funding round", "ipo", "market share",
	"breakthrough", "partnership", "regulation",
}

var mediumValueVocab = []string{
	"launch", "growth", "expansion", "investment", "revenue",
	"hiring", "product", "strategy", "customers",
}

var celebratoryVocab = []string{
	"birthday", "anniversary", "congratulations", "celebrate",
	"thrilled", "honored", "humbled", "proud of myself",
}

var recencyTokens = []string{
	"today", "yesterday", "this week", "this month", "breaking",
	"just now", "just announced", "upcoming", "forecast", "outlook",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// FilterChain applies the sequential relevance stages to candidate posts:
// deduplication, industry-relevance classification, recency classification,
// and advisory quality scoring. Each stage may reject; the classifier is a
// rule-based lexical heuristic so every decision stays auditable per item.
type FilterChain struct {
	dedup        DedupStore
	boundaryYear int
	logger       *slog.Logger
}

// NewFilterChain builds a chain over the shared dedup store. boundaryYear is
// the configured "current" year for the recency stage; zero means the current
// wall-clock year.
func NewFilterChain(dedup DedupStore, boundaryYear int, logger *slog.Logger) *FilterChain {
	if boundaryYear == 0 {
		boundaryYear = time.Now().UTC().Year()
	}
	return &FilterChain{
		dedup:        dedup,
		boundaryYear: boundaryYear,
		logger:       logger,
	}
}

// Apply runs the post through all stages. It returns the stage that rejected
// the post, or StageAccepted with the quality score assigned on the post.
func (f *FilterChain) Apply(post *models.UnifiedPost) string {
	if !f.dedup.CheckAndRemember(post.Fingerprint()) {
		return StageDedup
	}
	if !f.IndustryRelevant(post) {
		return StageIndustry
	}
	if !f.IsRecent(post.Content) {
		return StageRecency
	}

	post.QualityScore = QualityScore(post.Content)
	return StageAccepted
}

// IndustryRelevant distinguishes organizational/industry news from personal
// announcements. Personal vocabulary with no competing organizational
// vocabulary rejects; otherwise the post needs an industry keyword, a general
// news source, or (for social platforms) an explicit business-context term.
func (f *FilterChain) IndustryRelevant(post *models.UnifiedPost) bool {
	content := strings.ToLower(post.Content)

	personalHits := countMatches(content, personalVocab)
	orgHits := countMatches(content, orgVocab)

	if personalHits > 0 && orgHits == 0 {
		f.logger.Debug("rejecting personal announcement",
			"post_id", post.PostID,
			"personal_hits", personalHits)
		return false
	}

	industryHits := countMatches(content, industryVocab)
	if post.Platform.IsNewsSource() {
		return true
	}
	if industryHits > 0 {
		return true
	}
	if post.Platform.IsSocial() && countMatches(content, businessContextVocab) > 0 {
		return true
	}
	return false
}

// IsRecent rejects content anchored to a year before the boundary year with
// no forward-looking signal. Ambiguity defaults to accept: recall is
// prioritized over precision here.
func (f *FilterChain) IsRecent(content string) bool {
	lower := strings.ToLower(content)

	recencyHits := 0
	for _, token := range recencyTokens {
		if strings.Contains(lower, token) {
			recencyHits++
		}
	}
	if recencyHits >= 2 {
		return true
	}

	years := yearPattern.FindAllString(content, -1)
	hasStale, hasCurrent := false, false
	for _, raw := range years {
		year, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch {
		case year >= f.boundaryYear && year <= f.boundaryYear+2:
			hasCurrent = true
		case year < f.boundaryYear:
			hasStale = true
		}
	}

	if hasCurrent {
		return true
	}
	if hasStale && recencyHits == 0 {
		return false
	}
	return true
}

// QualityScore rates content in [0,10]: base 5, raised by high-value and
// medium-value business vocabulary, lowered by personal/celebratory
// vocabulary, clamped. The score ranks accepted posts; it never rejects.
func QualityScore(content string) int {
	score := 5
	lower := strings.ToLower(content)

	switch hits := countMatches(lower, highValueVocab); {
	case hits >= 2:
		score += 3
	case hits == 1:
		score += 2
	}

	switch hits := countMatches(lower, mediumValueVocab); {
	case hits >= 2:
		score += 2
	case hits == 1:
		score++
	}

	switch hits := countMatches(lower, celebratoryVocab); {
	case hits >= 2:
		score -= 2
	case hits == 1:
		score--
	}

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func countMatches(haystack string, vocab []string) int {
	hits := 0
	for _, term := range vocab {
		if strings.Contains(haystack, term) {
			hits++
		}
	}
	return hits
}

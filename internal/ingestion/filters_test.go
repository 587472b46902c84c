package ingestion

import (
	"testing"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

func newTestChain(t *testing.T, boundaryYear int) *FilterChain {
	t.Helper()
	return NewFilterChain(NewBoundedDedupStore(100), boundaryYear, testLogger())
}

func mustPost(t *testing.T, platform models.Platform, id, content string) *models.UnifiedPost {
	t.Helper()
	post, err := models.NewUnifiedPost(platform, id, "Author", "author", content, "https://example.com/"+id, time.Now())
	if err != nil {
		t.Fatalf("NewUnifiedPost: %v", err)
	}
	return &post
}

func TestFilterChain_RejectsDuplicates(t *testing.T) {
	chain := newTestChain(t, 2026)
	post := mustPost(t, models.PlatformNews, "news-1", "Acme announced a funding round today, the 2026 industry outlook improves")

	if stage := chain.Apply(post); stage != StageAccepted {
		t.Fatalf("first pass should accept, got %q", stage)
	}

	dup := mustPost(t, models.PlatformNews, "news-1", "Acme announced a funding round today, the 2026 industry outlook improves")
	if stage := chain.Apply(dup); stage != StageDedup {
		t.Fatalf("second pass should reject as duplicate, got %q", stage)
	}
}

func TestFilterChain_RejectsPersonalAnnouncements(t *testing.T) {
	chain := newTestChain(t, 2026)

	personal := []string{
		"Happy birthday to our CEO! What a wonderful celebration",
		"I'm thrilled to share that I graduated this week",
		"Celebrating my work anniversary and my journey so far",
	}
	for i, content := range personal {
		post := mustPost(t, models.PlatformLinkedIn, stringID("personal", i), content)
		if chain.IndustryRelevant(post) {
			t.Errorf("expected personal announcement rejected: %q", content)
		}
	}
}

func TestFilterChain_OrgContextRescuesPersonalVocabulary(t *testing.T) {
	chain := newTestChain(t, 2026)

	post := mustPost(t, models.PlatformLinkedIn, "rescue-1",
		"I'm thrilled that our company launched a new enterprise product for the b2b market")
	if !chain.IndustryRelevant(post) {
		t.Error("organizational context should rescue personal phrasing")
	}
}

func TestFilterChain_NewsSourcesPassWithoutIndustryTerms(t *testing.T) {
	chain := newTestChain(t, 2026)

	post := mustPost(t, models.PlatformNews, "news-plain", "Local firm opens a second office downtown next month")
	if !chain.IndustryRelevant(post) {
		t.Error("general news sources should pass the relevance gate")
	}
}

func TestFilterChain_SocialNeedsBusinessContext(t *testing.T) {
	chain := newTestChain(t, 2026)

	vague := mustPost(t, models.PlatformTwitter, "social-vague", "What a great afternoon at the lake with friends, highly recommend it")
	if chain.IndustryRelevant(vague) {
		t.Error("social post without business context should be rejected")
	}

	business := mustPost(t, models.PlatformTwitter, "social-biz", "The enterprise saas market keeps consolidating, startup valuations under pressure")
	if !chain.IndustryRelevant(business) {
		t.Error("social post with business context should pass")
	}
}

func TestFilterChain_Recency(t *testing.T) {
	chain := newTestChain(t, 2026)

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"current year", "Acme revenue grew in 2026 across all regions", true},
		{"future year", "The 2027 forecast calls for consolidation", true},
		{"stale year only", "Acme's 2019 results were outstanding", false},
		{"stale year with recency tokens", "Looking back at 2019 today: breaking analysis of what changed", true},
		{"two recency tokens", "Breaking: just announced partnership expansion", true},
		{"no anchors at all", "Acme expands its partnership with Globex", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chain.IsRecent(tt.content); got != tt.want {
				t.Errorf("IsRecent(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"neutral content", "the office will be repainted over the weekend", 5},
		{"one high-value term", "Acme completed the acquisition quietly", 7},
		{"high and medium terms", "The merger and acquisition boosts revenue and growth prospects", 10},
		{"celebratory penalty", "Congratulations on the birthday celebration, thrilled and honored everyone", 3},
		{"empty content", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QualityScore(tt.content); got != tt.want {
				t.Errorf("QualityScore(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}

func TestQualityScore_Clamped(t *testing.T) {
	for _, content := range []string{
		"acquisition merger funding round ipo market share breakthrough partnership regulation launch growth",
		"birthday anniversary congratulations celebrate thrilled honored humbled",
	} {
		score := QualityScore(content)
		if score < 0 || score > 10 {
			t.Errorf("QualityScore(%q) = %d, outside [0,10]", content, score)
		}
	}
}

func TestFilterChain_ApplySetsQualityScore(t *testing.T) {
	chain := newTestChain(t, 2026)
	post := mustPost(t, models.PlatformNews, "scored-1", "Acme acquisition expands 2026 market share and revenue growth")

	if stage := chain.Apply(post); stage != StageAccepted {
		t.Fatalf("expected acceptance, got %q", stage)
	}
	if post.QualityScore <= 5 {
		t.Errorf("expected elevated quality score, got %d", post.QualityScore)
	}
}

func stringID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// Metrics is the observation hook the orchestrator reports into. The concrete
// Prometheus collector lives in the metrics package; tests use NopMetrics.
type Metrics interface {
	RecordFetch(platform models.Platform, posts int, err error)
	RecordFilter(stage string)
	RecordRun(result models.IngestionResult)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(models.Platform, int, error) {}
func (NopMetrics) RecordFilter(string)                     {}
func (NopMetrics) RecordRun(models.IngestionResult)        {}

// OrchestratorConfig tunes run execution.
type OrchestratorConfig struct {
	// InterQueryDelay paces consecutive queries against the same platform.
	InterQueryDelay time.Duration

	// MaxConcurrentPlatforms bounds the platform fan-out within one run.
	MaxConcurrentPlatforms int

	// RetryPolicy wraps every connector fetch.
	RetryPolicy RetryPolicy
}

// DefaultOrchestratorConfig returns the production tuning.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		InterQueryDelay:        1500 * time.Millisecond,
		MaxConcurrentPlatforms: 3,
		RetryPolicy:            DefaultRetryPolicy(),
	}
}

// Orchestrator coordinates one full ingestion cycle per rule: query building,
// per-platform fetching through registered connectors, filtering, ranking and
// persistence. A run degrades instead of failing: any platform's failure is
// recorded on the result while the remaining platforms still contribute.
type Orchestrator struct {
	registry *Registry
	builder  *QueryBuilder
	cursors  CursorStore
	filters  *FilterChain
	posts    PostRepository
	rules    RuleRepository
	metrics  Metrics
	logger   *slog.Logger
	cfg      OrchestratorConfig
}

// NewOrchestrator wires the pipeline. metrics may be nil.
func NewOrchestrator(
	registry *Registry,
	builder *QueryBuilder,
	cursors CursorStore,
	filters *FilterChain,
	posts PostRepository,
	rules RuleRepository,
	metrics Metrics,
	logger *slog.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg.InterQueryDelay <= 0 {
		cfg.InterQueryDelay = 1500 * time.Millisecond
	}
	if cfg.MaxConcurrentPlatforms <= 0 {
		cfg.MaxConcurrentPlatforms = 3
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}
	return &Orchestrator{
		registry: registry,
		builder:  builder,
		cursors:  cursors,
		filters:  filters,
		posts:    posts,
		rules:    rules,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// platformOutcome collects one platform's contribution to a run.
type platformOutcome struct {
	posts         []models.UnifiedPost
	errs          []string
	cursorUpdated bool
}

// RunIngestion executes one ingestion cycle for the rule. It never returns an
// error: every failure mode, up to and including zero usable connectors, is
// reported inside the IngestionResult.
func (o *Orchestrator) RunIngestion(ctx context.Context, rule models.TrackingRule) models.IngestionResult {
	started := time.Now().UTC()
	result := models.IngestionResult{
		RunID:     uuid.NewString(),
		RuleID:    rule.ID,
		StartedAt: started,
		Errors:    []string{},
	}

	logger := o.logger.With("run_id", result.RunID, "rule_id", rule.ID, "rule", rule.Name)
	logger.Info("starting ingestion run", "platforms", rule.Platforms, "frequency", rule.Frequency)

	platforms := o.runPlatforms(rule)
	if len(platforms) == 0 {
		result.AddError("rule has no runnable platforms")
		result.DurationSeconds = time.Since(started).Seconds()
		o.metrics.RecordRun(result)
		return result
	}

	var mu sync.Mutex
	var candidates []models.UnifiedPost

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentPlatforms)
	for _, platform := range platforms {
		platform := platform
		g.Go(func() error {
			outcome := o.runPlatform(gctx, logger, rule, platform)
			mu.Lock()
			candidates = append(candidates, outcome.posts...)
			result.Errors = append(result.Errors, outcome.errs...)
			if outcome.cursorUpdated {
				result.CursorUpdated = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.PostsFetched = len(candidates)

	// Filter. A per-run URL set catches the same story surfacing on two
	// platforms, where fingerprints differ but the link does not.
	seenURLs := make(map[string]bool, len(candidates))
	accepted := make([]models.UnifiedPost, 0, len(candidates))
	for i := range candidates {
		post := &candidates[i]
		if post.URL != "" && seenURLs[post.URL] {
			result.DuplicatesSkipped++
			o.metrics.RecordFilter(StageDedup)
			continue
		}

		stage := o.filters.Apply(post)
		o.metrics.RecordFilter(stage)
		switch stage {
		case StageAccepted:
			if post.URL != "" {
				seenURLs[post.URL] = true
			}
			accepted = append(accepted, *post)
		case StageDedup:
			result.DuplicatesSkipped++
		default:
			result.FilteredOut++
		}
	}

	// Rank and cap: quality first, recency breaks ties.
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].QualityScore != accepted[j].QualityScore {
			return accepted[i].QualityScore > accepted[j].QualityScore
		}
		return accepted[i].PostedAt.After(accepted[j].PostedAt)
	})
	if keep := rule.Frequency.ResultCap(); len(accepted) > keep {
		result.FilteredOut += len(accepted) - keep
		accepted = accepted[:keep]
	}

	if len(accepted) > 0 {
		if err := o.posts.StoreBatch(ctx, rule.ID, accepted); err != nil {
			result.AddError(fmt.Sprintf("store posts: %v", err))
		}
	}
	result.PostsProcessed = len(accepted)

	if o.rules != nil {
		if err := o.rules.UpdateLastRun(ctx, rule.ID, started); err != nil {
			result.AddError(fmt.Sprintf("stamp last run: %v", err))
		}
	}

	result.DurationSeconds = time.Since(started).Seconds()
	o.metrics.RecordRun(result)
	logger.Info("ingestion run complete",
		"fetched", result.PostsFetched,
		"processed", result.PostsProcessed,
		"duplicates", result.DuplicatesSkipped,
		"filtered", result.FilteredOut,
		"errors", len(result.Errors),
		"duration_s", result.DurationSeconds)
	return result
}

// runPlatforms resolves which platforms this run fetches from: the rule's own
// list, plus the feed platform when the rule carries feed URLs.
func (o *Orchestrator) runPlatforms(rule models.TrackingRule) []models.Platform {
	platforms := make([]models.Platform, 0, len(rule.Platforms)+1)
	hasRSS := false
	for _, p := range rule.Platforms {
		platforms = append(platforms, p)
		if p == models.PlatformRSS {
			hasRSS = true
		}
	}
	if len(rule.FeedURLs) > 0 && !hasRSS {
		platforms = append(platforms, models.PlatformRSS)
	}
	return platforms
}

// runPlatform fetches every query for one platform sequentially, pacing
// between queries. The primary (API) connector runs first; when the platform
// carries a scrape supplement it runs after, with a reduced limit if the API
// already returned enough. Authentication failure disables only the failing
// connector for this run, so a platform with a dead API still degrades to
// scrape-only instead of going dark.
func (o *Orchestrator) runPlatform(ctx context.Context, logger *slog.Logger, rule models.TrackingRule, platform models.Platform) platformOutcome {
	var out platformOutcome

	primary, _ := o.registry.Lookup(platform)
	supplement, _ := o.registry.LookupSupplement(platform)
	if primary == nil && supplement == nil {
		out.errs = append(out.errs, fmt.Sprintf("%s: no connector registered", platform))
		return out
	}

	if primary != nil {
		if err := primary.Authenticate(ctx); err != nil {
			logger.Warn("platform api unavailable", "platform", platform, "error", err)
			out.errs = append(out.errs, fmt.Sprintf("%s: %v", platform, err))
			primary = nil
		}
	}
	if supplement != nil {
		if err := supplement.Authenticate(ctx); err != nil {
			logger.Warn("scrape supplement unavailable", "platform", platform, "error", err)
			out.errs = append(out.errs, fmt.Sprintf("%s: %v", platform, err))
			supplement = nil
		}
	}
	if primary == nil && supplement == nil {
		return out
	}

	queries := o.platformQueries(rule, platform)
	if len(queries) == 0 {
		return out
	}

	cursor, err := o.cursors.Get(ctx, platform, rule.ID)
	if err != nil {
		logger.Warn("cursor read failed, fetching from scratch", "platform", platform, "error", err)
		out.errs = append(out.errs, fmt.Sprintf("%s: cursor read: %v", platform, err))
		cursor = nil
	}

	limit := rule.Frequency.ResultCap()
	var nextCursor *models.FetchCursor
	for i, query := range queries {
		if i > 0 {
			select {
			case <-ctx.Done():
				out.errs = append(out.errs, fmt.Sprintf("%s: run cancelled", platform))
				return out
			case <-time.After(o.cfg.InterQueryDelay):
			}
		}

		fromAPI := 0
		if primary != nil {
			posts, next, err := o.fetchQuery(ctx, primary, query, cursor, limit)
			if err != nil {
				logger.Warn("query failed", "platform", platform, "query", query, "error", err)
				out.errs = append(out.errs, fmt.Sprintf("%s: %v", platform, err))
				var authErr *AuthenticationError
				if errors.As(err, &authErr) {
					// Credentials went bad mid-run; the scrape pass keeps going.
					primary = nil
				}
			} else {
				out.posts = append(out.posts, posts...)
				fromAPI = len(posts)
				if next != nil {
					nextCursor = next
				}
			}
		}

		if supplement != nil {
			// The supplement never consumes the cursor; it has no stable
			// pagination and re-deduplicates through the filter chain.
			posts, _, err := o.fetchQuery(ctx, supplement, query, nil, supplementLimit(limit, fromAPI))
			if err != nil {
				logger.Warn("scrape supplement failed", "platform", platform, "query", query, "error", err)
				out.errs = append(out.errs, fmt.Sprintf("%s: %v", platform, err))
				var authErr *AuthenticationError
				if errors.As(err, &authErr) {
					supplement = nil
				}
			} else {
				out.posts = append(out.posts, posts...)
			}
		}

		if primary == nil && supplement == nil {
			break
		}
	}

	if nextCursor != nil {
		nextCursor.Platform = platform
		nextCursor.RuleID = rule.ID
		if err := o.cursors.Put(ctx, *nextCursor); err != nil {
			out.errs = append(out.errs, fmt.Sprintf("%s: cursor write: %v", platform, err))
		} else {
			out.cursorUpdated = true
		}
	}
	return out
}

// fetchQuery runs one connector fetch under the retry policy and records it.
func (o *Orchestrator) fetchQuery(ctx context.Context, c Connector, query string, cursor *models.FetchCursor, limit int) ([]models.UnifiedPost, *models.FetchCursor, error) {
	var posts []models.UnifiedPost
	var next *models.FetchCursor
	err := Retry(ctx, o.cfg.RetryPolicy, func() error {
		var fetchErr error
		posts, next, fetchErr = c.FetchPosts(ctx, query, cursor, limit)
		return fetchErr
	})
	o.metrics.RecordFetch(c.Platform(), len(posts), err)
	return posts, next, err
}

// supplementLimit sizes the scrape pass behind an API fetch: full limit while
// the API came back thin, a third of it once the API covered at least half.
func supplementLimit(limit, apiFetched int) int {
	if apiFetched*2 < limit {
		return limit
	}
	reduced := limit / 3
	if reduced < 2 {
		reduced = 2
	}
	return reduced
}

// platformQueries resolves what to fetch: built search queries for every
// platform except feeds, where the rule's feed URLs are the work items.
func (o *Orchestrator) platformQueries(rule models.TrackingRule, platform models.Platform) []string {
	if platform == models.PlatformRSS {
		feeds := rule.FeedURLs
		if len(feeds) > MaxQueriesPerPlatform {
			feeds = feeds[:MaxQueriesPerPlatform]
		}
		return feeds
	}
	return o.builder.Build(rule, platform)
}

// RunBulkIngestion runs the given rules sequentially, one result per rule.
// Every listed rule runs regardless of its schedule; callers that only want
// the rules whose interval has elapsed use RunDueRules.
func (o *Orchestrator) RunBulkIngestion(ctx context.Context, rules []models.TrackingRule) []models.IngestionResult {
	results := make([]models.IngestionResult, 0, len(rules))
	for _, rule := range rules {
		if ctx.Err() != nil {
			return results
		}
		results = append(results, o.RunIngestion(ctx, rule))
	}
	return results
}

// RunDueRules sweeps the active rules and runs the ones whose frequency
// interval has elapsed. This is the scheduler's entry point.
func (o *Orchestrator) RunDueRules(ctx context.Context) ([]models.IngestionResult, error) {
	if o.rules == nil {
		return nil, fmt.Errorf("no rule repository configured")
	}

	active, err := o.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	now := time.Now().UTC()
	due := make([]models.TrackingRule, 0, len(active))
	for _, rule := range active {
		if rule.Due(now) {
			due = append(due, rule)
		}
	}
	return o.RunBulkIngestion(ctx, due), nil
}

// PipelineStatus describes connector availability for the status endpoint.
type PipelineStatus struct {
	AvailablePlatforms []models.Platform          `json:"available_platforms"`
	ConnectorAuth      map[models.Platform]string `json:"connector_auth"`
}

// Status reports the registered platforms and their authentication state.
func (o *Orchestrator) Status(ctx context.Context) PipelineStatus {
	platforms := o.registry.Platforms()
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return PipelineStatus{
		AvailablePlatforms: platforms,
		ConnectorAuth:      o.registry.AuthStatus(ctx),
	}
}

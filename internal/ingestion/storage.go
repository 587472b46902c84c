package ingestion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// PostRepository is the persistence collaborator that receives the final
// accepted posts of a run. The pipeline itself holds no long-lived database
// connection; it only calls through this interface.
type PostRepository interface {
	// StoreBatch saves a run's accepted posts for a rule.
	StoreBatch(ctx context.Context, ruleID string, posts []models.UnifiedPost) error

	// ListByRule returns the most recently posted items for a rule.
	ListByRule(ctx context.Context, ruleID string, limit int) ([]models.UnifiedPost, error)
}

// RuleRepository provides the tracking rules the scheduler runs. Rule
// management itself belongs to an external collaborator; the pipeline only
// reads rules and stamps LastRunAt.
type RuleRepository interface {
	Create(ctx context.Context, rule models.TrackingRule) error
	GetByID(ctx context.Context, id string) (*models.TrackingRule, error)
	List(ctx context.Context) ([]models.TrackingRule, error)
	ListActive(ctx context.Context) ([]models.TrackingRule, error)
	UpdateStatus(ctx context.Context, id string, status models.RuleStatus) error
	UpdateLastRun(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// MemoryPostRepository is the in-process PostRepository used by tests and
// degraded (database-less) mode.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string][]models.UnifiedPost // ruleID -> posts
}

// NewMemoryPostRepository creates an empty in-memory post repository.
func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[string][]models.UnifiedPost),
	}
}

// StoreBatch appends the posts under the rule.
func (r *MemoryPostRepository) StoreBatch(ctx context.Context, ruleID string, posts []models.UnifiedPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[ruleID] = append(r.posts[ruleID], posts...)
	return nil
}

// ListByRule returns up to limit posts for the rule, newest first.
func (r *MemoryPostRepository) ListByRule(ctx context.Context, ruleID string, limit int) ([]models.UnifiedPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.posts[ruleID]
	out := make([]models.UnifiedPost, len(stored))
	copy(out, stored)

	sort.Slice(out, func(i, j int) bool {
		return out[i].PostedAt.After(out[j].PostedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryRuleRepository is the in-process RuleRepository.
type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]models.TrackingRule
}

// NewMemoryRuleRepository creates an empty in-memory rule repository.
func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{
		rules: make(map[string]models.TrackingRule),
	}
}

// Create stores a validated rule.
func (r *MemoryRuleRepository) Create(ctx context.Context, rule models.TrackingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.CreatedAt = time.Now().UTC()
	rule.UpdatedAt = rule.CreatedAt
	r.rules[rule.ID] = rule
	return nil
}

// GetByID returns a copy of the rule, or nil when absent.
func (r *MemoryRuleRepository) GetByID(ctx context.Context, id string) (*models.TrackingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

// List returns all rules.
func (r *MemoryRuleRepository) List(ctx context.Context) ([]models.TrackingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TrackingRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListActive returns rules with active status.
func (r *MemoryRuleRepository) ListActive(ctx context.Context) ([]models.TrackingRule, error) {
	all, _ := r.List(ctx)
	out := make([]models.TrackingRule, 0, len(all))
	for _, rule := range all {
		if rule.Status == models.RuleStatusActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

// UpdateStatus flips a rule between active and paused.
func (r *MemoryRuleRepository) UpdateStatus(ctx context.Context, id string, status models.RuleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil
	}
	rule.Status = status
	rule.UpdatedAt = time.Now().UTC()
	r.rules[id] = rule
	return nil
}

// UpdateLastRun stamps the only rule field the pipeline mutates.
func (r *MemoryRuleRepository) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil
	}
	rule.LastRunAt = &at
	r.rules[id] = rule
	return nil
}

// Delete removes a rule.
func (r *MemoryRuleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, id)
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// PostgresRuleRepository persists tracking rules.
type PostgresRuleRepository struct {
	db *sql.DB
}

func NewPostgresRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

func (r *PostgresRuleRepository) Create(ctx context.Context, rule models.TrackingRule) error {
	query := `
		INSERT INTO tracking_rules
		(id, owner_id, name, keywords, handles, platforms, logic_type,
		 frequency, status, feed_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	platforms := make([]string, len(rule.Platforms))
	for i, p := range rule.Platforms {
		platforms[i] = string(p)
	}

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.OwnerID,
		rule.Name,
		pq.Array(rule.Keywords),
		pq.Array(rule.Handles),
		pq.Array(platforms),
		string(rule.LogicType),
		string(rule.Frequency),
		string(rule.Status),
		pq.Array(rule.FeedURLs),
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

const ruleColumns = `
	id, owner_id, name, keywords, handles, platforms, logic_type,
	frequency, status, feed_urls, last_run_at, created_at, updated_at
`

func (r *PostgresRuleRepository) GetByID(ctx context.Context, id string) (*models.TrackingRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM tracking_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRuleRepository) List(ctx context.Context) ([]models.TrackingRule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM tracking_rules ORDER BY created_at`)
}

func (r *PostgresRuleRepository) ListActive(ctx context.Context) ([]models.TrackingRule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM tracking_rules WHERE status = 'active' ORDER BY created_at`)
}

func (r *PostgresRuleRepository) list(ctx context.Context, query string) ([]models.TrackingRule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.TrackingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *PostgresRuleRepository) UpdateStatus(ctx context.Context, id string, status models.RuleStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracking_rules SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update rule status: %w", err)
	}
	return nil
}

func (r *PostgresRuleRepository) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracking_rules SET last_run_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("update rule last run: %w", err)
	}
	return nil
}

func (r *PostgresRuleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tracking_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.TrackingRule, error) {
	var rule models.TrackingRule
	var platforms []string
	var logicType, frequency, status string
	var lastRunAt sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Name,
		pq.Array(&rule.Keywords),
		pq.Array(&rule.Handles),
		pq.Array(&platforms),
		&logicType,
		&frequency,
		&status,
		pq.Array(&rule.FeedURLs),
		&lastRunAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Platforms = make([]models.Platform, len(platforms))
	for i, p := range platforms {
		rule.Platforms[i] = models.Platform(p)
	}
	rule.LogicType = models.LogicType(logicType)
	rule.Frequency = models.Frequency(frequency)
	rule.Status = models.RuleStatus(status)
	if lastRunAt.Valid {
		t := lastRunAt.Time
		rule.LastRunAt = &t
	}
	return &rule, nil
}

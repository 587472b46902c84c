package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// PostgresPostRepository persists accepted posts.
type PostgresPostRepository struct {
	db *sql.DB
}

func NewPostgresPostRepository(db *sql.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// StoreBatch inserts the posts for a rule in one transaction. A post already
// present for the rule (same platform and post ID) is left untouched.
func (r *PostgresPostRepository) StoreBatch(ctx context.Context, ruleID string, posts []models.UnifiedPost) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts
		(rule_id, post_id, platform, author, handle, content, url,
		 posted_at, fetched_at, quality_score, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (rule_id, platform, post_id) DO NOTHING
	`

	for _, post := range posts {
		metadataJSON, err := json.Marshal(post.Metadata)
		if err != nil {
			return fmt.Errorf("marshal post metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			ruleID,
			post.PostID,
			string(post.Platform),
			post.Author,
			post.Handle,
			post.Content,
			post.URL,
			post.PostedAt,
			post.FetchedAt,
			post.QualityScore,
			metadataJSON,
		); err != nil {
			return fmt.Errorf("insert post %s: %w", post.PostID, err)
		}
	}

	return tx.Commit()
}

// ListByRule returns the newest posts for a rule.
func (r *PostgresPostRepository) ListByRule(ctx context.Context, ruleID string, limit int) ([]models.UnifiedPost, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT post_id, platform, author, handle, content, url,
		       posted_at, fetched_at, quality_score, metadata
		FROM posts
		WHERE rule_id = $1
		ORDER BY posted_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.UnifiedPost
	for rows.Next() {
		var post models.UnifiedPost
		var platform string
		var metadataJSON []byte

		if err := rows.Scan(
			&post.PostID,
			&platform,
			&post.Author,
			&post.Handle,
			&post.Content,
			&post.URL,
			&post.PostedAt,
			&post.FetchedAt,
			&post.QualityScore,
			&metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}

		post.Platform = models.Platform(platform)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &post.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal post metadata: %w", err)
			}
		}
		posts = append(posts, post)
	}

	return posts, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// PostgresCursorRepository persists fetch cursors per (platform, rule) pair.
type PostgresCursorRepository struct {
	db *sql.DB
}

func NewPostgresCursorRepository(db *sql.DB) *PostgresCursorRepository {
	return &PostgresCursorRepository{db: db}
}

func (r *PostgresCursorRepository) Get(ctx context.Context, platform models.Platform, ruleID string) (*models.FetchCursor, error) {
	query := `
		SELECT platform, rule_id, last_post_id, last_timestamp, metadata, updated_at
		FROM fetch_cursors
		WHERE platform = $1 AND rule_id = $2
	`

	var cursor models.FetchCursor
	var p string
	var lastTimestamp sql.NullTime
	var metadataJSON []byte

	err := r.db.QueryRowContext(ctx, query, string(platform), ruleID).Scan(
		&p,
		&cursor.RuleID,
		&cursor.LastPostID,
		&lastTimestamp,
		&metadataJSON,
		&cursor.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor: %w", err)
	}

	cursor.Platform = models.Platform(p)
	if lastTimestamp.Valid {
		cursor.LastTimestamp = lastTimestamp.Time
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &cursor.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal cursor metadata: %w", err)
		}
	}
	return &cursor, nil
}

// Put upserts the cursor, overwriting the previous position.
func (r *PostgresCursorRepository) Put(ctx context.Context, cursor models.FetchCursor) error {
	metadataJSON, err := json.Marshal(cursor.Metadata)
	if err != nil {
		return fmt.Errorf("marshal cursor metadata: %w", err)
	}

	var lastTimestamp sql.NullTime
	if !cursor.LastTimestamp.IsZero() {
		lastTimestamp = sql.NullTime{Time: cursor.LastTimestamp, Valid: true}
	}

	query := `
		INSERT INTO fetch_cursors
		(platform, rule_id, last_post_id, last_timestamp, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (platform, rule_id)
		DO UPDATE SET
			last_post_id = EXCLUDED.last_post_id,
			last_timestamp = EXCLUDED.last_timestamp,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query,
		string(cursor.Platform),
		cursor.RuleID,
		cursor.LastPostID,
		lastTimestamp,
		metadataJSON,
	); err != nil {
		return fmt.Errorf("put cursor: %w", err)
	}
	return nil
}

// Reset deletes the cursor so the next fetch starts from scratch.
func (r *PostgresCursorRepository) Reset(ctx context.Context, platform models.Platform, ruleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM fetch_cursors WHERE platform = $1 AND rule_id = $2`,
		string(platform), ruleID)
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecommendationRow is one persisted AI recommendation response. Payload is
// stored as opaque JSON; expiry is enforced by the reading cache layer, so a
// row past its expires_at may still physically exist.
type RecommendationRow struct {
	PromptHash string
	PromptText string
	Payload    []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// RecommendationRepository owns the recommendation_cache table, keyed by
// prompt hash with at most one row per hash.
type RecommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a repository backed by the shared pool.
func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// GetByHash returns the row for the given prompt hash, or nil when absent.
// Expiry is not checked here.
func (r *RecommendationRepository) GetByHash(ctx context.Context, promptHash string) (*RecommendationRow, error) {
	var row RecommendationRow
	err := r.db.QueryRowContext(ctx,
		`SELECT prompt_hash, prompt_text, payload, created_at, expires_at
		 FROM recommendation_cache WHERE prompt_hash = ?`, promptHash).
		Scan(&row.PromptHash, &row.PromptText, &row.Payload, &row.CreatedAt, &row.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation cache row: %w", err)
	}
	return &row, nil
}

// Put inserts the row, overwriting any existing row with the same prompt
// hash. Last write wins; concurrent producers for the same prompt never
// conflict.
func (r *RecommendationRepository) Put(ctx context.Context, row *RecommendationRow) error {
	if row.PromptHash == "" {
		return errors.New("recommendation row requires a prompt hash")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recommendation_cache (prompt_hash, prompt_text, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(prompt_hash) DO UPDATE SET
		   prompt_text = excluded.prompt_text,
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		row.PromptHash, row.PromptText, row.Payload, row.CreatedAt, row.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put recommendation cache row: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose expiry has passed. Readers already ignore
// expired rows, so this is housekeeping only.
func (r *RecommendationRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recommendation_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired recommendation rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screenscout/models"
)

// HistoryRepository records user-initiated lookups. Writes are best-effort
// audit rows; nothing in the cache or recommendation path reads them.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a repository backed by the shared pool.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert stores one history entry, generating an id when absent.
func (r *HistoryRepository) Insert(ctx context.Context, entry *models.SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, kind, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Query, entry.Kind, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	return nil
}

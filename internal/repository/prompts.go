package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
)

// PromptRepository stores generated prompts and answers usage questions about them.
type PromptRepository struct {
	db *sql.DB
}

func NewPromptRepository(db *sql.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// Create fills in p.ID when unset and p.CreatedAt from the database clock.
func (r *PromptRepository) Create(ctx context.Context, p *models.AIPrompt) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var entryID any
	if p.EntryID != nil {
		entryID = *p.EntryID
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO ai_prompts (id, entry_id, user_id, prompt_text) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		p.ID, entryID, p.UserID, p.PromptText,
	).Scan(&p.CreatedAt)
	return mapWriteError(err)
}

// CountSince counts a user's prompts created at or after since. Rows written without user_id
// are attributed through their entry.
func (r *PromptRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM ai_prompts p
		LEFT JOIN journal_entries e ON e.id = p.entry_id
		WHERE (p.user_id = $1 OR (p.user_id IS NULL AND e.user_id = $1))
		AND p.created_at >= $2`

	var n int
	err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&n)
	return n, err
}

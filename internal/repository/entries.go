package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
)

// ListOptions filters and pages a user's entries.
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// EntryRepository handles journal entry persistence. Every statement is scoped to the owner.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `id, user_id, content, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*models.JournalEntry, error) {
	e := &models.JournalEntry{}
	if err := row.Scan(&e.ID, &e.UserID, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the newest entries first along with the total number matching the filter.
func (r *EntryRepository) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]models.JournalEntry, int, error) {
	where := `user_id = $1`
	args := []any{userID}
	if q := strings.TrimSpace(opts.Query); q != "" {
		where += ` AND content ILIKE $2`
		args = append(args, likePattern(q))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE ` + where + ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]models.JournalEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// Get returns ErrNotFound when the entry does not exist or belongs to someone else.
func (r *EntryRepository) Get(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *EntryRepository) Create(ctx context.Context, userID uuid.UUID, content string) (*models.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO journal_entries (id, user_id, content) VALUES ($1, $2, $3) RETURNING `+entryColumns,
		uuid.New(), userID, content)
	e, err := scanEntry(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return e, nil
}

// Update overwrites content unconditionally; the last writer wins.
func (r *EntryRepository) Update(ctx context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE journal_entries SET content = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 RETURNING `+entryColumns,
		id, userID, content)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *EntryRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/metrics"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/repository"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// EntryStore is the journal_entries table, always scoped to an owner.
type EntryStore interface {
	List(ctx context.Context, userID uuid.UUID, opts repository.ListOptions) ([]models.JournalEntry, int, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error)
	Create(ctx context.Context, userID uuid.UUID, content string) (*models.JournalEntry, error)
	Update(ctx context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ProfileEnsurer creates the users row an entry hangs off.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, au models.AuthUser) (*models.User, error)
}

// SaveResult is what an autosave did.
type SaveResult struct {
	Entry   *models.JournalEntry `json:"entry,omitempty"`
	Created bool                 `json:"created"`
	Skipped bool                 `json:"skipped"`
}

// EntryList is one page of a user's entries.
type EntryList struct {
	Entries []models.EntrySummary `json:"entries"`
	Total   int                   `json:"total"`
}

// EntryService implements journal entry CRUD and the autosave rule.
type EntryService struct {
	entries  EntryStore
	profiles ProfileEnsurer
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewEntryService(entries EntryStore, profiles ProfileEnsurer, m *metrics.Metrics, log logrus.FieldLogger) *EntryService {
	return &EntryService{entries: entries, profiles: profiles, metrics: m, log: log}
}

// List returns newest entries first. limit is clamped to 1..100, default 20.
func (s *EntryService) List(ctx context.Context, userID uuid.UUID, query string, limit, offset int) (EntryList, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.entries.List(ctx, userID, repository.ListOptions{Query: query, Limit: limit, Offset: offset})
	if err != nil {
		return EntryList{}, err
	}
	out := EntryList{Entries: make([]models.EntrySummary, 0, len(entries)), Total: total}
	for _, e := range entries {
		out.Entries = append(out.Entries, e.Summary())
	}
	return out, nil
}

func (s *EntryService) Get(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	e, err := s.entries.Get(ctx, userID, id)
	return e, mapNotFound(err)
}

// Create stores a new entry, mirroring the user first if the profile row is missing.
func (s *EntryService) Create(ctx context.Context, user models.AuthUser, content string) (*models.JournalEntry, error) {
	if err := utils.ValidateEntryContent(content); err != nil {
		return nil, err
	}
	e, err := s.entries.Create(ctx, user.ID, content)
	if errors.Is(err, repository.ErrOwnerMissing) {
		if _, perr := s.profiles.EnsureProfile(ctx, user); perr != nil {
			return nil, perr
		}
		e, err = s.entries.Create(ctx, user.ID, content)
	}
	return e, err
}

// Update overwrites the entry content. Last write wins.
func (s *EntryService) Update(ctx context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error) {
	if err := utils.ValidateEntryContent(content); err != nil {
		return nil, err
	}
	e, err := s.entries.Update(ctx, userID, id, content)
	return e, mapNotFound(err)
}

func (s *EntryService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return mapNotFound(s.entries.Delete(ctx, userID, id))
}

// Autosave persists content that the editor has let sit: blank content is skipped, a missing
// entryID creates the entry, and an existing entry is updated only when its stored content differs.
func (s *EntryService) Autosave(ctx context.Context, user models.AuthUser, entryID *uuid.UUID, content string) (SaveResult, error) {
	if strings.TrimSpace(content) == "" {
		s.metrics.Autosave("skipped")
		return SaveResult{Skipped: true}, nil
	}

	if entryID == nil {
		e, err := s.Create(ctx, user, content)
		if err != nil {
			s.metrics.Autosave("failed")
			return SaveResult{}, err
		}
		s.metrics.Autosave("created")
		return SaveResult{Entry: e, Created: true}, nil
	}

	stored, err := s.Get(ctx, user.ID, *entryID)
	if err != nil {
		s.metrics.Autosave("failed")
		return SaveResult{}, err
	}
	if stored.Content == content {
		s.metrics.Autosave("skipped")
		return SaveResult{Entry: stored, Skipped: true}, nil
	}

	e, err := s.Update(ctx, user.ID, *entryID, content)
	if err != nil {
		s.metrics.Autosave("failed")
		return SaveResult{}, err
	}
	s.metrics.Autosave("updated")
	return SaveResult{Entry: e}, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}

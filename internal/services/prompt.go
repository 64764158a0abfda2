package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/metrics"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PromptStore persists generated prompts.
type PromptStore interface {
	Create(ctx context.Context, p *models.AIPrompt) error
}

// EntryReader loads an owned entry.
type EntryReader interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error)
}

// UsageTracker reads and advances the monthly allowance.
type UsageTracker interface {
	Get(ctx context.Context, userID uuid.UUID) (models.Usage, error)
	Consumed(ctx context.Context, userID uuid.UUID, u models.Usage) models.Usage
}

// CallGuard is the spacing and duplicate-content check in front of the model.
type CallGuard interface {
	AcquireInFlight(ctx context.Context, userID uuid.UUID, content string) (func(), bool)
	AcquireInterval(ctx context.Context, userID uuid.UUID) (func(), bool)
}

// PromptRequest is the body of a prompt generation call.
type PromptRequest struct {
	Content string `json:"content,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

// PromptResult is the generated prompt plus the usage after it. The usage field replaces the
// browser-wide "usage updated" event.
type PromptResult struct {
	PromptText string       `json:"prompt_text"`
	ID         uuid.UUID    `json:"id"`
	CreatedAt  time.Time    `json:"created_at"`
	Usage      models.Usage `json:"usage"`
}

// QuotaError carries the usage that triggered ErrQuotaExceeded.
type QuotaError struct {
	Usage models.Usage
}

func (e *QuotaError) Error() string { return ErrQuotaExceeded.Error() }
func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// PromptService produces one reflective question per call.
type PromptService struct {
	entries   EntryReader
	prompts   PromptStore
	usage     UsageTracker
	guard     CallGuard
	generator PromptGenerator
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewPromptService(entries EntryReader, prompts PromptStore, usage UsageTracker, guard CallGuard, generator PromptGenerator, m *metrics.Metrics, log logrus.FieldLogger) *PromptService {
	return &PromptService{
		entries:   entries,
		prompts:   prompts,
		usage:     usage,
		guard:     guard,
		generator: generator,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Generate validates the request, applies quota and call guards, asks the model and stores the
// result. Nothing is retried.
func (s *PromptService) Generate(ctx context.Context, user models.AuthUser, req PromptRequest) (*PromptResult, error) {
	content, entryID, err := s.resolveContent(ctx, user.ID, req)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePromptContent(content); err != nil {
		s.metrics.PromptGenerated("too_short")
		return nil, ErrContentTooShort
	}

	usage, err := s.usage.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	if usage.Exhausted() {
		s.metrics.PromptGenerated("quota_exceeded")
		return nil, &QuotaError{Usage: usage}
	}

	releaseInFlight, ok := s.guard.AcquireInFlight(ctx, user.ID, content)
	if !ok {
		s.metrics.PromptGenerated("in_flight")
		return nil, ErrPromptInFlight
	}
	defer releaseInFlight()

	releaseSlot, ok := s.guard.AcquireInterval(ctx, user.ID)
	if !ok {
		s.metrics.PromptGenerated("rate_limited")
		return nil, ErrRateLimited
	}

	start := s.now()
	raw, err := s.generator.Generate(ctx, content)
	s.metrics.ObserveUpstream(s.now().Sub(start))
	if err != nil {
		releaseSlot()
		var ue *UpstreamError
		if errors.As(err, &ue) {
			s.metrics.PromptGenerated(string(ue.Kind))
		} else {
			s.metrics.PromptGenerated("error")
		}
		s.log.WithError(err).WithField("user_id", user.ID).Warn("prompt generation failed")
		return nil, err
	}

	text := CleanPrompt(raw)
	if text == "" {
		releaseSlot()
		s.metrics.PromptGenerated("empty")
		return nil, ErrEmptyPrompt
	}

	p := &models.AIPrompt{ID: uuid.New(), EntryID: entryID, UserID: user.ID, PromptText: text}
	if err := s.prompts.Create(ctx, p); err != nil {
		// The user still gets the prompt; it just is not counted.
		s.log.WithError(err).WithField("user_id", user.ID).Error("failed to store prompt")
		p.CreatedAt = s.now().UTC()
	} else {
		usage = s.usage.Consumed(ctx, user.ID, usage)
	}

	s.metrics.PromptGenerated("ok")
	return &PromptResult{PromptText: p.PromptText, ID: p.ID, CreatedAt: p.CreatedAt, Usage: usage}, nil
}

// resolveContent picks the text to reflect on: the request body wins, otherwise the stored entry.
// A supplied entry id must belong to the user either way.
func (s *PromptService) resolveContent(ctx context.Context, userID uuid.UUID, req PromptRequest) (string, *uuid.UUID, error) {
	var entryID *uuid.UUID
	if req.EntryID != "" {
		id, err := uuid.Parse(req.EntryID)
		if err != nil {
			return "", nil, ErrInvalidEntryID
		}
		entryID = &id
	}

	if strings.TrimSpace(req.Content) == "" && entryID == nil {
		return "", nil, ErrContentRequired
	}
	if entryID == nil {
		return req.Content, nil, nil
	}

	entry, err := s.entries.Get(ctx, userID, *entryID)
	if err != nil {
		return "", nil, mapNotFound(err)
	}
	if strings.TrimSpace(req.Content) != "" {
		return req.Content, entryID, nil
	}
	return entry.Content, entryID, nil
}

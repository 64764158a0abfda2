package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// PremiumMonthlyPrompts stands in for "unlimited"
	PremiumMonthlyPrompts = 999999
	usageCacheTTL         = 60 * time.Second
)

// PromptCounter counts prompts for quota purposes.
type PromptCounter interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// SubscriptionLookup resolves a user's tier.
type SubscriptionLookup interface {
	SubscriptionStatus(ctx context.Context, userID uuid.UUID) models.SubscriptionStatus
}

// UsageService computes the monthly prompt allowance. Results are cached briefly in Redis.
type UsageService struct {
	prompts   PromptCounter
	tiers     SubscriptionLookup
	cache     *CacheService
	freeLimit int
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewUsageService creates the service. cache may be nil.
func NewUsageService(prompts PromptCounter, tiers SubscriptionLookup, cache *CacheService, freeLimit int, log logrus.FieldLogger) *UsageService {
	return &UsageService{
		prompts:   prompts,
		tiers:     tiers,
		cache:     cache,
		freeLimit: freeLimit,
		now:       time.Now,
		log:       log,
	}
}

func usageCacheKey(userID uuid.UUID) string {
	return CacheKey("usage", userID.String())
}

// Get returns prompts used this calendar month (UTC) and the remaining allowance.
func (s *UsageService) Get(ctx context.Context, userID uuid.UUID) (models.Usage, error) {
	var u models.Usage
	periodStart := models.StartOfMonth(s.now())

	if s.cache != nil {
		hit, err := s.cache.Get(ctx, usageCacheKey(userID), &u)
		if err != nil {
			s.log.WithError(err).Debug("usage cache read failed")
		}
		if hit && u.PeriodStart.Equal(periodStart) {
			return u, nil
		}
	}

	used, err := s.prompts.CountSince(ctx, userID, periodStart)
	if err != nil {
		return models.Usage{}, err
	}
	u = s.build(used, s.tiers.SubscriptionStatus(ctx, userID) == models.SubscriptionPremium, periodStart)

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, usageCacheKey(userID), u, usageCacheTTL); err != nil {
			s.log.WithError(err).Debug("usage cache write failed")
		}
	}
	return u, nil
}

// Consumed returns u after one more prompt and drops the cached copy.
func (s *UsageService) Consumed(ctx context.Context, userID uuid.UUID, u models.Usage) models.Usage {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, usageCacheKey(userID)); err != nil {
			s.log.WithError(err).Debug("usage cache delete failed")
		}
	}
	return s.build(u.PromptsUsed+1, u.IsPremium, u.PeriodStart)
}

// Invalidate drops the cached usage, e.g. after a tier change.
func (s *UsageService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, usageCacheKey(userID)); err != nil {
		s.log.WithError(err).Debug("usage cache delete failed")
	}
}

func (s *UsageService) build(used int, premium bool, periodStart time.Time) models.Usage {
	limit := s.freeLimit
	if premium {
		limit = PremiumMonthlyPrompts
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return models.Usage{
		PromptsUsed:  used,
		PromptsLimit: limit,
		Remaining:    remaining,
		IsPremium:    premium,
		PeriodStart:  periodStart,
	}
}

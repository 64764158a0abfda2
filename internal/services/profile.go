package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserStore is the users table as seen by the profile service.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	SetSubscription(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus, customerID string) error
	SetSubscriptionByCustomer(ctx context.Context, customerID string, status models.SubscriptionStatus) error
}

// ProfileService mirrors auth users into the users table and tracks their tier.
type ProfileService struct {
	users UserStore
	log   logrus.FieldLogger
}

func NewProfileService(users UserStore, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{users: users, log: log}
}

// EnsureProfile returns the users row, creating a free-tier one on first login.
func (s *ProfileService) EnsureProfile(ctx context.Context, au models.AuthUser) (*models.User, error) {
	u, err := s.users.GetByID(ctx, au.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	u = &models.User{ID: au.ID, Email: au.Email, SubscriptionStatus: models.SubscriptionFree}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.WithField("user_id", au.ID).Info("created user profile")
	return u, nil
}

// SubscriptionStatus falls back to free when the row is missing or unreadable.
func (s *ProfileService) SubscriptionStatus(ctx context.Context, userID uuid.UUID) models.SubscriptionStatus {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("subscription lookup failed, assuming free")
		}
		return models.SubscriptionFree
	}
	return u.SubscriptionStatus
}

// UpgradeToPremium marks the user premium and remembers the Stripe customer.
func (s *ProfileService) UpgradeToPremium(ctx context.Context, userID uuid.UUID, customerID string) (*models.User, error) {
	err := s.users.SetSubscription(ctx, userID, models.SubscriptionPremium, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("upgrade subscription: %w", err)
	}
	s.log.WithField("user_id", userID).Info("subscription upgraded to premium")
	return s.users.GetByID(ctx, userID)
}

// DowngradeCustomer returns a cancelled Stripe customer to the free tier.
func (s *ProfileService) DowngradeCustomer(ctx context.Context, customerID string) error {
	err := s.users.SetSubscriptionByCustomer(ctx, customerID, models.SubscriptionFree)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrProfileNotFound
	}
	return err
}

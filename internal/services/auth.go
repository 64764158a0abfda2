package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/supabase"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

// refreshLeeway refreshes a stored access token shortly before it expires.
const refreshLeeway = 60 * time.Second

var ErrUnknownProvider = errors.New("unsupported oauth provider")

// AuthProvider is the hosted auth service. *supabase.Client implements it.
type AuthProvider interface {
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	VerifyToken(ctx context.Context, token string) (models.AuthUser, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SessionBackend stores browser sessions. *SessionStore implements it.
type SessionBackend interface {
	Create(ctx context.Context, s Session) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, token string, s Session) error
	Delete(ctx context.Context, token string) error
}

// LoginStart is what the login handler needs to redirect the browser.
type LoginStart struct {
	RedirectURL string
	Verifier    string
}

// AuthService drives the OAuth code flow and resolves request identities.
type AuthService struct {
	provider AuthProvider
	sessions SessionBackend
	profiles ProfileEnsurer
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewAuthService creates the service. provider is nil when auth is not configured.
func NewAuthService(provider AuthProvider, sessions SessionBackend, profiles ProfileEnsurer, log logrus.FieldLogger) *AuthService {
	return &AuthService{provider: provider, sessions: sessions, profiles: profiles, now: time.Now, log: log}
}

// Configured reports whether a provider is wired.
func (s *AuthService) Configured() bool {
	return s.provider != nil
}

// BeginLogin creates a PKCE pair and the provider authorize URL. The callback lands on
// <baseURL>/auth/callback.
func (s *AuthService) BeginLogin(provider, baseURL string) (*LoginStart, error) {
	if s.provider == nil {
		return nil, ErrAuthNotConfigured
	}
	name, ok := utils.NormalizeProvider(provider)
	if !ok {
		return nil, ErrUnknownProvider
	}
	verifier, challenge, err := supabase.NewPKCE()
	if err != nil {
		return nil, err
	}
	return &LoginStart{
		RedirectURL: s.provider.AuthorizeURL(name, baseURL+"/auth/callback", challenge),
		Verifier:    verifier,
	}, nil
}

// CompleteLogin exchanges the callback code, mirrors the user and opens a browser session.
// It returns the session cookie token.
func (s *AuthService) CompleteLogin(ctx context.Context, code, verifier string) (string, models.AuthUser, error) {
	if s.provider == nil {
		return "", models.AuthUser{}, ErrAuthNotConfigured
	}
	sess, err := s.provider.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return "", models.AuthUser{}, err
	}
	if sess == nil {
		return "", models.AuthUser{}, ErrNoSession
	}

	var user models.AuthUser
	if sess.User != nil {
		user, err = sess.User.AuthUser()
	}
	if sess.User == nil || err != nil {
		if user, err = s.provider.VerifyToken(ctx, sess.AccessToken); err != nil {
			return "", models.AuthUser{}, err
		}
	}

	if _, err := s.profiles.EnsureProfile(ctx, user); err != nil {
		// Entry creation retries the profile, so login is not blocked.
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to ensure user profile")
	}

	token, err := s.sessions.Create(ctx, Session{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.Expiry(s.now()),
	})
	if err != nil {
		return "", models.AuthUser{}, fmt.Errorf("create session: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("user signed in")
	return token, user, nil
}

// Authenticate resolves a bearer access token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.AuthUser, error) {
	if s.provider == nil {
		return models.AuthUser{}, ErrAuthNotConfigured
	}
	return s.provider.VerifyToken(ctx, accessToken)
}

// ResumeSession resolves a session cookie, refreshing the stored tokens when they are about to
// expire. A failed refresh ends the session.
func (s *AuthService) ResumeSession(ctx context.Context, token string) (models.AuthUser, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return models.AuthUser{}, err
	}
	user := models.AuthUser{ID: sess.UserID, Email: sess.Email}

	if s.now().Add(refreshLeeway).Before(sess.ExpiresAt) {
		return user, nil
	}
	if s.provider == nil || sess.RefreshToken == "" {
		_ = s.sessions.Delete(ctx, token)
		return models.AuthUser{}, ErrSessionNotFound
	}

	fresh, err := s.provider.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		s.log.WithError(err).WithField("user_id", sess.UserID).Info("session refresh failed")
		_ = s.sessions.Delete(ctx, token)
		return models.AuthUser{}, ErrSessionNotFound
	}
	sess.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		sess.RefreshToken = fresh.RefreshToken
	}
	sess.ExpiresAt = fresh.Expiry(s.now())
	if err := s.sessions.Update(ctx, token, *sess); err != nil {
		return models.AuthUser{}, fmt.Errorf("update session: %w", err)
	}
	return user, nil
}

// Logout revokes the provider session (best effort) and drops the browser session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.provider != nil && sess.AccessToken != "" {
		if err := s.provider.SignOut(ctx, sess.AccessToken); err != nil {
			s.log.WithError(err).WithField("user_id", sess.UserID).Warn("provider sign-out failed")
		}
	}
	return s.sessions.Delete(ctx, token)
}

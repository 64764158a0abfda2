package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/supabase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	userID      uuid.UUID
	exchangeErr error
	noSession   bool
	refreshErr  error
	refreshed   int
	signedOut   []string
}

func (f *fakeProvider) AuthorizeURL(provider, redirectTo, challenge string) string {
	q := url.Values{"provider": {provider}, "redirect_to": {redirectTo}, "code_challenge": {challenge}}
	return "https://proj.supabase.co/auth/v1/authorize?" + q.Encode()
}

func (f *fakeProvider) ExchangeCodeForSession(_ context.Context, code, verifier string) (*supabase.Session, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if f.noSession {
		return nil, nil
	}
	return &supabase.Session{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + verifier,
		ExpiresIn:    3600,
		User:         &supabase.User{ID: f.userID.String(), Email: "a@example.com"},
	}, nil
}

func (f *fakeProvider) RefreshSession(_ context.Context, refreshToken string) (*supabase.Session, error) {
	f.refreshed++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &supabase.Session{AccessToken: "access-new", RefreshToken: "refresh-new", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) VerifyToken(_ context.Context, token string) (models.AuthUser, error) {
	if token != "good" {
		return models.AuthUser{}, supabase.ErrInvalidToken
	}
	return models.AuthUser{ID: f.userID, Email: "a@example.com"}, nil
}

func (f *fakeProvider) SignOut(_ context.Context, accessToken string) error {
	f.signedOut = append(f.signedOut, accessToken)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeProvider, *SessionStore, *fakeUsers) {
	t.Helper()
	_, rdb := newTestRedis(t)
	provider := &fakeProvider{userID: uuid.New()}
	sessions := NewSessionStore(rdb, nil)
	users := newFakeUsers()
	return NewAuthService(provider, sessions, NewProfileService(users, nullLogger()), nullLogger()), provider, sessions, users
}

func TestBeginLogin(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	start, err := svc.BeginLogin("GitHub", "https://quill.app")
	require.NoError(t, err)
	assert.NotEmpty(t, start.Verifier)

	u, err := url.Parse(start.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "github", u.Query().Get("provider"))
	assert.Equal(t, "https://quill.app/auth/callback", u.Query().Get("redirect_to"))
	assert.Equal(t, supabase.Challenge(start.Verifier), u.Query().Get("code_challenge"))

	_, err = svc.BeginLogin("myspace", "https://quill.app")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestBeginLoginWithoutProvider(t *testing.T) {
	svc := NewAuthService(nil, nil, nil, nullLogger())
	assert.False(t, svc.Configured())
	_, err := svc.BeginLogin("google", "http://localhost:3000")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
}

func TestCompleteLogin(t *testing.T) {
	svc, provider, sessions, users := newAuthFixture(t)
	ctx := context.Background()

	token, user, err := svc.CompleteLogin(ctx, "code1", "verifier1")
	require.NoError(t, err)
	assert.Equal(t, provider.userID, user.ID)

	_, ok := users.rows[provider.userID]
	assert.True(t, ok, "profile mirrored on login")

	sess, err := sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "access-code1", sess.AccessToken)
	assert.Equal(t, "refresh-verifier1", sess.RefreshToken)
}

func TestCompleteLoginFailures(t *testing.T) {
	svc, provider, _, _ := newAuthFixture(t)

	provider.noSession = true
	_, _, err := svc.CompleteLogin(context.Background(), "c", "v")
	assert.ErrorIs(t, err, ErrNoSession)

	provider.exchangeErr = &supabase.Error{Code: "flow_state_not_found", Message: "invalid flow state", StatusCode: 404}
	_, _, err = svc.CompleteLogin(context.Background(), "c", "v")
	var se *supabase.Error
	assert.ErrorAs(t, err, &se)
}

func TestResumeSessionRefreshesNearExpiry(t *testing.T) {
	svc, provider, sessions, _ := newAuthFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	token, err := sessions.Create(ctx, Session{
		UserID: provider.userID, AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(30 * time.Second),
	})
	require.NoError(t, err)

	user, err := svc.ResumeSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, provider.userID, user.ID)
	assert.Equal(t, 1, provider.refreshed)

	sess, err := sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "access-new", sess.AccessToken)
	assert.Equal(t, "refresh-new", sess.RefreshToken)

	_, err = svc.ResumeSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.refreshed, "fresh tokens are not refreshed again")
}

func TestResumeSessionEndsOnRefreshFailure(t *testing.T) {
	svc, provider, sessions, _ := newAuthFixture(t)
	ctx := context.Background()
	provider.refreshErr = errors.New("refresh token revoked")

	token, err := sessions.Create(ctx, Session{UserID: provider.userID, RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	_, err = svc.ResumeSession(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sessions.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthenticateBearer(t *testing.T) {
	svc, provider, _, _ := newAuthFixture(t)

	u, err := svc.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, provider.userID, u.ID)

	_, err = svc.Authenticate(context.Background(), "bad")
	assert.ErrorIs(t, err, supabase.ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	svc, provider, sessions, _ := newAuthFixture(t)
	ctx := context.Background()
	token, err := sessions.Create(ctx, Session{UserID: provider.userID, AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	assert.Equal(t, []string{"tok"}, provider.signedOut)
	_, err = sessions.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, svc.Logout(ctx, "unknown"))
}

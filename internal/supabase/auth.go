package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
)

// User is the subset of the GoTrue user object the app relies on.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	Aud          string         `json:"aud"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuthUser converts to the app identity. Invalid ids are rejected by the caller.
func (u *User) AuthUser() (models.AuthUser, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return models.AuthUser{}, err
	}
	return models.AuthUser{ID: id, Email: u.Email, Role: u.Role}, nil
}

// Session is the token pair returned by the token endpoint.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Expiry returns when the access token stops being valid.
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// AuthorizeURL builds the OAuth redirect for provider using the PKCE challenge.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "s256")
	return c.authURL + "/authorize?" + q.Encode()
}

// ExchangeCodeForSession trades the callback code and its verifier for a session.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce",
		map[string]string{"auth_code": code, "code_verifier": verifier}, "", &s)
	if err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// RefreshSession rotates the refresh token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, "", &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUser resolves an access token to its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil)
}

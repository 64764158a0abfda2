package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user models.AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) (models.AuthUser, bool) {
	u, ok := ctx.Value(userContextKey).(models.AuthUser)
	return u, ok
}

// Authenticator resolves bearer tokens and session cookies. *services.AuthService implements it.
type Authenticator interface {
	Configured() bool
	Authenticate(ctx context.Context, accessToken string) (models.AuthUser, error)
	ResumeSession(ctx context.Context, token string) (models.AuthUser, error)
}

// Auth guards API routes.
type Auth struct {
	svc        Authenticator
	cookieName string
	log        logrus.FieldLogger
}

func NewAuth(svc Authenticator, cookieName string, log logrus.FieldLogger) *Auth {
	return &Auth{svc: svc, cookieName: cookieName, log: log}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Identify resolves the caller from the bearer header, then the session cookie. allowQuery also
// accepts ?token= for WebSocket upgrades, which cannot set headers.
func (a *Auth) Identify(r *http.Request, allowQuery bool) (models.AuthUser, error) {
	token := BearerToken(r)
	if token == "" && allowQuery {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		return a.svc.Authenticate(r.Context(), token)
	}
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return a.svc.ResumeSession(r.Context(), c.Value)
	}
	return models.AuthUser{}, errMissingCredentials
}

var errMissingCredentials = errors.New("missing credentials")

// RequireUser rejects requests without a valid bearer token or session cookie.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return a.require(next, false)
}

// RequireUserOrQuery is RequireUser that also accepts ?token=.
func (a *Auth) RequireUserOrQuery(next http.Handler) http.Handler {
	return a.require(next, true)
}

func (a *Auth) require(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Identify(r, allowQuery)
		switch {
		case err == nil:
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		case errors.Is(err, errMissingCredentials):
			writeError(w, http.StatusUnauthorized, "Missing authorization header", "")
		case errors.Is(err, services.ErrAuthNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "Authentication is not configured", "")
		case errors.Is(err, services.ErrSessionNotFound):
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", "session expired")
		default:
			a.log.WithError(err).Debug("authentication failed")
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err.Error())
		}
	})
}

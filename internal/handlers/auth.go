package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/sirupsen/logrus"
)

const (
	verifierCookieName = "quill_pkce"
	verifierCookieAge  = 10 * 60
	loginPath          = "/login"
	afterLoginPath     = "/journal/new"
)

// AuthFlow is the OAuth sign-in flow. *services.AuthService implements it.
type AuthFlow interface {
	BeginLogin(provider, baseURL string) (*services.LoginStart, error)
	CompleteLogin(ctx context.Context, code, verifier string) (string, models.AuthUser, error)
	Logout(ctx context.Context, token string) error
}

// CookieConfig names the session cookie and whether cookies require HTTPS.
type CookieConfig struct {
	SessionName string
	Secure      bool
	SiteURL     string
}

type AuthHandler struct {
	auth    AuthFlow
	cookies CookieConfig
	log     logrus.FieldLogger
}

func NewAuthHandler(auth AuthFlow, cookies CookieConfig, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, log: log}
}

// Login starts the OAuth code flow: ?provider=google|github.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	base := services.ResolveBaseURL(h.cookies.SiteURL, r.Host, r.Header.Get("X-Forwarded-Proto"))
	start, err := h.auth.BeginLogin(r.URL.Query().Get("provider"), base)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrAuthNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Authentication is not configured", "")
		return
	case errors.Is(err, services.ErrUnknownProvider):
		redirectToLogin(w, r, "unsupported_provider", "Unsupported sign-in provider")
		return
	default:
		h.log.WithError(err).Error("failed to start login")
		redirectToLogin(w, r, "auth_failed", "Could not start sign-in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     verifierCookieName,
		Value:    start.Verifier,
		Path:     "/",
		MaxAge:   verifierCookieAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, start.RedirectURL, http.StatusFound)
}

// Callback finishes the code flow and opens a session. Mounted at /auth/callback and /callback.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		redirectToLogin(w, r, e, q.Get("error_description"))
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}

	var verifier string
	if c, err := r.Cookie(verifierCookieName); err == nil {
		verifier = c.Value
	}
	h.clearCookie(w, verifierCookieName)
	if verifier == "" {
		redirectToLogin(w, r, "auth_failed", "Sign-in expired, please try again")
		return
	}

	token, user, err := h.auth.CompleteLogin(r.Context(), code, verifier)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNoSession):
		redirectToLogin(w, r, "no_session", "Failed to create session")
		return
	default:
		h.log.WithError(err).Warn("code exchange failed")
		redirectToLogin(w, r, "auth_failed", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.SessionName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.WithField("user_id", user.ID).Debug("session cookie issued")
	http.Redirect(w, r, afterLoginPath, http.StatusFound)
}

// Logout ends the browser session. Always succeeds from the client's point of view.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookies.SessionName); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			h.log.WithError(err).Warn("logout failed")
		}
	}
	h.clearCookie(w, h.cookies.SessionName)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, code, description string) {
	q := url.Values{}
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	http.Redirect(w, r, loginPath+"?"+q.Encode(), http.StatusFound)
}

package handlers

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/sirupsen/logrus"
)

// IPBlocker is the Redis rate limiter's block list. *middleware.RateLimiter implements it.
type IPBlocker interface {
	IsIPBlocked(ctx context.Context, ip string) (bool, error)
	UnblockIP(ctx context.Context, ip string) error
}

// AdminHandler exposes operator endpoints guarded by a static ADMIN_TOKEN.
type AdminHandler struct {
	blocker IPBlocker
	token   string
	log     logrus.FieldLogger
}

func NewAdminHandler(blocker IPBlocker, token string, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{blocker: blocker, token: token, log: log}
}

// RequireToken rejects requests whose bearer token is not the admin token.
func (h *AdminHandler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := middleware.BearerToken(r)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "Admin authorization required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BlockedIP reports whether ?ip= is blocked.
func (h *AdminHandler) BlockedIP(w http.ResponseWriter, r *http.Request) {
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}
	blocked, err := h.blocker.IsIPBlocked(r.Context(), ip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check block status", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ip_address": ip, "blocked": blocked})
}

// UnblockIP lifts the block on ?ip=.
func (h *AdminHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	ip, ok := ipParam(w, r)
	if !ok {
		return
	}

	blocked, err := h.blocker.IsIPBlocked(r.Context(), ip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check block status", err.Error())
		return
	}
	if !blocked {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "IP address is not currently blocked",
		})
		return
	}

	if err := h.blocker.UnblockIP(r.Context(), ip); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to unblock IP", err.Error())
		return
	}
	h.log.WithField("ip", ip).Info("ip unblocked by admin")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "IP address unblocked successfully",
		"ip_address": ip,
	})
}

func ipParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		writeError(w, http.StatusBadRequest, "IP address is required", "")
		return "", false
	}
	if net.ParseIP(ip) == nil {
		writeError(w, http.StatusBadRequest, "Invalid IP address", "")
		return "", false
	}
	return ip, true
}

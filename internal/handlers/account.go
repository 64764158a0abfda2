package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProfileService mirrors the signed-in user. *services.ProfileService implements it.
type ProfileService interface {
	EnsureProfile(ctx context.Context, au models.AuthUser) (*models.User, error)
}

// UsageReader reports the monthly prompt allowance. *services.UsageService implements it.
type UsageReader interface {
	Get(ctx context.Context, userID uuid.UUID) (models.Usage, error)
}

type MeResponse struct {
	User    models.AuthUser `json:"user"`
	Profile *models.User    `json:"profile"`
	Usage   models.Usage    `json:"usage"`
}

type AccountHandler struct {
	profiles ProfileService
	usage    UsageReader
	log      logrus.FieldLogger
}

func NewAccountHandler(profiles ProfileService, usage UsageReader, log logrus.FieldLogger) *AccountHandler {
	return &AccountHandler{profiles: profiles, usage: usage, log: log}
}

// Me returns the identity, the users row (created on first call) and usage.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	profile, err := h.profiles.EnsureProfile(ctx, user)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("failed to load profile")
		writeError(w, http.StatusInternalServerError, "Failed to load profile", "")
		return
	}
	usage, err := h.usage.Get(ctx, user.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("failed to load usage")
		writeError(w, http.StatusInternalServerError, "Failed to load usage", "")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, Profile: profile, Usage: usage})
}

func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	usage, err := h.usage.Get(ctx, user.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("failed to load usage")
		writeError(w, http.StatusInternalServerError, "Failed to load usage", "")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

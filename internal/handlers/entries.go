package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	entryReplayScope    = "entry"
	autosaveReplayScope = "autosave"
)

// EntryService is the journal entry API. *services.EntryService implements it.
type EntryService interface {
	List(ctx context.Context, userID uuid.UUID, query string, limit, offset int) (services.EntryList, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.JournalEntry, error)
	Create(ctx context.Context, user models.AuthUser, content string) (*models.JournalEntry, error)
	Update(ctx context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Autosave(ctx context.Context, user models.AuthUser, entryID *uuid.UUID, content string) (services.SaveResult, error)
}

// Replayer stores first responses for Idempotency-Key. *services.IdempotencyStore implements it.
type Replayer interface {
	Lookup(ctx context.Context, scope string, userID uuid.UUID, key string, dest any) (bool, error)
	Save(ctx context.Context, scope string, userID uuid.UUID, key string, value any) error
}

type EntryRequest struct {
	Content string `json:"content"`
}

type AutosaveRequest struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

type EntryHandler struct {
	entries EntryService
	replay  Replayer
	log     logrus.FieldLogger
}

func NewEntryHandler(entries EntryService, replay Replayer, log logrus.FieldLogger) *EntryHandler {
	return &EntryHandler{entries: entries, replay: replay, log: log}
}

// List returns the caller's entries, newest first. Query: q (content search), limit, skip.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	skip := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v >= 0 {
		skip = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := h.entries.List(ctx, user.ID, strings.TrimSpace(r.URL.Query().Get("q")), limit, skip)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("failed to list entries")
		writeError(w, http.StatusInternalServerError, "Failed to load entries", "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entry, err := h.entries.Get(ctx, user.ID, id)
	if err != nil {
		h.writeEntryError(w, err, "Failed to load entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Create stores a new entry. A repeated Idempotency-Key replays the entry created first.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var req EntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var prior models.JournalEntry
	if hit, err := h.replay.Lookup(ctx, entryReplayScope, user.ID, key, &prior); err != nil {
		h.log.WithError(err).Warn("idempotency lookup failed")
	} else if hit {
		writeJSON(w, http.StatusCreated, prior)
		return
	}

	entry, err := h.entries.Create(ctx, user, req.Content)
	if err != nil {
		h.writeEntryError(w, err, "Failed to create entry")
		return
	}
	if err := h.replay.Save(ctx, entryReplayScope, user.ID, key, entry); err != nil {
		h.log.WithError(err).Warn("idempotency save failed")
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Update overwrites an entry's content.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var req EntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entry, err := h.entries.Update(ctx, user.ID, id, req.Content)
	if err != nil {
		h.writeEntryError(w, err, "Failed to update entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.entries.Delete(ctx, user.ID, id); err != nil {
		h.writeEntryError(w, err, "Failed to delete entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Autosave applies the editor's save rule: blank content is skipped, no id creates, an id updates
// when the content changed. A create under a repeated Idempotency-Key replays the first result.
func (h *EntryHandler) Autosave(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	var req AutosaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	var entryID *uuid.UUID
	if id := strings.TrimSpace(req.ID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid entry id", "")
			return
		}
		entryID = &parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if entryID == nil {
		var prior services.SaveResult
		if hit, err := h.replay.Lookup(ctx, autosaveReplayScope, user.ID, key, &prior); err != nil {
			h.log.WithError(err).Warn("idempotency lookup failed")
		} else if hit {
			writeJSON(w, http.StatusOK, prior)
			return
		}
	}

	res, err := h.entries.Autosave(ctx, user, entryID, req.Content)
	if err != nil {
		h.writeEntryError(w, err, "Failed to save entry")
		return
	}
	if res.Created {
		if err := h.replay.Save(ctx, autosaveReplayScope, user.ID, key, res); err != nil {
			h.log.WithError(err).Warn("idempotency save failed")
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *EntryHandler) writeEntryError(w http.ResponseWriter, err error, fallback string) {
	var verr *utils.ValidationError
	switch {
	case errors.Is(err, services.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "Entry not found", "")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message, "")
	default:
		h.log.WithError(err).Error(strings.ToLower(fallback))
		writeError(w, http.StatusInternalServerError, fallback, "")
	}
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry id", "")
		return uuid.Nil, false
	}
	return id, true
}

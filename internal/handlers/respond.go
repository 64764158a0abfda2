package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
)

const (
	// requestTimeout bounds database work done for one request
	requestTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

var errEmptyBody = errors.New("empty body")

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Details string        `json:"details,omitempty"`
	Usage   *models.Usage `json:"usage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// decodeJSON reads at most 1 MiB of JSON into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

// currentUser returns the user RequireUser put on the request. Handlers mounted without it answer 401.
func currentUser(w http.ResponseWriter, r *http.Request) (models.AuthUser, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing authorization header", "")
	}
	return user, ok
}

// idempotencyKey reads the optional Idempotency-Key header, answering 400 when it is unusable.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := services.ValidateIdempotencyKey(r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Idempotency-Key header", err.Error())
		return "", false
	}
	return key, true
}

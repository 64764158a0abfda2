package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/AnshRaj112/quill-backend/internal/editor"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/sirupsen/logrus"
)

const promptReplayScope = "prompt"

const (
	msgRateLimited     = "Please wait a few seconds before requesting another prompt."
	msgPromptInFlight  = "A prompt for this content is already being generated"
	msgUpstreamQuota   = "AI service quota exceeded. Please check your OpenAI plan and billing details."
	msgUpstreamBusy    = "AI service is busy. Please try again in a moment."
	msgUpstreamKey     = "AI service is misconfigured (invalid API key)"
	msgUpstreamDown    = "AI service is temporarily unavailable"
	msgPromptFailed    = "Failed to generate prompt"
	msgNoPrompt        = "No prompt generated"
	msgContentTooShort = "Content must be at least 50 characters"
)

// PromptService generates reflective prompts. *services.PromptService implements it.
type PromptService interface {
	Generate(ctx context.Context, user models.AuthUser, req services.PromptRequest) (*services.PromptResult, error)
}

type PromptRequestBody struct {
	Content string `json:"content,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

type PromptHandler struct {
	prompts PromptService
	replay  Replayer
	log     logrus.FieldLogger
}

func NewPromptHandler(prompts PromptService, replay Replayer, log logrus.FieldLogger) *PromptHandler {
	return &PromptHandler{prompts: prompts, replay: replay, log: log}
}

// Generate answers POST {content?, entry_id?} with one reflective question and the caller's usage.
func (h *PromptHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var body PromptRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	var prior services.PromptResult
	if hit, err := h.replay.Lookup(r.Context(), promptReplayScope, user.ID, key, &prior); err != nil {
		h.log.WithError(err).Warn("idempotency lookup failed")
	} else if hit {
		writeJSON(w, http.StatusOK, prior)
		return
	}

	res, err := h.prompts.Generate(r.Context(), user, services.PromptRequest{Content: body.Content, EntryID: body.EntryID})
	if err != nil {
		status, resp := promptError(err)
		if status == http.StatusInternalServerError {
			h.log.WithError(err).WithField("user_id", user.ID).Error("prompt request failed")
		}
		writeJSON(w, status, resp)
		return
	}

	if err := h.replay.Save(r.Context(), promptReplayScope, user.ID, key, res); err != nil {
		h.log.WithError(err).Warn("idempotency save failed")
	}
	writeJSON(w, http.StatusOK, res)
}

// promptError maps a generation failure to its HTTP status and body.
func promptError(err error) (int, ErrorResponse) {
	var (
		qe *services.QuotaError
		ue *services.UpstreamError
	)
	switch {
	case errors.As(err, &qe):
		usage := qe.Usage
		return http.StatusTooManyRequests, ErrorResponse{Error: editor.QuotaMessage, Usage: &usage}
	case errors.Is(err, services.ErrInvalidEntryID):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid entry_id"}
	case errors.Is(err, services.ErrContentRequired):
		return http.StatusBadRequest, ErrorResponse{Error: "content or entry_id is required"}
	case errors.Is(err, services.ErrEntryNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Entry not found"}
	case errors.Is(err, services.ErrContentTooShort):
		return http.StatusBadRequest, ErrorResponse{Error: msgContentTooShort}
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: msgRateLimited}
	case errors.Is(err, services.ErrPromptInFlight):
		return http.StatusConflict, ErrorResponse{Error: msgPromptInFlight}
	case errors.Is(err, services.ErrEmptyPrompt):
		return http.StatusBadGateway, ErrorResponse{Error: msgNoPrompt}
	case errors.As(err, &ue):
		switch ue.Kind {
		case services.UpstreamQuota:
			return http.StatusPaymentRequired, ErrorResponse{Error: msgUpstreamQuota, Details: ue.Message}
		case services.UpstreamRateLimited:
			return http.StatusTooManyRequests, ErrorResponse{Error: msgUpstreamBusy, Details: ue.Message}
		case services.UpstreamInvalidKey:
			return http.StatusBadGateway, ErrorResponse{Error: msgUpstreamKey, Details: ue.Message}
		default:
			return http.StatusBadGateway, ErrorResponse{Error: msgUpstreamDown, Details: ue.Message}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: msgPromptFailed}
}

// editorPrompts lets an editor session request prompts for its user.
type editorPrompts struct {
	prompts PromptService
	user    models.AuthUser
}

func (p editorPrompts) RequestPrompt(ctx context.Context, content string) (editor.PromptReply, error) {
	res, err := p.prompts.Generate(ctx, p.user, services.PromptRequest{Content: content})
	if err != nil {
		return editor.PromptReply{}, requestError(err)
	}
	usage := res.Usage
	return editor.PromptReply{Prompt: res.PromptText, Usage: &usage}, nil
}

// requestError classifies a generation failure for the suggestion machine. Our own interval and
// in-flight guards send the editor back to idle without a message. Quota and upstream rate limits
// stay quiet until the text changes; everything else is a plain error.
func requestError(err error) *editor.RequestError {
	status, resp := promptError(err)
	re := &editor.RequestError{Kind: editor.ErrorGeneric, Message: resp.Error, Usage: resp.Usage}
	switch {
	case errors.Is(err, services.ErrRateLimited), errors.Is(err, services.ErrPromptInFlight):
		re.Kind = editor.ErrorBlocked
	case errors.Is(err, services.ErrQuotaExceeded), status == http.StatusPaymentRequired:
		re.Kind = editor.ErrorQuota
	case status == http.StatusTooManyRequests:
		re.Kind = editor.ErrorRateLimited
	}
	return re
}

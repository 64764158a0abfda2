package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// maxWebhookBytes is the largest Stripe event body accepted
const maxWebhookBytes = 65536

// BillingService runs Stripe checkout. *services.CheckoutService implements it.
type BillingService interface {
	CreateSession(ctx context.Context, user models.AuthUser, baseURL, idempotencyKey string) (string, error)
	ConfirmSession(ctx context.Context, user models.AuthUser, sessionID string) (*models.User, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type BillingSuccessRequest struct {
	SessionID string `json:"session_id"`
}

type BillingSuccessResponse struct {
	Profile *models.User `json:"profile"`
	Usage   models.Usage `json:"usage"`
}

type BillingHandler struct {
	billing BillingService
	usage   UsageReader
	log     logrus.FieldLogger
}

func NewBillingHandler(billing BillingService, usage UsageReader, log logrus.FieldLogger) *BillingHandler {
	return &BillingHandler{billing: billing, usage: usage, log: log}
}

// CreateCheckoutSession starts a subscription checkout and returns the hosted page URL.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	base := services.ResolveBaseURL("", r.Host, r.Header.Get("X-Forwarded-Proto"))
	url, err := h.billing.CreateSession(r.Context(), user, base, key)
	if err != nil {
		msg := "Failed to create checkout session"
		var ce *services.CheckoutError
		if errors.As(err, &ce) && ce.Message != "" {
			msg = ce.Message
		}
		writeError(w, http.StatusInternalServerError, msg, "")
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

// Success confirms a finished checkout for the caller and returns the upgraded profile.
func (h *BillingHandler) Success(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req BillingSuccessRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}

	profile, err := h.billing.ConfirmSession(r.Context(), user, req.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSessionIDRequired):
		writeError(w, http.StatusBadRequest, "session_id is required", "")
		return
	case errors.Is(err, services.ErrCheckoutIncomplete), errors.Is(err, services.ErrCheckoutMismatch):
		writeError(w, http.StatusForbidden, "Checkout session could not be verified", err.Error())
		return
	case errors.Is(err, services.ErrStripeNotConfigured):
		writeError(w, http.StatusInternalServerError, "Stripe is not configured. Please check STRIPE_SECRET_KEY environment variable.", "")
		return
	default:
		h.log.WithError(err).WithField("user_id", user.ID).Error("failed to confirm checkout")
		writeError(w, http.StatusInternalServerError, "Failed to confirm checkout", "")
		return
	}

	usage, err := h.usage.Get(r.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("failed to load usage after upgrade")
	}
	writeJSON(w, http.StatusOK, BillingSuccessResponse{Profile: profile, Usage: usage})
}

// Webhook applies signed Stripe events. Unknown event types are acknowledged and ignored.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read request body", "")
		return
	}

	eventType, err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "type": eventType})
	case errors.Is(err, services.ErrBadSignature):
		h.log.WithError(err).Warn("rejected stripe webhook")
		writeError(w, http.StatusBadRequest, "Invalid signature", "")
	case errors.Is(err, services.ErrMissingClientReference):
		h.log.WithField("type", eventType).Warn("checkout event without client reference")
		writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "type": eventType})
	default:
		h.log.WithError(err).WithField("type", eventType).Error("failed to apply stripe event")
		writeError(w, http.StatusInternalServerError, "Failed to process webhook", "")
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AnshRaj112/quill-backend/internal/metrics"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const defaultBaseURL = "http://localhost:3000"

var (
	ErrStripeNotConfigured    = errors.New("stripe secret key is not configured")
	ErrInvalidPriceID         = errors.New("stripe price id is not configured")
	ErrWebhookNotConfigured   = errors.New("stripe webhook secret is not configured")
	ErrSessionIDRequired      = errors.New("session_id is required")
	ErrCheckoutIncomplete     = errors.New("checkout session is not complete")
	ErrCheckoutMismatch       = errors.New("checkout session belongs to another user")
	ErrBadSignature           = errors.New("invalid stripe signature")
	ErrMissingClientReference = errors.New("checkout session has no client reference id")
)

// CheckoutError carries the message shown to the client alongside the cause.
type CheckoutError struct {
	Message string
	Err     error
}

func (e *CheckoutError) Error() string { return e.Message }
func (e *CheckoutError) Unwrap() error { return e.Err }

// CheckoutAPI is the slice of Stripe the billing flow needs.
type CheckoutAPI interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(id string) (*stripe.CheckoutSession, error)
}

// StripeCheckout adapts a stripe-go client to CheckoutAPI.
type StripeCheckout struct {
	api *client.API
}

func NewStripeCheckout(secretKey string, backends *stripe.Backends) *StripeCheckout {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeCheckout{api: api}
}

func (s *StripeCheckout) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return s.api.CheckoutSessions.New(params)
}

func (s *StripeCheckout) GetSession(id string) (*stripe.CheckoutSession, error) {
	return s.api.CheckoutSessions.Get(id, nil)
}

// BillingProfiles changes a user's tier.
type BillingProfiles interface {
	UpgradeToPremium(ctx context.Context, userID uuid.UUID, customerID string) (*models.User, error)
	DowngradeCustomer(ctx context.Context, customerID string) error
}

// UsageInvalidator drops cached usage after a tier change.
type UsageInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// CheckoutConfig is the Stripe part of the server config.
type CheckoutConfig struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	SiteURL       string
}

// CheckoutService creates hosted checkout sessions and applies their outcome.
type CheckoutService struct {
	api      CheckoutAPI
	cfg      CheckoutConfig
	profiles BillingProfiles
	usage    UsageInvalidator
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewCheckoutService(api CheckoutAPI, cfg CheckoutConfig, profiles BillingProfiles, usage UsageInvalidator, m *metrics.Metrics, log logrus.FieldLogger) *CheckoutService {
	return &CheckoutService{api: api, cfg: cfg, profiles: profiles, usage: usage, metrics: m, log: log}
}

// ResolveBaseURL picks the origin for redirect URLs: configured site URL, then the request host,
// then localhost.
func ResolveBaseURL(siteURL, host, forwardedProto string) string {
	base := strings.TrimSpace(siteURL)
	if base == "" && host != "" {
		proto := forwardedProto
		if proto == "" {
			proto = "https"
			if strings.Contains(host, "localhost") {
				proto = "http"
			}
		}
		base = proto + "://" + host
	}
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

// CreateSession starts a monthly subscription checkout for user and returns the hosted URL.
// baseURL is used when no site URL is configured. idempotencyKey is forwarded to Stripe.
func (s *CheckoutService) CreateSession(ctx context.Context, user models.AuthUser, baseURL, idempotencyKey string) (string, error) {
	if !strings.HasPrefix(s.cfg.SecretKey, "sk_") {
		s.metrics.CheckoutSession("not_configured")
		s.log.Error("STRIPE_SECRET_KEY is missing or malformed")
		return "", &CheckoutError{
			Message: "Stripe is not configured. Please check STRIPE_SECRET_KEY environment variable.",
			Err:     ErrStripeNotConfigured,
		}
	}
	if !strings.HasPrefix(s.cfg.PriceID, "price_") {
		current := s.cfg.PriceID
		if current == "" {
			current = "MISSING"
		}
		s.metrics.CheckoutSession("invalid_price")
		s.log.WithField("price_id", current).Error("STRIPE_PRICE_MONTHLY is missing or malformed")
		return "", &CheckoutError{
			Message: fmt.Sprintf("Stripe price ID is not configured. Current value: %q. Please check STRIPE_PRICE_MONTHLY environment variable.", current),
			Err:     ErrInvalidPriceID,
		}
	}

	base := ResolveBaseURL(s.cfg.SiteURL, "", "")
	if s.cfg.SiteURL == "" && baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.cfg.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(base + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(base + "/billing"),
		ClientReferenceID: stripe.String(user.ID.String()),
	}
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	params.Context = ctx

	sess, err := s.api.NewSession(params)
	if err != nil {
		s.metrics.CheckoutSession("error")
		s.log.WithError(err).WithField("user_id", user.ID).Error("failed to create checkout session")
		return "", s.mapStripeError(err)
	}

	s.metrics.CheckoutSession("ok")
	return sess.URL, nil
}

func (s *CheckoutService) mapStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Code == stripe.ErrorCodeResourceMissing {
			return &CheckoutError{
				Message: fmt.Sprintf("Invalid Stripe Price ID. The price ID %q does not exist in your Stripe account.", s.cfg.PriceID),
				Err:     err,
			}
		}
		if se.Type == stripe.ErrorTypeInvalidRequest {
			return &CheckoutError{Message: "Stripe API error: " + se.Msg, Err: err}
		}
		if se.Msg != "" {
			return &CheckoutError{Message: se.Msg, Err: err}
		}
	}
	msg := err.Error()
	if msg == "" {
		msg = "Failed to create checkout session"
	}
	return &CheckoutError{Message: msg, Err: err}
}

// ConfirmSession verifies a completed checkout belongs to user and upgrades them.
func (s *CheckoutService) ConfirmSession(ctx context.Context, user models.AuthUser, sessionID string) (*models.User, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	if !strings.HasPrefix(s.cfg.SecretKey, "sk_") {
		return nil, ErrStripeNotConfigured
	}

	sess, err := s.api.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if sess.Status != stripe.CheckoutSessionStatusComplete {
		return nil, ErrCheckoutIncomplete
	}
	if sess.ClientReferenceID != user.ID.String() {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "session_id": sessionID}).Warn("checkout session reference mismatch")
		return nil, ErrCheckoutMismatch
	}

	profile, err := s.profiles.UpgradeToPremium(ctx, user.ID, customerID(sess.Customer))
	if err != nil {
		return nil, err
	}
	s.usage.Invalidate(ctx, user.ID)
	return profile, nil
}

// HandleWebhook verifies and applies a Stripe event. Unknown events are ignored.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	if s.cfg.WebhookSecret == "" {
		return "", ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	eventType := string(event.Type)
	s.metrics.WebhookEvent(eventType)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return eventType, fmt.Errorf("decode checkout session: %w", err)
		}
		userID, err := uuid.Parse(sess.ClientReferenceID)
		if err != nil {
			return eventType, ErrMissingClientReference
		}
		if _, err := s.profiles.UpgradeToPremium(ctx, userID, customerID(sess.Customer)); err != nil {
			return eventType, err
		}
		s.usage.Invalidate(ctx, userID)
		s.log.WithField("user_id", userID).Info("checkout completed")

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return eventType, fmt.Errorf("decode subscription: %w", err)
		}
		cid := customerID(sub.Customer)
		if cid == "" {
			return eventType, nil
		}
		if err := s.profiles.DowngradeCustomer(ctx, cid); err != nil && !errors.Is(err, ErrProfileNotFound) {
			return eventType, err
		}
		s.log.WithField("customer_id", cid).Info("subscription cancelled")

	default:
		s.log.WithField("type", eventType).Debug("ignoring stripe event")
	}
	return eventType, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

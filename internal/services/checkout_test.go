package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

type fakeCheckoutAPI struct {
	params  *stripe.CheckoutSessionParams
	newErr  error
	session *stripe.CheckoutSession
}

func (f *fakeCheckoutAPI) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeCheckoutAPI) GetSession(id string) (*stripe.CheckoutSession, error) {
	if f.session == nil || f.session.ID != id {
		return nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing, Msg: "No such checkout.session"}
	}
	return f.session, nil
}

type countingInvalidator struct{ ids []uuid.UUID }

func (c *countingInvalidator) Invalidate(_ context.Context, id uuid.UUID) { c.ids = append(c.ids, id) }

type checkoutFixture struct {
	svc   *CheckoutService
	api   *fakeCheckoutAPI
	users *fakeUsers
	usage *countingInvalidator
	user  models.AuthUser
}

func newCheckoutFixture(t *testing.T, cfg CheckoutConfig) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		api:   &fakeCheckoutAPI{},
		users: newFakeUsers(),
		usage: &countingInvalidator{},
		user:  models.AuthUser{ID: uuid.New(), Email: "a@example.com"},
	}
	f.users.rows[f.user.ID] = models.User{ID: f.user.ID, Email: f.user.Email, SubscriptionStatus: models.SubscriptionFree}
	f.svc = NewCheckoutService(f.api, cfg, NewProfileService(f.users, nullLogger()), f.usage, nil, nullLogger())
	return f
}

func validCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{SecretKey: "sk_test_123", PriceID: "price_123", WebhookSecret: testWebhookSecret}
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, "https://quill.app", ResolveBaseURL("https://quill.app/", "ignored.com", "http"))
	assert.Equal(t, "https://app.example.com", ResolveBaseURL("", "app.example.com", ""))
	assert.Equal(t, "http://localhost:3000", ResolveBaseURL("", "localhost:3000", ""))
	assert.Equal(t, "http://app.example.com", ResolveBaseURL("", "app.example.com", "http"))
	assert.Equal(t, "http://localhost:3000", ResolveBaseURL("", "", ""))
}

func TestCreateSession(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())

	url, err := f.svc.CreateSession(context.Background(), f.user, "https://app.example.com/", "idem-1")
	require.NoError(t, err)
	assert.Contains(t, url, "checkout.stripe.com")

	p := f.api.params
	assert.Equal(t, "subscription", *p.Mode)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "price_123", *p.LineItems[0].Price)
	assert.Equal(t, int64(1), *p.LineItems[0].Quantity)
	assert.Equal(t, "https://app.example.com/billing/success?session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, "https://app.example.com/billing", *p.CancelURL)
	assert.Equal(t, f.user.ID.String(), *p.ClientReferenceID)
	assert.Equal(t, "a@example.com", *p.CustomerEmail)
	assert.Equal(t, "idem-1", *p.IdempotencyKey)
}

func TestCreateSessionPrefersSiteURL(t *testing.T) {
	cfg := validCheckoutConfig()
	cfg.SiteURL = "https://quill.app"
	f := newCheckoutFixture(t, cfg)

	_, err := f.svc.CreateSession(context.Background(), f.user, "http://localhost:3000", "")
	require.NoError(t, err)
	assert.Equal(t, "https://quill.app/billing", *f.api.params.CancelURL)
	assert.Nil(t, f.api.params.IdempotencyKey)
}

func TestCreateSessionConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  CheckoutConfig
		want error
		msg  string
	}{
		{"missing key", CheckoutConfig{PriceID: "price_1"}, ErrStripeNotConfigured,
			"Stripe is not configured. Please check STRIPE_SECRET_KEY environment variable."},
		{"publishable key", CheckoutConfig{SecretKey: "pk_test_1", PriceID: "price_1"}, ErrStripeNotConfigured,
			"Stripe is not configured. Please check STRIPE_SECRET_KEY environment variable."},
		{"missing price", CheckoutConfig{SecretKey: "sk_test_1"}, ErrInvalidPriceID,
			`Stripe price ID is not configured. Current value: "MISSING". Please check STRIPE_PRICE_MONTHLY environment variable.`},
		{"product id", CheckoutConfig{SecretKey: "sk_test_1", PriceID: "prod_1"}, ErrInvalidPriceID,
			`Stripe price ID is not configured. Current value: "prod_1". Please check STRIPE_PRICE_MONTHLY environment variable.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t, tt.cfg)
			_, err := f.svc.CreateSession(context.Background(), f.user, "", "")
			assert.ErrorIs(t, err, tt.want)
			assert.EqualError(t, err, tt.msg)
			assert.Nil(t, f.api.params, "stripe is not called")
		})
	}
}

func TestCreateSessionStripeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"unknown price", &stripe.Error{Code: stripe.ErrorCodeResourceMissing, Type: stripe.ErrorTypeInvalidRequest, Msg: "No such price"},
			`Invalid Stripe Price ID. The price ID "price_123" does not exist in your Stripe account.`},
		{"invalid request", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "Missing required param"},
			"Stripe API error: Missing required param"},
		{"api error", &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "Something went wrong"},
			"Something went wrong"},
		{"network", errors.New("dial tcp: timeout"), "dial tcp: timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t, validCheckoutConfig())
			f.api.newErr = tt.err

			_, err := f.svc.CreateSession(context.Background(), f.user, "", "")
			var ce *CheckoutError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.msg, ce.Message)
		})
	}
}

func TestConfirmSession(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	f.api.session = &stripe.CheckoutSession{
		ID:                "cs_1",
		Status:            stripe.CheckoutSessionStatusComplete,
		ClientReferenceID: f.user.ID.String(),
		Customer:          &stripe.Customer{ID: "cus_9"},
	}

	u, err := f.svc.ConfirmSession(context.Background(), f.user, "cs_1")
	require.NoError(t, err)
	assert.True(t, u.IsPremium())
	assert.Equal(t, "cus_9", f.users.rows[f.user.ID].StripeCustomerID)
	assert.Equal(t, []uuid.UUID{f.user.ID}, f.usage.ids)
}

func TestConfirmSessionRejects(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	ctx := context.Background()

	_, err := f.svc.ConfirmSession(ctx, f.user, "")
	assert.ErrorIs(t, err, ErrSessionIDRequired)

	f.api.session = &stripe.CheckoutSession{ID: "cs_1", Status: stripe.CheckoutSessionStatusOpen, ClientReferenceID: f.user.ID.String()}
	_, err = f.svc.ConfirmSession(ctx, f.user, "cs_1")
	assert.ErrorIs(t, err, ErrCheckoutIncomplete)

	f.api.session = &stripe.CheckoutSession{ID: "cs_1", Status: stripe.CheckoutSessionStatusComplete, ClientReferenceID: uuid.NewString()}
	_, err = f.svc.ConfirmSession(ctx, f.user, "cs_1")
	assert.ErrorIs(t, err, ErrCheckoutMismatch)

	_, err = f.svc.ConfirmSession(ctx, f.user, "cs_missing")
	assert.Error(t, err)

	assert.Equal(t, models.SubscriptionFree, f.users.rows[f.user.ID].SubscriptionStatus)
}

func signatureFor(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret}).Header
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":%q,"customer":"cus_42","status":"complete"}}}`, f.user.ID))

	typ, err := f.svc.HandleWebhook(context.Background(), payload, signatureFor(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", typ)
	assert.Equal(t, models.SubscriptionPremium, f.users.rows[f.user.ID].SubscriptionStatus)
	assert.Equal(t, "cus_42", f.users.rows[f.user.ID].StripeCustomerID)
}

func TestWebhookSubscriptionDeleted(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	f.users.rows[f.user.ID] = models.User{ID: f.user.ID, SubscriptionStatus: models.SubscriptionPremium, StripeCustomerID: "cus_42"}
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.subscription.deleted",
		"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_42"}}}`)

	_, err := f.svc.HandleWebhook(context.Background(), payload, signatureFor(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionFree, f.users.rows[f.user.ID].SubscriptionStatus)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := f.svc.HandleWebhook(context.Background(), payload, signatureFor(payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = f.svc.HandleWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	f := newCheckoutFixture(t, validCheckoutConfig())
	payload := []byte(`{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)

	typ, err := f.svc.HandleWebhook(context.Background(), payload, signatureFor(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", typ)
}

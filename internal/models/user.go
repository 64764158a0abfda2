package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the billing tier stored on users.subscription_status
type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionPremium SubscriptionStatus = "premium"
)

// User is the application mirror of an auth provider account
type User struct {
	ID                 uuid.UUID          `json:"id"`
	Email              string             `json:"email"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   string             `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (u *User) IsPremium() bool {
	return u != nil && u.SubscriptionStatus == SubscriptionPremium
}

// AuthUser is the identity carried by a verified access token
type AuthUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role,omitempty"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/google/uuid"
)

// UserRepository persists the users mirror table.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns ErrNotFound when the user has never been mirrored.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, subscription_status, COALESCE(stripe_customer_id, ''), created_at
		FROM users WHERE id = $1`

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.SubscriptionStatus, &u.StripeCustomerID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// Create inserts a free-tier row. A concurrent first login for the same id keeps the existing row.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, email, subscription_status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = users.email
		RETURNING subscription_status, created_at`

	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = models.SubscriptionFree
	}
	return r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.SubscriptionStatus).
		Scan(&u.SubscriptionStatus, &u.CreatedAt)
}

// SetSubscription updates the tier and, when non-empty, the Stripe customer id.
func (r *UserRepository) SetSubscription(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus, customerID string) error {
	query := `UPDATE users
		SET subscription_status = $2,
			stripe_customer_id = COALESCE(NULLIF($3, ''), stripe_customer_id)
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status, customerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetSubscriptionByCustomer is used by billing webhooks, which only know the Stripe customer.
func (r *UserRepository) SetSubscriptionByCustomer(ctx context.Context, customerID string, status models.SubscriptionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET subscription_status = $2 WHERE stripe_customer_id = $1`,
		customerID, status,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

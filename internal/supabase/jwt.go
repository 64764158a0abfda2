package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// VerifyToken validates an access token. With a JWT secret configured the signature is checked
// locally; otherwise, or when local parsing fails, the Auth API decides.
func (c *Client) VerifyToken(ctx context.Context, token string) (models.AuthUser, error) {
	if token == "" {
		return models.AuthUser{}, ErrInvalidToken
	}
	if c.config.JWTSecret != "" {
		if u, err := VerifyTokenLocal(token, c.config.JWTSecret); err == nil {
			return u, nil
		}
	}

	user, err := c.GetUser(ctx, token)
	if err != nil {
		if IsUnauthorized(err) {
			return models.AuthUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return models.AuthUser{}, err
	}
	au, err := user.AuthUser()
	if err != nil {
		return models.AuthUser{}, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}
	return au, nil
}

// VerifyTokenLocal checks an HS256 Supabase access token against secret.
func VerifyTokenLocal(token, secret string) (models.AuthUser, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return models.AuthUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return models.AuthUser{}, ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	u := &User{ID: sub, Email: stringClaim(claims, "email"), Role: stringClaim(claims, "role")}
	au, err := u.AuthUser()
	if err != nil {
		return models.AuthUser{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return au, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

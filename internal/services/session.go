package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is a browser login backed by Supabase tokens. The refresh token is stored encrypted.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionStore keeps browser sessions in Redis under session:<token>
type SessionStore struct {
	rdb    *redis.Client
	cipher *utils.Cipher
}

// NewSessionStore creates a store. cipher may be nil, in which case refresh tokens are stored as is.
func NewSessionStore(rdb *redis.Client, cipher *utils.Cipher) *SessionStore {
	return &SessionStore{rdb: rdb, cipher: cipher}
}

// Create stores s and returns the opaque token for the session cookie.
func (st *SessionStore) Create(ctx context.Context, s Session) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	if err := st.put(ctx, token, s, SessionDuration); err != nil {
		return "", err
	}
	return token, nil
}

// Get loads the session for token
func (st *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := st.rdb.Get(ctx, SessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.RefreshToken, err = st.cipher.Decrypt(s.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return &s, nil
}

// Update replaces the tokens and resets the 7-day timer
func (st *SessionStore) Update(ctx context.Context, token string, s Session) error {
	return st.put(ctx, token, s, SessionDuration)
}

// Delete removes a session from Redis
func (st *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return st.rdb.Del(ctx, SessionKeyPrefix+token).Err()
}

func (st *SessionStore) put(ctx context.Context, token string, s Session, ttl time.Duration) error {
	sealed, err := st.cipher.Encrypt(s.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	s.RefreshToken = sealed

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return st.rdb.Set(ctx, SessionKeyPrefix+token, data, ttl).Err()
}

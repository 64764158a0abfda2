package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdempotencyTTL is how long a first response is replayed for a repeated key
const IdempotencyTTL = 24 * time.Hour

const (
	idempotencyKeyPrefix = "idem:"
	maxIdempotencyKeyLen = 255
)

var ErrInvalidIdempotencyKey = errors.New("idempotency key must be at most 255 characters")

// IdempotencyStore remembers the first successful response for an Idempotency-Key header.
// Keys are namespaced per scope and per user so one user cannot replay another's response.
type IdempotencyStore struct {
	rdb *redis.Client
}

func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func idempotencyKey(scope string, userID uuid.UUID, key string) string {
	return idempotencyKeyPrefix + scope + ":" + userID.String() + ":" + key
}

// ValidateIdempotencyKey trims key; empty means the caller did not ask for idempotency.
func ValidateIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) > maxIdempotencyKeyLen {
		return "", ErrInvalidIdempotencyKey
	}
	return key, nil
}

// Lookup decodes a stored response into dest. A miss is (false, nil).
func (s *IdempotencyStore) Lookup(ctx context.Context, scope string, userID uuid.UUID, key string, dest any) (bool, error) {
	if key == "" {
		return false, nil
	}
	raw, err := s.rdb.Get(ctx, idempotencyKey(scope, userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// Save records value unless another request already stored one for the key.
func (s *IdempotencyStore) Save(ctx context.Context, scope string, userID uuid.UUID, key string, value any) error {
	if key == "" {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.SetNX(ctx, idempotencyKey(scope, userID, key), data, IdempotencyTTL).Err()
}

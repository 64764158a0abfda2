package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *utils.Cipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := utils.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return c
}

func TestSessionRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, testCipher(t))
	ctx := context.Background()

	in := Session{
		UserID:       uuid.New(),
		Email:        "a@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh-secret",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	token, err := store.Create(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	raw, err := mr.Get(SessionKeyPrefix + token)
	require.NoError(t, err)
	assert.NotContains(t, raw, "refresh-secret")
	assert.Equal(t, SessionDuration, mr.TTL(SessionKeyPrefix+token))

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, got.UserID)
	assert.Equal(t, "refresh-secret", got.RefreshToken)
	assert.True(t, in.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Delete(ctx, token))
	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionGetUnknownToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, nil)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

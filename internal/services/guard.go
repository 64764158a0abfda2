package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	promptLastKeyPrefix     = "prompt:last:"
	promptInFlightKeyPrefix = "prompt:inflight:"
	// PromptMinInterval is the minimum time between two prompt generations for one user
	PromptMinInterval = 10 * time.Second
	// inFlightTTL outlives the upstream timeout so a crashed request cannot wedge the key
	inFlightTTL = 35 * time.Second
)

// PromptGuard enforces the per-user call spacing and the identical-content in-flight rule.
// Redis errors fail open, like the request rate limiter.
type PromptGuard struct {
	rdb         *redis.Client
	minInterval time.Duration
	log         logrus.FieldLogger
}

func NewPromptGuard(rdb *redis.Client, minInterval time.Duration, log logrus.FieldLogger) *PromptGuard {
	return &PromptGuard{rdb: rdb, minInterval: minInterval, log: log}
}

// AcquireInFlight marks content as being generated for the user. The release func must be called
// when the upstream call finishes.
func (g *PromptGuard) AcquireInFlight(ctx context.Context, userID uuid.UUID, content string) (func(), bool) {
	key := promptInFlightKeyPrefix + userID.String() + ":" + utils.Fingerprint(content)
	ok, err := g.rdb.SetNX(ctx, key, "1", inFlightTTL).Result()
	if err != nil {
		g.log.WithError(err).Warn("prompt guard: in-flight check failed, allowing")
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		// ctx may already be cancelled when the request ends
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		g.rdb.Del(rctx, key)
	}, true
}

// AcquireInterval claims the next call slot. The release func gives the slot back, used when the
// upstream call fails so the user is not penalised for it.
func (g *PromptGuard) AcquireInterval(ctx context.Context, userID uuid.UUID) (func(), bool) {
	if g.minInterval <= 0 {
		return func() {}, true
	}
	key := promptLastKeyPrefix + userID.String()
	ok, err := g.rdb.SetNX(ctx, key, time.Now().UnixMilli(), g.minInterval).Result()
	if err != nil {
		g.log.WithError(err).Warn("prompt guard: interval check failed, allowing")
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		g.rdb.Del(rctx, key)
	}, true
}

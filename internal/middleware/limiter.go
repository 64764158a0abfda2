package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// keyedLimiters hands out one token bucket per key (IP or user) and forgets idle ones.
type keyedLimiters struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	cleanup sync.Once
}

func newKeyedLimiters(limit rate.Limit, burst int) *keyedLimiters {
	return &keyedLimiters{entries: make(map[string]*limiterEntry), limit: limit, burst: burst}
}

func (k *keyedLimiters) get(key string) *rate.Limiter {
	k.cleanup.Do(func() { go k.sweep() })

	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func (k *keyedLimiters) allow(key string) bool {
	return k.get(key).Allow()
}

func (k *keyedLimiters) sweep() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		k.mu.Lock()
		now := time.Now()
		for key, e := range k.entries {
			if now.Sub(e.lastUse) > limiterTTL {
				delete(k.entries, key)
			}
		}
		k.mu.Unlock()
	}
}

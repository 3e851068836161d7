package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campus-cupid/matchmaker/internal/domain/shared"
	"github.com/campus-cupid/matchmaker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN LOCK
// Одна активная сессия подбора на батч. Ключ живёт не дольше TTL, поэтому
// упавший процесс не блокирует батч навсегда.
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock implements matching.RunLock.
type RunLock struct {
	cache *Cache
	ttl   time.Duration
}

// NewRunLock creates a run lock with the given TTL.
func NewRunLock(cache *Cache, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{cache: cache, ttl: ttl}
}

// Acquire takes the batch lock and returns the owner token.
func (l *RunLock) Acquire(ctx context.Context, batch shared.BatchID) (string, error) {
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, RunLockKey(batch.String()), token, l.ttl)
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("run lock: acquire %s: %w", batch, err))
	}
	if !ok {
		return "", shared.ErrRunInProgress
	}
	return token, nil
}

// Release drops the lock if token still owns it. A lock that expired or was
// taken over by someone else is left alone.
func (l *RunLock) Release(ctx context.Context, batch shared.BatchID, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.cache.Client(), []string{RunLockKey(batch.String())}, token).Err(); err != nil {
		return fmt.Errorf("run lock: release %s: %w", batch, err)
	}
	return nil
}

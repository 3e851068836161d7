package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// StatsCache implements matching.StatsCache: the last run of each batch.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStatsCache creates a stats cache. Zero TTL keeps entries for a day.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// Put stores stats under the batch key, replacing the previous run.
func (s *StatsCache) Put(ctx context.Context, stats matching.Stats) error {
	if stats.BatchID == "" {
		return shared.ErrEmptyBatch
	}
	if err := s.cache.Set(ctx, RunStatsKey(stats.BatchID), stats, s.ttl); err != nil {
		return fmt.Errorf("stats cache: put %s: %w", stats.BatchID, err)
	}
	return nil
}

// Get returns cached stats or shared.ErrRunNotFound.
func (s *StatsCache) Get(ctx context.Context, batch shared.BatchID) (*matching.Stats, error) {
	var stats matching.Stats
	if err := s.cache.Get(ctx, RunStatsKey(batch.String()), &stats); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrRunNotFound
		}
		return nil, fmt.Errorf("stats cache: get %s: %w", batch, err)
	}
	return &stats, nil
}

package query

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
	"github.com/campus-cupid/matchmaker/pkg/logger"
)

type stubMatches struct {
	matches  []matching.Match
	err      error
	countErr error
	page     shared.Pagination
}

func (s *stubMatches) ReplaceBatch(context.Context, shared.BatchID, []matching.Match) error {
	return nil
}

func (s *stubMatches) ListByUser(_ context.Context, _ shared.BatchID, _ matching.UserID, page shared.Pagination) ([]matching.Match, error) {
	s.page = page
	return s.matches, s.err
}

func (s *stubMatches) CountByBatch(context.Context, shared.BatchID) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.matches) + 10, nil
}

type stubRuns struct {
	stats *matching.Stats
	err   error
	calls int
}

func (s *stubRuns) Save(context.Context, matching.Stats) error { return nil }

func (s *stubRuns) Latest(context.Context, shared.BatchID) (*matching.Stats, error) {
	s.calls++
	return s.stats, s.err
}

type stubCache struct {
	stats *matching.Stats
	err   error
	put   []matching.Stats
}

func (s *stubCache) Put(_ context.Context, stats matching.Stats) error {
	s.put = append(s.put, stats)
	return nil
}

func (s *stubCache) Get(context.Context, shared.BatchID) (*matching.Stats, error) {
	if s.stats == nil {
		return nil, s.err
	}
	return s.stats, nil
}

func TestGetMatches(t *testing.T) {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	repo := &stubMatches{matches: []matching.Match{
		{ID: "m1", UserA: "alice", UserB: "bob", Score: 62, Source: matching.MatchSourceFallback, CreatedAt: now},
		{ID: "m2", UserA: "alice", UserB: "carol", Score: 91.5, Source: matching.MatchSourcePrimary, CreatedAt: now},
		{ID: "m3", UserA: "dave", UserB: "erin", Score: 99, Source: matching.MatchSourcePrimary, CreatedAt: now},
	}}

	res, err := NewGetMatchesHandler(repo).Handle(context.Background(), GetMatchesQuery{BatchID: "b", UserID: "alice"})
	require.NoError(t, err)

	require.Len(t, res.Matches, 2, "foreign pairs are dropped")
	assert.Equal(t, "carol", res.Matches[0].PartnerID)
	assert.Equal(t, "excellent", res.Matches[0].Quality)
	assert.Equal(t, "primary", res.Matches[0].Source)
	assert.Equal(t, "bob", res.Matches[1].PartnerID)
	assert.Equal(t, "good", res.Matches[1].Quality)
	assert.Equal(t, 13, res.TotalInBatch)
	assert.Equal(t, shared.DefaultPagination(), repo.page)
}

func TestGetMatches_Errors(t *testing.T) {
	h := NewGetMatchesHandler(&stubMatches{err: shared.ErrTimeout})

	_, err := h.Handle(context.Background(), GetMatchesQuery{BatchID: "b"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(context.Background(), GetMatchesQuery{BatchID: "", UserID: "alice"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(context.Background(), GetMatchesQuery{BatchID: "b", UserID: "alice"})
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestGetMatches_EmptyIsNotAnError(t *testing.T) {
	res, err := NewGetMatchesHandler(&stubMatches{}).Handle(context.Background(), GetMatchesQuery{BatchID: "b", UserID: "x", PageSize: 5})
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
}

func TestGetMatches_CountFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelDebug, Format: logger.FormatJSON})
	ctx := logger.WithContext(context.Background(), log)

	repo := &stubMatches{
		matches:  []matching.Match{{ID: "m1", UserA: "alice", UserB: "bob", Score: 80}},
		countErr: shared.ErrTimeout,
	}

	res, err := NewGetMatchesHandler(repo).Handle(ctx, GetMatchesQuery{BatchID: "b", UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
	assert.Zero(t, res.TotalInBatch)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, "failed to count batch matches")
	assert.Contains(t, out, `"batch_id":"b"`)
}

func TestGetRunStats(t *testing.T) {
	cached := &matching.Stats{RunID: "cached", BatchID: "b"}
	stored := &matching.Stats{RunID: "stored", BatchID: "b"}

	t.Run("cache hit", func(t *testing.T) {
		runs := &stubRuns{stats: stored}
		res, err := NewGetRunStatsHandler(runs, &stubCache{stats: cached}).Handle(context.Background(), GetRunStatsQuery{BatchID: "b"})
		require.NoError(t, err)
		assert.True(t, res.FromCache)
		assert.Equal(t, "cached", res.Stats.RunID)
		assert.Zero(t, runs.calls)
	})

	t.Run("cache miss refills", func(t *testing.T) {
		cache := &stubCache{err: shared.ErrRunNotFound}
		res, err := NewGetRunStatsHandler(&stubRuns{stats: stored}, cache).Handle(context.Background(), GetRunStatsQuery{BatchID: "b"})
		require.NoError(t, err)
		assert.False(t, res.FromCache)
		assert.Equal(t, "stored", res.Stats.RunID)
		require.Len(t, cache.put, 1)
	})

	t.Run("skip cache", func(t *testing.T) {
		res, err := NewGetRunStatsHandler(&stubRuns{stats: stored}, &stubCache{stats: cached}).
			Handle(context.Background(), GetRunStatsQuery{BatchID: "b", SkipCache: true})
		require.NoError(t, err)
		assert.Equal(t, "stored", res.Stats.RunID)
	})

	t.Run("never ran", func(t *testing.T) {
		_, err := NewGetRunStatsHandler(&stubRuns{err: shared.ErrRunNotFound}, nil).Handle(context.Background(), GetRunStatsQuery{BatchID: "b"})
		assert.ErrorIs(t, err, shared.ErrRunNotFound)
	})

	t.Run("storage down", func(t *testing.T) {
		_, err := NewGetRunStatsHandler(&stubRuns{err: errors.New("dial tcp")}, nil).Handle(context.Background(), GetRunStatsQuery{BatchID: "b"})
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}

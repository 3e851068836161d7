package query

import (
	"context"
	"errors"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RUN STATS QUERY
// Сводка последнего прогона батча. Сначала кэш, затем журнал прогонов.
// ══════════════════════════════════════════════════════════════════════════════

// GetRunStatsQuery содержит параметры запроса.
type GetRunStatsQuery struct {
	BatchID string

	// SkipCache - читать сразу из журнала.
	SkipCache bool
}

// GetRunStatsResult содержит сводку и её источник.
type GetRunStatsResult struct {
	Stats matching.Stats `json:"stats"`

	// FromCache - сводка взята из кэша.
	FromCache bool `json:"from_cache"`
}

// GetRunStatsHandler обрабатывает запросы статистики прогонов.
type GetRunStatsHandler struct {
	runRepo matching.RunRepository
	cache   matching.StatsCache
}

// NewGetRunStatsHandler создаёт новый обработчик. cache может быть nil.
func NewGetRunStatsHandler(runRepo matching.RunRepository, cache matching.StatsCache) *GetRunStatsHandler {
	return &GetRunStatsHandler{runRepo: runRepo, cache: cache}
}

// Handle выполняет запрос. Возвращает shared.ErrRunNotFound, если батч ещё не запускался.
func (h *GetRunStatsHandler) Handle(ctx context.Context, query GetRunStatsQuery) (*GetRunStatsResult, error) {
	batch, err := shared.NewBatchID(query.BatchID)
	if err != nil {
		return nil, shared.WrapError("query", "GetRunStats", shared.ErrValidation, err.Error(), err)
	}

	// Ошибка кэша - не повод отказывать, идём в журнал.
	if h.cache != nil && !query.SkipCache {
		if stats, err := h.cache.Get(ctx, batch); err == nil && stats != nil {
			return &GetRunStatsResult{Stats: *stats, FromCache: true}, nil
		}
	}

	stats, err := h.runRepo.Latest(ctx, batch)
	if err != nil {
		if errors.Is(err, shared.ErrRunNotFound) {
			return nil, err
		}
		return nil, shared.WrapError("query", "GetRunStats", shared.ErrServiceUnavailable, "load run stats", err)
	}

	if h.cache != nil {
		_ = h.cache.Put(ctx, *stats)
	}

	return &GetRunStatsResult{Stats: *stats}, nil
}

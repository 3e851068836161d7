// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
	"github.com/campus-cupid/matchmaker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MATCHES QUERY
// Возвращает пары пользователя в батче: с кем совпал, насколько и каким
// проходом найдена пара. Это то, что видит пользователь после прогона.
// ══════════════════════════════════════════════════════════════════════════════

// GetMatchesQuery содержит параметры запроса пар пользователя.
type GetMatchesQuery struct {
	// BatchID - раунд подбора.
	BatchID string

	// UserID - чьи пары показываем.
	UserID string

	// Page, PageSize - пагинация (по умолчанию 1 и 20).
	Page     int
	PageSize int
}

// Validate проверяет корректность параметров запроса.
func (q *GetMatchesQuery) Validate() error {
	if _, err := shared.NewBatchID(q.BatchID); err != nil {
		return err
	}
	if matching.UserID(q.UserID).IsEmpty() {
		return errors.New("user_id is required")
	}
	if q.Page < 0 || q.PageSize < 0 {
		return errors.New("pagination cannot be negative")
	}
	return nil
}

// MatchDTO - одна пара с точки зрения пользователя.
type MatchDTO struct {
	// MatchID - идентификатор пары.
	MatchID string `json:"match_id"`

	// PartnerID - второй участник.
	PartnerID string `json:"partner_id"`

	// Score - итоговая оценка 0-100.
	Score float64 `json:"score"`

	// Quality - "excellent", "good", "fair", "poor", "none".
	Quality string `json:"quality"`

	// Source - "primary" или "fallback".
	Source string `json:"source"`

	// CreatedAt - когда пара была найдена.
	CreatedAt time.Time `json:"created_at"`
}

// GetMatchesResult содержит результат запроса.
type GetMatchesResult struct {
	BatchID string     `json:"batch_id"`
	UserID  string     `json:"user_id"`
	Matches []MatchDTO `json:"matches"`

	// TotalInBatch - сколько всего пар в батче (0 - прогона ещё не было).
	TotalInBatch int `json:"total_in_batch"`
}

// GetMatchesHandler обрабатывает запросы на получение пар.
type GetMatchesHandler struct {
	matchRepo matching.MatchRepository
}

// NewGetMatchesHandler создаёт новый обработчик.
func NewGetMatchesHandler(matchRepo matching.MatchRepository) *GetMatchesHandler {
	return &GetMatchesHandler{matchRepo: matchRepo}
}

// Handle выполняет запрос. Пустой список - нормальный ответ.
func (h *GetMatchesHandler) Handle(ctx context.Context, query GetMatchesQuery) (*GetMatchesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetMatches", shared.ErrValidation, err.Error(), err)
	}

	batch, _ := shared.NewBatchID(query.BatchID)
	user := matching.UserID(query.UserID)

	page := shared.DefaultPagination()
	if query.Page > 0 || query.PageSize > 0 {
		page = shared.NewPagination(query.Page, query.PageSize)
	}

	matches, err := h.matchRepo.ListByUser(ctx, batch, user, page)
	if err != nil {
		return nil, shared.WrapError("query", "GetMatches", shared.ErrServiceUnavailable, "list matches", err)
	}

	// Счётчик вспомогательный: при сбое отдаём пары без него, но пишем в лог.
	total, err := h.matchRepo.CountByBatch(ctx, batch)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to count batch matches",
			logger.BatchID(batch.String()),
			logger.Err(err),
		)
		total = 0
	}

	result := &GetMatchesResult{
		BatchID:      batch.String(),
		UserID:       user.String(),
		Matches:      make([]MatchDTO, 0, len(matches)),
		TotalInBatch: total,
	}

	for _, m := range matches {
		partner, ok := m.Partner(user)
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, MatchDTO{
			MatchID:   m.ID,
			PartnerID: partner.String(),
			Score:     m.Score,
			Quality:   string(m.Quality()),
			Source:    string(m.Source),
			CreatedAt: m.CreatedAt,
		})
	}

	// Хранилище уже сортирует, но порядок - часть контракта.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.PartnerID < b.PartnerID
	})

	return result, nil
}

package matching

import (
	"context"

	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракты хранилища для оркестратора. Реализации находятся в
// infrastructure/persistence; домен о них ничего не знает.
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository - источник пользователей и их ответов.
type UserRepository interface {
	// ListSubmitted возвращает пользователей батча с отправленными анкетами,
	// упорядоченных по id. Ответы уже расшифрованы внешним слоем.
	ListSubmitted(ctx context.Context, batch shared.BatchID) ([]RawUser, error)

	// ListPreferredPairs возвращает заранее назначенные пары батча.
	ListPreferredPairs(ctx context.Context, batch shared.BatchID) ([]PreferredPair, error)
}

// MatchRepository - хранилище итоговых пар.
type MatchRepository interface {
	// ReplaceBatch атомарно заменяет все пары батча.
	// Либо видны все новые пары, либо все старые.
	ReplaceBatch(ctx context.Context, batch shared.BatchID, matches []Match) error

	// ListByUser возвращает пары пользователя в батче по убыванию оценки.
	ListByUser(ctx context.Context, batch shared.BatchID, user UserID, page shared.Pagination) ([]Match, error)

	// CountByBatch возвращает число пар в батче.
	CountByBatch(ctx context.Context, batch shared.BatchID) (int, error)
}

// RunRepository - журнал прогонов.
type RunRepository interface {
	// Save сохраняет статистику прогона.
	Save(ctx context.Context, stats Stats) error

	// Latest возвращает последний прогон батча.
	// Возвращает shared.ErrRunNotFound, если прогонов не было.
	Latest(ctx context.Context, batch shared.BatchID) (*Stats, error)
}

// RunLock - эксклюзивная блокировка прогона батча.
type RunLock interface {
	// Acquire захватывает блокировку и возвращает токен владельца.
	// Возвращает shared.ErrRunInProgress, если блокировка занята.
	Acquire(ctx context.Context, batch shared.BatchID) (string, error)

	// Release снимает блокировку, только если токен совпадает.
	Release(ctx context.Context, batch shared.BatchID, token string) error
}

// StatsCache - быстрый доступ к статистике последнего прогона.
type StatsCache interface {
	Put(ctx context.Context, stats Stats) error

	// Get возвращает shared.ErrRunNotFound при промахе.
	Get(ctx context.Context, batch shared.BatchID) (*Stats, error)
}

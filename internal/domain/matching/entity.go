// Package matching содержит ядро подбора пар: нормализацию ответов анкеты,
// направленный подсчёт совместимости, агрегацию по секциям, жёсткие фильтры
// и поиск паросочетания максимального веса с добором по квоте.
//
// Пакет чистый: никакого ввода-вывода, никаких глобальных настроек.
// Все параметры приходят явно через Policy.
package matching

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// UserID - псевдоним общего идентификатора пользователя.
type UserID = shared.UserID

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// Importance bounds.
const (
	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3
)

// Preference - чего пользователь хочет от партнёра в этом вопросе.
type Preference struct {
	// Kind - вид сравнения (same, similar, more, ...).
	Kind questionnaire.PreferenceKind

	// Values - явный целевой набор значений (specific_values, целевой набор multi_select).
	Values StringSet

	// AgeRange - желаемый возраст партнёра для вопроса age_range.
	AgeRange *Range

	// DoesntMatter - "не важно": вопрос не влияет на оценку.
	DoesntMatter bool
}

// Response - нормализованный ответ пользователя на один вопрос.
type Response struct {
	QuestionID  string
	Answer      Answer
	Preference  Preference
	Importance  int
	Dealbreaker bool
}

// EffectiveImportance возвращает важность с учётом "не важно" (0 - не учитывается).
func (r Response) EffectiveImportance() int {
	if r.Preference.DoesntMatter {
		return 0
	}
	return r.Importance
}

// IsDealbreaker возвращает флаг dealbreaker с учётом "не важно".
func (r Response) IsDealbreaker() bool {
	return r.Dealbreaker && !r.Preference.DoesntMatter
}

// RawResponse - ответ в том виде, в каком он лежит в хранилище.
// Answer и Preference - произвольный JSON, форма зависит от типа вопроса.
type RawResponse struct {
	QuestionID  string
	Answer      json.RawMessage
	Preference  json.RawMessage
	Importance  int
	Dealbreaker bool
}

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// Profile - демографические атрибуты, участвующие в жёстких фильтрах.
type Profile struct {
	ID                UserID
	Gender            string
	GenderPreferences []string
	Age               int
	AgeRange          *Range
	Campus            string
	CrossCampus       bool
	SubmittedAt       *time.Time
}

// IsSubmitted возвращает true, если анкета отправлена (заблокирована).
func (p Profile) IsSubmitted() bool {
	return p.SubmittedAt != nil && !p.SubmittedAt.IsZero()
}

// RawUser - профиль и сырые ответы, загруженные из хранилища.
type RawUser struct {
	Profile
	Responses []RawResponse
}

// User - проекция пользователя для подбора: профиль + нормализованные ответы.
// После отправки анкеты не меняется.
type User struct {
	Profile
	Responses map[string]Response
}

// Response возвращает ответ на вопрос.
func (u User) Response(questionID string) (Response, bool) {
	r, ok := u.Responses[questionID]
	return r, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// PAIR SCORE
// ══════════════════════════════════════════════════════════════════════════════

// RejectedScore - значение-метка для пар, снятых dealbreaker-ом.
const RejectedScore = -1.0

// Direction - направление оценки внутри пары.
type Direction string

const (
	DirectionAToB Direction = "a_to_b"
	DirectionBToA Direction = "b_to_a"
)

// Contribution - вклад одного вопроса в направленную оценку (для аудита).
type Contribution struct {
	QuestionID string
	SectionID  string
	Direction  Direction
	// Score - направленная оценка вопроса в [0,1].
	Score float64
	// Weight - множитель важности.
	Weight float64
	// SectionWeight - вес секции вопроса.
	SectionWeight float64
}

// Impact - вес вклада в итоговую оценку без учёта нормировки.
func (c Contribution) Impact() float64 {
	return c.Score * c.Weight * c.SectionWeight
}

// PairScore - оценка неупорядоченной пары. UserA < UserB лексикографически.
type PairScore struct {
	UserA UserID
	UserB UserID

	// AToB, BToA - направленные оценки в [0,100].
	AToB float64
	BToA float64

	// TotalScore - среднее арифметическое направлений в [0,100].
	TotalScore float64

	// BidirectionalScore - симметричная оценка по выбранному комбинатору.
	// Именно она идёт в вес ребра.
	BidirectionalScore float64

	// HardFiltered - пара снята dealbreaker-ом.
	HardFiltered bool

	// DealbreakerQuestion - вопрос, на котором сработал dealbreaker.
	DealbreakerQuestion string

	// Contributions - вклады вопросов в обе стороны.
	Contributions []Contribution
}

// Quality возвращает качественную оценку пары.
func (p PairScore) Quality() MatchQuality {
	if p.HardFiltered {
		return MatchQualityNone
	}
	return MatchScore(p.BidirectionalScore).Quality()
}

// TopContributions возвращает n вопросов с наибольшим вкладом.
func (p PairScore) TopContributions(n int) []Contribution {
	if len(p.Contributions) == 0 || n <= 0 {
		return nil
	}

	sorted := make([]Contribution, len(p.Contributions))
	copy(sorted, p.Contributions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Impact() > sorted[j].Impact()
	})

	if n >= len(sorted) {
		return sorted
	}
	return sorted[:n]
}

// MatchScore - оценка совместимости (0-100).
type MatchScore float64

// IsValid проверяет корректность оценки.
func (m MatchScore) IsValid() bool {
	return m >= 0 && m <= 100
}

// Quality возвращает качественную оценку совместимости.
func (m MatchScore) Quality() MatchQuality {
	switch {
	case m >= 80:
		return MatchQualityExcellent
	case m >= 60:
		return MatchQualityGood
	case m >= 40:
		return MatchQualityFair
	case m >= 20:
		return MatchQualityPoor
	default:
		return MatchQualityNone
	}
}

// MatchQuality определяет качество подбора.
type MatchQuality string

const (
	// MatchQualityExcellent - отличная совместимость (80-100).
	MatchQualityExcellent MatchQuality = "excellent"

	// MatchQualityGood - хорошая совместимость (60-79).
	MatchQualityGood MatchQuality = "good"

	// MatchQualityFair - удовлетворительная совместимость (40-59).
	MatchQualityFair MatchQuality = "fair"

	// MatchQualityPoor - низкая совместимость (20-39).
	MatchQualityPoor MatchQuality = "poor"

	// MatchQualityNone - нет совместимости (0-19).
	MatchQualityNone MatchQuality = "none"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDGES AND MATCHES
// ══════════════════════════════════════════════════════════════════════════════

// MatchEdge - ребро графа для матчера. Вес = оценка × WeightScale.
type MatchEdge struct {
	UserA  UserID
	UserB  UserID
	Weight int64
}

// SortEdges упорядочивает рёбра: вес по убыванию, затем id по возрастанию.
func SortEdges(edges []MatchEdge) {
	sort.Slice(edges, func(i, j int) bool {
		return edgeLess(edges[i], edges[j])
	})
}

func edgeLess(a, b MatchEdge) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.UserA != b.UserA {
		return a.UserA < b.UserA
	}
	return a.UserB < b.UserB
}

// MatchSource - каким проходом найдена пара.
type MatchSource string

const (
	// MatchSourcePrimary - паросочетание максимального веса (blossom).
	MatchSourcePrimary MatchSource = "primary"

	// MatchSourceFallback - жадный добор по квоте.
	MatchSourceFallback MatchSource = "fallback"
)

// Match - итоговая пара батча. Для потребителей батч append-only:
// при перезапуске батч очищается и заполняется заново целиком.
type Match struct {
	ID        string
	BatchID   shared.BatchID
	UserA     UserID
	UserB     UserID
	Score     float64
	Source    MatchSource
	CreatedAt time.Time
}

// Quality возвращает качество пары.
func (m Match) Quality() MatchQuality {
	return MatchScore(m.Score).Quality()
}

// Partner возвращает второго участника пары для id.
func (m Match) Partner(id UserID) (UserID, bool) {
	switch id {
	case m.UserA:
		return m.UserB, true
	case m.UserB:
		return m.UserA, true
	default:
		return "", false
	}
}

// PreferredPair - пара, назначенная заранее (минуя подсчёт).
type PreferredPair struct {
	UserA UserID
	UserB UserID
}

// Key возвращает канонический ключ пары.
func (p PreferredPair) Key() PairKey {
	return NewPairKey(p.UserA, p.UserB)
}

// PairKey - канонический ключ неупорядоченной пары.
type PairKey struct {
	A UserID
	B UserID
}

// NewPairKey создаёт ключ с упорядоченными id.
func NewPairKey(a, b UserID) PairKey {
	a, b = shared.OrderedPair(a, b)
	return PairKey{A: a, B: b}
}

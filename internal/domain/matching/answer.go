package matching

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER (tagged union)
//
// Каждый тип вопроса имеет свой вариант ответа. Интерфейс закрыт маркером
// isAnswer(), поэтому новые варианты можно добавить только в этом пакете,
// а все потребители обязаны разбирать ответ через type switch.
// ══════════════════════════════════════════════════════════════════════════════

// Answer - нормализованный ответ пользователя на один вопрос.
type Answer interface {
	isAnswer()
}

// CategoricalAnswer - ответ на single_select.
type CategoricalAnswer struct {
	Value string
}

// MultiSelectAnswer - ответ на multi_select.
type MultiSelectAnswer struct {
	Values StringSet
}

// LikertAnswer - ответ на шкале Лайкерта.
type LikertAnswer struct {
	Value int
}

// CompoundAnswer - составной ответ (вещества + частота).
type CompoundAnswer struct {
	Substances StringSet
	Frequency  string
}

// AgeAnswer - собственный возраст отвечающего.
type AgeAnswer struct {
	Age int
}

// LoveLanguagesAnswer - какие языки любви человек проявляет и какие хочет получать.
type LoveLanguagesAnswer struct {
	Shown    StringSet
	Received StringSet
}

func (CategoricalAnswer) isAnswer()   {}
func (MultiSelectAnswer) isAnswer()   {}
func (LikertAnswer) isAnswer()        {}
func (CompoundAnswer) isAnswer()      {}
func (AgeAnswer) isAnswer()           {}
func (LoveLanguagesAnswer) isAnswer() {}

// ══════════════════════════════════════════════════════════════════════════════
// STRING SET
// ══════════════════════════════════════════════════════════════════════════════

// StringSet - множество меток. Хранится отсортированным и без дублей,
// чтобы сравнение и сериализация были детерминированными.
type StringSet []string

// NewStringSet создаёт множество из произвольного списка.
func NewStringSet(values ...string) StringSet {
	if len(values) == 0 {
		return StringSet{}
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Contains проверяет наличие метки.
func (s StringSet) Contains(v string) bool {
	i := sort.SearchStrings(s, v)
	return i < len(s) && s[i] == v
}

// Len возвращает размер множества.
func (s StringSet) Len() int {
	return len(s)
}

// IntersectionSize возвращает |s ∩ other|.
func (s StringSet) IntersectionSize(other StringSet) int {
	n := 0
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			n++
			i++
			j++
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// UnionSize возвращает |s ∪ other|.
func (s StringSet) UnionSize(other StringSet) int {
	return len(s) + len(other) - s.IntersectionSize(other)
}

// Jaccard возвращает |s ∩ other| / |s ∪ other|.
// Пустое объединение - нейтральные 0.5.
func (s StringSet) Jaccard(other StringSet) float64 {
	union := s.UnionSize(other)
	if union == 0 {
		return NeutralScore
	}
	return float64(s.IntersectionSize(other)) / float64(union)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANGE
// ══════════════════════════════════════════════════════════════════════════════

// Range - замкнутый целочисленный интервал [Min, Max].
type Range struct {
	Min int
	Max int
}

// IsValid проверяет, что интервал не пуст.
func (r Range) IsValid() bool {
	return r.Min <= r.Max
}

// Contains проверяет попадание с включёнными границами.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Distance возвращает расстояние от v до интервала (0, если внутри).
func (r Range) Distance(v int) int {
	switch {
	case v < r.Min:
		return r.Min - v
	case v > r.Max:
		return v - r.Max
	default:
		return 0
	}
}

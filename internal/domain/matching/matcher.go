package matching

import (
	"sort"

	"github.com/campus-cupid/matchmaker/internal/domain/shared"
	"github.com/campus-cupid/matchmaker/pkg/blossom"
)

// maxWeightMatching - решатель основного прохода; подменяется в тестах.
var maxWeightMatching = blossom.MaxWeightMatching

// ══════════════════════════════════════════════════════════════════════════════
// GRAPH MATCHER
//
// Основной проход: паросочетание максимального веса (Edmonds blossom),
// каждый пользователь не более чем в одной паре.
// Добор: пользователи с числом пар меньше квоты получают лучшие оставшиеся
// рёбра, если у второй стороны тоже есть место.
// ══════════════════════════════════════════════════════════════════════════════

// MatchSet - результат матчера.
type MatchSet struct {
	Primary  []MatchEdge
	Fallback []MatchEdge
}

// All возвращает все пары: сначала основной проход, затем добор.
func (m MatchSet) All() []MatchEdge {
	out := make([]MatchEdge, 0, len(m.Primary)+len(m.Fallback))
	out = append(out, m.Primary...)
	return append(out, m.Fallback...)
}

// Len возвращает общее число пар.
func (m MatchSet) Len() int {
	return len(m.Primary) + len(m.Fallback)
}

// Matcher строит пары по графу совместимости.
type Matcher struct {
	quota    int
	fallback bool
}

// NewMatcher создаёт матчер из политики.
func NewMatcher(policy Policy) *Matcher {
	quota := policy.Quota
	if quota < 1 {
		quota = 1
	}
	return &Matcher{quota: quota, fallback: policy.FallbackEnabled}
}

// Match находит пары. Рёбра с неизвестными вершинами, петли и дубли игнорируются.
// Пустой граф - валидный результат без пар. Ошибка решателя возвращается как есть,
// частичный результат не строится.
func (m *Matcher) Match(vertices []UserID, edges []MatchEdge) (MatchSet, error) {
	ids := uniqueSorted(vertices)
	index := make(map[UserID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	clean := canonicalEdges(edges, index)
	if len(clean) == 0 {
		return MatchSet{Primary: []MatchEdge{}, Fallback: []MatchEdge{}}, nil
	}

	bedges := make([]blossom.Edge, len(clean))
	for i, e := range clean {
		bedges[i] = blossom.Edge{U: index[e.UserA], V: index[e.UserB], Weight: e.Weight}
	}
	mate, err := maxWeightMatching(len(ids), bedges)
	if err != nil {
		return MatchSet{}, shared.WrapError("matching", "Match", shared.ErrInvalidInput, "primary pass failed", err)
	}

	primary := make([]MatchEdge, 0, len(ids)/2)
	taken := make(map[PairKey]bool)
	count := make(map[UserID]int, len(ids))
	for _, e := range clean {
		u, v := index[e.UserA], index[e.UserB]
		if mate[u] != v {
			continue
		}
		primary = append(primary, e)
		taken[NewPairKey(e.UserA, e.UserB)] = true
		count[e.UserA]++
		count[e.UserB]++
	}
	SortEdges(primary)

	set := MatchSet{Primary: primary, Fallback: []MatchEdge{}}
	if m.fallback {
		set.Fallback = m.fill(ids, clean, taken, count)
	}
	return set, nil
}

// fill - жадный добор по раундам: в каждом раунде каждый недобравший
// пользователь (сначала с меньшим числом пар, затем по id) берёт одно
// лучшее доступное ребро.
func (m *Matcher) fill(ids []UserID, edges []MatchEdge, taken map[PairKey]bool, count map[UserID]int) []MatchEdge {
	adjacent := make(map[UserID][]MatchEdge, len(ids))
	for _, e := range edges {
		adjacent[e.UserA] = append(adjacent[e.UserA], e)
		adjacent[e.UserB] = append(adjacent[e.UserB], e)
	}

	order := make([]UserID, len(ids))
	copy(order, ids)
	sort.SliceStable(order, func(i, j int) bool {
		if count[order[i]] != count[order[j]] {
			return count[order[i]] < count[order[j]]
		}
		return order[i] < order[j]
	})

	var added []MatchEdge
	for {
		progress := false
		for _, u := range order {
			if count[u] >= m.quota {
				continue
			}
			for _, e := range adjacent[u] {
				key := NewPairKey(e.UserA, e.UserB)
				if taken[key] {
					continue
				}
				other := e.UserA
				if other == u {
					other = e.UserB
				}
				if count[other] >= m.quota {
					continue
				}
				taken[key] = true
				count[u]++
				count[other]++
				added = append(added, e)
				progress = true
				break
			}
		}
		if !progress {
			break
		}
	}

	if added == nil {
		return []MatchEdge{}
	}
	return added
}

func uniqueSorted(ids []UserID) []UserID {
	out := make([]UserID, 0, len(ids))
	seen := make(map[UserID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// canonicalEdges упорядочивает концы рёбер, отбрасывает мусор, оставляет
// для каждой пары самое тяжёлое ребро и сортирует результат.
func canonicalEdges(edges []MatchEdge, index map[UserID]int) []MatchEdge {
	best := make(map[PairKey]MatchEdge, len(edges))
	for _, e := range edges {
		if e.UserA == e.UserB {
			continue
		}
		if _, ok := index[e.UserA]; !ok {
			continue
		}
		if _, ok := index[e.UserB]; !ok {
			continue
		}
		key := NewPairKey(e.UserA, e.UserB)
		ce := MatchEdge{UserA: key.A, UserB: key.B, Weight: e.Weight}
		if prev, ok := best[key]; !ok || ce.Weight > prev.Weight {
			best[key] = ce
		}
	}

	out := make([]MatchEdge, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	SortEdges(out)
	return out
}

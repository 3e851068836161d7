package matching

import (
	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAIRWISE AGGREGATOR
//
// Направленная оценка A→B:
//   для каждой секции s:  S_s = Σ m_q·score_q / Σ m_q   (m_q - множитель важности)
//   итог = 100 · Σ W_s·S_s / Σ W_s  по секциям, где есть хотя бы один взвешенный вопрос.
// Направление без единого взвешенного вопроса получает нейтральные 50.
// ══════════════════════════════════════════════════════════════════════════════

// NeutralDirectionalScore - оценка направления, которому не на чем основываться.
const NeutralDirectionalScore = 50.0

// DirectionalScore - итог одного направления.
type DirectionalScore struct {
	Score               float64
	HardFiltered        bool
	DealbreakerQuestion string
	Scored              int
	Contributions       []Contribution
}

// Aggregator сводит оценки вопросов в оценку пары.
type Aggregator struct {
	catalog   *questionnaire.Catalog
	questions []questionnaire.Question
	scorer    *Scorer
	policy    Policy
}

// NewAggregator создаёт агрегатор.
func NewAggregator(catalog *questionnaire.Catalog, policy Policy) *Aggregator {
	return &Aggregator{
		catalog:   catalog,
		questions: catalog.Questions(),
		scorer:    NewScorer(policy),
		policy:    policy,
	}
}

type sectionAcc struct {
	num float64
	den float64
}

// Directional считает оценку a→b в [0,100].
func (g *Aggregator) Directional(a, b User) DirectionalScore {
	return g.directional(a, b, DirectionAToB)
}

func (g *Aggregator) directional(a, b User, dir Direction) DirectionalScore {
	var out DirectionalScore
	acc := make(map[string]*sectionAcc)
	order := make([]string, 0)

	for _, q := range g.questions {
		resp, ok := a.Response(q.ID)
		if !ok {
			continue
		}

		res := g.scorer.Score(q, resp, answerOf(b, q))
		if !res.Valid {
			continue
		}
		if res.DealbreakerFailed {
			out.HardFiltered = true
			out.DealbreakerQuestion = q.ID
			out.Score = RejectedScore
			return out
		}
		if res.Weight <= 0 {
			continue
		}

		sa, ok := acc[q.SectionID]
		if !ok {
			sa = &sectionAcc{}
			acc[q.SectionID] = sa
			order = append(order, q.SectionID)
		}
		sa.num += res.Weight * res.Score
		sa.den += res.Weight
		out.Scored++
		out.Contributions = append(out.Contributions, Contribution{
			QuestionID:    q.ID,
			SectionID:     q.SectionID,
			Direction:     dir,
			Score:         res.Score,
			Weight:        res.Weight,
			SectionWeight: g.catalog.SectionWeight(q.SectionID),
		})
	}

	total, weights := 0.0, 0.0
	for _, id := range order {
		w := g.catalog.SectionWeight(id)
		if w <= 0 {
			continue
		}
		sa := acc[id]
		total += w * (sa.num / sa.den)
		weights += w
	}

	if weights <= 0 {
		out.Score = NeutralDirectionalScore
		return out
	}
	out.Score = clampScore(100 * total / weights)
	return out
}

// answerOf возвращает ответ b на вопрос. Для age_range без ответа
// используется возраст из профиля.
func answerOf(b User, q questionnaire.Question) Answer {
	if resp, ok := b.Response(q.ID); ok && resp.Answer != nil {
		return resp.Answer
	}
	if q.Type == questionnaire.TypeAgeRange && b.Age > 0 {
		return AgeAnswer{Age: b.Age}
	}
	return nil
}

// Pair считает симметричную оценку пары. Порядок аргументов не важен:
// пользователи упорядочиваются по id, поэтому Pair(a,b) == Pair(b,a).
func (g *Aggregator) Pair(a, b User) PairScore {
	if b.ID < a.ID {
		a, b = b, a
	}

	ab := g.directional(a, b, DirectionAToB)
	ba := g.directional(b, a, DirectionBToA)

	ps := PairScore{
		UserA: a.ID,
		UserB: b.ID,
		AToB:  ab.Score,
		BToA:  ba.Score,
	}

	if ab.HardFiltered || ba.HardFiltered {
		ps.HardFiltered = true
		ps.DealbreakerQuestion = ab.DealbreakerQuestion
		if ps.DealbreakerQuestion == "" {
			ps.DealbreakerQuestion = ba.DealbreakerQuestion
		}
		ps.TotalScore = RejectedScore
		ps.BidirectionalScore = RejectedScore
		return ps
	}

	ps.TotalScore = clampScore(CombinerMean.Combine(ab.Score, ba.Score))
	ps.BidirectionalScore = clampScore(g.policy.Combiner.Combine(ab.Score, ba.Score))
	ps.Contributions = make([]Contribution, 0, len(ab.Contributions)+len(ba.Contributions))
	ps.Contributions = append(ps.Contributions, ab.Contributions...)
	ps.Contributions = append(ps.Contributions, ba.Contributions...)
	return ps
}

// Passes проверяет, проходит ли пара в граф: не снята и не ниже порога.
func (g *Aggregator) Passes(ps PairScore) bool {
	return !ps.HardFiltered && ps.BidirectionalScore >= g.policy.MinScore
}

// Edge переводит оценку пары в ребро графа.
func (g *Aggregator) Edge(ps PairScore) MatchEdge {
	return MatchEdge{UserA: ps.UserA, UserB: ps.UserB, Weight: g.policy.EdgeWeight(ps.BidirectionalScore)}
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

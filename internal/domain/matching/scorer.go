package matching

import (
	"math"
	"strconv"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTIONAL SCORER
// Насколько ответ B удовлетворяет предпочтению A по одному вопросу.
// Результат всегда в [0,1]; деления на ноль заменены явными значениями.
// ══════════════════════════════════════════════════════════════════════════════

// DirectionalResult - оценка одного вопроса в одном направлении.
type DirectionalResult struct {
	// Score - удовлетворённость в [0,1].
	Score float64

	// Weight - множитель важности (0 - вопрос не взвешивается).
	Weight float64

	// Valid - false, если ответ не удалось оценить (нет ответа, чужой вариант).
	Valid bool

	// Neutral - предпочтение "не важно".
	Neutral bool

	// DealbreakerFailed - dealbreaker-вопрос не пройден: пара снимается.
	DealbreakerFailed bool
}

// Scorer считает направленные оценки.
type Scorer struct {
	policy Policy
}

// NewScorer создаёт scorer с заданной политикой.
func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// Score оценивает ответ other с точки зрения asker.
func (s *Scorer) Score(q questionnaire.Question, asker Response, other Answer) DirectionalResult {
	if asker.Preference.DoesntMatter {
		return DirectionalResult{Score: 1, Valid: true, Neutral: true}
	}
	if other == nil {
		return DirectionalResult{}
	}

	score, ok := s.raw(q, asker, other)
	if !ok || math.IsNaN(score) {
		return DirectionalResult{}
	}
	score = clamp01(score)

	return DirectionalResult{
		Score:             score,
		Weight:            s.policy.Multiplier(asker.EffectiveImportance()),
		Valid:             true,
		DealbreakerFailed: asker.IsDealbreaker() && score < s.policy.DealbreakerEpsilon,
	}
}

func (s *Scorer) raw(q questionnaire.Question, asker Response, other Answer) (float64, bool) {
	pref := asker.Preference

	switch o := other.(type) {
	case CategoricalAnswer:
		own, _ := asker.Answer.(CategoricalAnswer)
		return scoreCategorical(q, pref, own.Value, o.Value)

	case MultiSelectAnswer:
		own, _ := asker.Answer.(MultiSelectAnswer)
		return scoreMultiSelect(pref, own.Values, o.Values)

	case LikertAnswer:
		own, ok := asker.Answer.(LikertAnswer)
		if !ok {
			return 0, false
		}
		lo, hi := q.Scale()
		return scoreOrdinal(pref, own.Value, o.Value, lo, hi, strconv.Itoa(o.Value))

	case CompoundAnswer:
		own, _ := asker.Answer.(CompoundAnswer)
		return s.scoreCompound(q, pref, own, o)

	case AgeAnswer:
		return s.scoreAge(pref, asker.IsDealbreaker(), o.Age)

	case LoveLanguagesAnswer:
		own, ok := asker.Answer.(LoveLanguagesAnswer)
		if !ok {
			return 0, false
		}
		return scoreLoveLanguages(own, o), true

	default:
		return 0, false
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Categorical
// ──────────────────────────────────────────────────────────────────────────────

func scoreCategorical(q questionnaire.Question, pref Preference, own, other string) (float64, bool) {
	if pref.Kind == questionnaire.PreferenceSpecificValues {
		return boolScore(pref.Values.Contains(other)), true
	}
	if own == "" {
		return 0, false
	}

	ordered := q.Ordered && q.OptionIndex(own) >= 0 && q.OptionIndex(other) >= 0

	switch pref.Kind {
	case questionnaire.PreferenceSame:
		return boolScore(own == other), true

	case questionnaire.PreferenceSimilar:
		if ordered {
			return closeness(q.OptionIndex(own), q.OptionIndex(other), len(q.Options)-1), true
		}
		return boolScore(own == other), true

	case questionnaire.PreferenceDifferent:
		if ordered {
			return 1 - closeness(q.OptionIndex(own), q.OptionIndex(other), len(q.Options)-1), true
		}
		return boolScore(own != other), true

	case questionnaire.PreferenceCompatible:
		if ok, defined := q.CompatibleWith(own, other); defined {
			return boolScore(ok), true
		}
		return boolScore(own == other), true

	case questionnaire.PreferenceMore, questionnaire.PreferenceLess:
		if !ordered {
			return 0, false
		}
		return directional(pref.Kind, q.OptionIndex(own), q.OptionIndex(other), 0, len(q.Options)-1), true

	default:
		return 0, false
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Multi-select
// ──────────────────────────────────────────────────────────────────────────────

func scoreMultiSelect(pref Preference, own, other StringSet) (float64, bool) {
	target := own
	if len(pref.Values) > 0 {
		target = pref.Values
	}

	switch pref.Kind {
	case questionnaire.PreferenceSame, questionnaire.PreferenceSimilar:
		return target.Jaccard(other), true

	case questionnaire.PreferenceDifferent:
		if target.UnionSize(other) == 0 {
			return NeutralScore, true
		}
		return 1 - target.Jaccard(other), true

	case questionnaire.PreferenceSpecificValues:
		return boolScore(pref.Values.IntersectionSize(other) > 0), true

	default:
		return 0, false
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Ordinal (Likert and ordered categories)
// ──────────────────────────────────────────────────────────────────────────────

func scoreOrdinal(pref Preference, own, other, lo, hi int, otherLabel string) (float64, bool) {
	span := hi - lo

	switch pref.Kind {
	case questionnaire.PreferenceSame, questionnaire.PreferenceSimilar, questionnaire.PreferenceCompatible:
		return closeness(own, other, span), true

	case questionnaire.PreferenceDifferent:
		return 1 - closeness(own, other, span), true

	case questionnaire.PreferenceMore, questionnaire.PreferenceLess:
		return directional(pref.Kind, own, other, lo, hi), true

	case questionnaire.PreferenceSpecificValues:
		return boolScore(pref.Values.Contains(otherLabel)), true

	default:
		return 0, false
	}
}

// closeness = 1 - |a-b| / span. Нулевой span - полное совпадение.
func closeness(a, b, span int) float64 {
	if span <= 0 {
		return 1
	}
	return 1 - math.Abs(float64(a-b))/float64(span)
}

// directional оценивает more/less относительно собственного ответа:
// строго лучше - 1; равно - 0.5 (или 1 на краю шкалы, где строго лучше невозможно);
// хуже на k - 0.5·(1 - k/span).
func directional(kind questionnaire.PreferenceKind, own, other, lo, hi int) float64 {
	span := hi - lo
	if span <= 0 {
		return 1
	}

	gain := other - own
	edge := own == hi
	if kind == questionnaire.PreferenceLess {
		gain = own - other
		edge = own == lo
	}

	switch {
	case gain > 0:
		return 1
	case gain == 0:
		if edge {
			return 1
		}
		return NeutralScore
	default:
		return NeutralScore * (1 - float64(-gain)/float64(span))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Compound
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scorer) scoreCompound(q questionnaire.Question, pref Preference, own, other CompoundAnswer) (float64, bool) {
	var substance float64
	switch pref.Kind {
	case questionnaire.PreferenceSame, questionnaire.PreferenceSimilar:
		substance = own.Substances.Jaccard(other.Substances)
	case questionnaire.PreferenceDifferent:
		if own.Substances.UnionSize(other.Substances) == 0 {
			substance = NeutralScore
		} else {
			substance = 1 - own.Substances.Jaccard(other.Substances)
		}
	case questionnaire.PreferenceSpecificValues:
		// Допустимые вещества: доля чужих веществ внутри допустимого набора.
		if other.Substances.Len() == 0 {
			substance = 1
		} else {
			substance = float64(pref.Values.IntersectionSize(other.Substances)) / float64(other.Substances.Len())
		}
	default:
		return 0, false
	}

	ownIdx, otherIdx := q.FrequencyIndex(own.Frequency), q.FrequencyIndex(other.Frequency)
	if ownIdx < 0 || otherIdx < 0 {
		return 0, false
	}
	frequency := closeness(ownIdx, otherIdx, len(q.Frequencies)-1)
	if pref.Kind == questionnaire.PreferenceDifferent {
		frequency = 1 - frequency
	}

	w := s.policy.CompoundSubstanceWeight
	return w*substance + (1-w)*frequency, true
}

// ──────────────────────────────────────────────────────────────────────────────
// Age
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scorer) scoreAge(pref Preference, dealbreaker bool, age int) (float64, bool) {
	if pref.AgeRange == nil || age <= 0 {
		return 0, false
	}
	r := *pref.AgeRange
	if r.Contains(age) {
		return 1, true
	}
	// Dealbreaker делает интервал строгим.
	if dealbreaker || !s.policy.AgePartialCredit || s.policy.AgeFalloffYears <= 0 {
		return 0, true
	}
	return math.Max(0, 1-float64(r.Distance(age))/s.policy.AgeFalloffYears), true
}

// ──────────────────────────────────────────────────────────────────────────────
// Love languages
// ──────────────────────────────────────────────────────────────────────────────

// scoreLoveLanguages: какая доля того, что A хочет получать, B проявляет.
func scoreLoveLanguages(asker, other LoveLanguagesAnswer) float64 {
	if asker.Received.Len() == 0 {
		return NeutralScore
	}
	return float64(asker.Received.IntersectionSize(other.Shown)) / float64(asker.Received.Len())
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

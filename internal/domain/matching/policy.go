package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// NeutralScore - нейтральная оценка для вырожденных случаев (пустые множества и т.п.).
const NeutralScore = 0.5

// ══════════════════════════════════════════════════════════════════════════════
// COMBINER
// ══════════════════════════════════════════════════════════════════════════════

// Combiner определяет, как две направленные оценки сводятся в одну симметричную.
type Combiner string

const (
	// CombinerMean - среднее арифметическое (энтузиазм одной стороны компенсирует другую).
	CombinerMean Combiner = "mean"

	// CombinerMin - минимум (пара не лучше менее заинтересованной стороны).
	CombinerMin Combiner = "min"

	// CombinerGeometric - среднее геометрическое.
	CombinerGeometric Combiner = "geometric"
)

// IsValid проверяет корректность комбинатора.
func (c Combiner) IsValid() bool {
	switch c {
	case CombinerMean, CombinerMin, CombinerGeometric:
		return true
	default:
		return false
	}
}

// Combine сводит оценки a и b (обе в [0,100]). Результат симметричен.
func (c Combiner) Combine(a, b float64) float64 {
	switch c {
	case CombinerMin:
		return math.Min(a, b)
	case CombinerGeometric:
		return math.Sqrt(a * b)
	default:
		return (a + b) / 2
	}
}

// ParseCombiner разбирает строку конфигурации.
func ParseCombiner(s string) (Combiner, error) {
	c := Combiner(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return CombinerMean, nil
	}
	if !c.IsValid() {
		return "", shared.NewDomainError("matching", "ParseCombiner", shared.ErrConfiguration,
			fmt.Sprintf("unknown combiner %q", s))
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy - все настраиваемые параметры подбора. Передаётся явно,
// глобального состояния нет: разные прогоны могут идти с разной политикой.
type Policy struct {
	// ImportanceMultipliers - множитель для важности 1..5 (индекс 0 = важность 1).
	ImportanceMultipliers [MaxImportance]float64

	// DealbreakerEpsilon - оценка ниже порога на dealbreaker-вопросе снимает пару.
	DealbreakerEpsilon float64

	// AgePartialCredit - давать частичный балл за промах по возрасту.
	AgePartialCredit bool

	// AgeFalloffYears - за сколько лет промаха балл падает до нуля.
	AgeFalloffYears float64

	// CompoundSubstanceWeight - доля "веществ" в составном вопросе (остальное - частота).
	CompoundSubstanceWeight float64

	// Combiner - способ свести две направленные оценки.
	Combiner Combiner

	// MinScore - пары ниже порога (0-100) не попадают в граф.
	MinScore float64

	// Quota - сколько пар максимум у одного пользователя после добора.
	Quota int

	// WeightScale - масштаб перевода оценки в целый вес ребра.
	WeightScale int64

	// FallbackEnabled - выполнять ли жадный добор после основного прохода.
	FallbackEnabled bool
}

// DefaultPolicy возвращает политику по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		ImportanceMultipliers:   [MaxImportance]float64{0.5, 0.75, 1.0, 1.5, 2.0},
		DealbreakerEpsilon:      1e-9,
		AgePartialCredit:        true,
		AgeFalloffYears:         3,
		CompoundSubstanceWeight: 0.5,
		Combiner:                CombinerMean,
		MinScore:                5,
		Quota:                   3,
		WeightScale:             1000,
		FallbackEnabled:         true,
	}
}

// Multiplier возвращает множитель важности. Вне диапазона - 0.
func (p Policy) Multiplier(importance int) float64 {
	if importance < MinImportance || importance > MaxImportance {
		return 0
	}
	return p.ImportanceMultipliers[importance-1]
}

// EdgeWeight переводит оценку 0-100 в целочисленный вес ребра.
func (p Policy) EdgeWeight(score float64) int64 {
	return int64(math.Round(score * float64(p.WeightScale)))
}

// ScoreFromWeight переводит вес ребра обратно в оценку.
func (p Policy) ScoreFromWeight(w int64) float64 {
	if p.WeightScale == 0 {
		return 0
	}
	return float64(w) / float64(p.WeightScale)
}

// Validate проверяет инварианты политики. Нарушение - ошибка конфигурации.
func (p Policy) Validate() error {
	var problems []string

	prev := 0.0
	for i, m := range p.ImportanceMultipliers {
		if !(m > prev) || math.IsInf(m, 0) {
			problems = append(problems, fmt.Sprintf("importance multiplier %d (%v) must be positive and above %v", i+1, m, prev))
			break
		}
		prev = m
	}
	if p.DealbreakerEpsilon < 0 || p.DealbreakerEpsilon > 1 {
		problems = append(problems, "dealbreaker epsilon must be in [0,1]")
	}
	if p.AgeFalloffYears < 0 {
		problems = append(problems, "age falloff must not be negative")
	}
	if p.CompoundSubstanceWeight < 0 || p.CompoundSubstanceWeight > 1 {
		problems = append(problems, "compound substance weight must be in [0,1]")
	}
	if !p.Combiner.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown combiner %q", p.Combiner))
	}
	if p.MinScore < 0 || p.MinScore > 100 || math.IsNaN(p.MinScore) {
		problems = append(problems, "min score must be in [0,100]")
	}
	if p.Quota < 1 {
		problems = append(problems, "quota must be at least 1")
	}
	if p.WeightScale < 1 {
		problems = append(problems, "weight scale must be at least 1")
	}

	if len(problems) > 0 {
		return shared.NewDomainError("matching", "ValidatePolicy", shared.ErrConfiguration,
			strings.Join(problems, "; "))
	}
	return nil
}

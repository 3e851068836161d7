package questionnaire

import (
	"fmt"
	"math"

	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// SectionWeightTolerance - допустимое отклонение суммы весов секций от 1.0.
const SectionWeightTolerance = 1e-6

// Section - группа вопросов со своим весом в итоговой оценке.
type Section struct {
	ID     string
	Title  string
	Weight float64
}

// Catalog - неизменяемый каталог анкеты.
// Порядок вопросов фиксирован и определяет порядок обхода при подсчёте.
type Catalog struct {
	sections   []Section
	questions  []Question
	byID       map[string]int
	sectionIdx map[string]int
}

// NewCatalog создаёт каталог и сразу проверяет его инварианты.
// Ошибка имеет вид shared.ErrConfiguration: каталог с нарушенными весами
// испортит каждую посчитанную оценку.
func NewCatalog(sections []Section, questions []Question) (*Catalog, error) {
	c := &Catalog{
		sections:   append([]Section(nil), sections...),
		questions:  make([]Question, len(questions)),
		byID:       make(map[string]int, len(questions)),
		sectionIdx: make(map[string]int, len(sections)),
	}
	copy(c.questions, questions)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет инварианты каталога и заполняет индексы.
func (c *Catalog) Validate() error {
	const op = "Validate"

	if len(c.sections) == 0 {
		return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration, "catalog has no sections")
	}

	c.sectionIdx = make(map[string]int, len(c.sections))
	sum := 0.0
	for i, s := range c.sections {
		if s.ID == "" {
			return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration, "section id cannot be empty")
		}
		if _, dup := c.sectionIdx[s.ID]; dup {
			return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration,
				fmt.Sprintf("duplicate section id %q", s.ID))
		}
		if s.Weight < 0 || math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
			return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration,
				fmt.Sprintf("section %q has invalid weight %v", s.ID, s.Weight))
		}
		c.sectionIdx[s.ID] = i
		sum += s.Weight
	}
	if math.Abs(sum-1.0) > SectionWeightTolerance {
		return shared.WrapError("questionnaire", op, shared.ErrConfiguration,
			fmt.Sprintf("section weights sum to %.6f", sum), shared.ErrSectionWeightsSum)
	}

	c.byID = make(map[string]int, len(c.questions))
	for i := range c.questions {
		q := &c.questions[i]
		if err := validateQuestion(*q, c.sectionIdx); err != nil {
			return err
		}
		if _, dup := c.byID[q.ID]; dup {
			return shared.WrapError("questionnaire", op, shared.ErrConfiguration, q.ID, shared.ErrDuplicateQuestionID)
		}
		if q.Type == TypeLikert && q.ScaleMin == 0 && q.ScaleMax == 0 {
			q.ScaleMin, q.ScaleMax = DefaultScaleMin, DefaultScaleMax
		}
		c.byID[q.ID] = i
	}

	return nil
}

func validateQuestion(q Question, sections map[string]int) error {
	const op = "Validate"
	fail := func(msg string) error {
		return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration,
			fmt.Sprintf("question %q: %s", q.ID, msg))
	}

	if q.ID == "" {
		return shared.NewDomainError("questionnaire", op, shared.ErrConfiguration, "question id cannot be empty")
	}
	if !q.Type.IsValid() {
		return shared.WrapError("questionnaire", op, shared.ErrConfiguration,
			fmt.Sprintf("question %q has type %q", q.ID, q.Type), shared.ErrUnknownQuestionType)
	}
	if _, ok := sections[q.SectionID]; !ok {
		return fail(fmt.Sprintf("unknown section %q", q.SectionID))
	}
	if q.DefaultPreference != "" && !q.Allows(q.DefaultPreference) {
		return fail(fmt.Sprintf("default preference %q not allowed for %s", q.DefaultPreference, q.Type))
	}

	switch q.Type {
	case TypeSingleSelect:
		if q.Ordered && len(q.Options) == 0 {
			return fail("ordered question needs options")
		}
	case TypeLikert:
		lo, hi := q.Scale()
		if hi <= lo {
			return fail(fmt.Sprintf("likert scale %d..%d is empty", lo, hi))
		}
	case TypeCompound:
		if len(q.Frequencies) == 0 {
			return fail("compound question needs frequency levels")
		}
	case TypeMultiSelect, TypeAgeRange, TypeLoveLanguages:
	}

	return nil
}

// Question возвращает вопрос по id.
func (c *Catalog) Question(id string) (Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// Questions возвращает вопросы в порядке объявления.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Sections возвращает секции в порядке объявления.
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

// SectionWeight возвращает вес секции (0 для неизвестной).
func (c *Catalog) SectionWeight(id string) float64 {
	i, ok := c.sectionIdx[id]
	if !ok {
		return 0
	}
	return c.sections[i].Weight
}

// Len возвращает количество вопросов.
func (c *Catalog) Len() int {
	return len(c.questions)
}

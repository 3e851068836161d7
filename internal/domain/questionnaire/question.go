// Package questionnaire описывает анкету совместимости: секции, вопросы,
// их типы и допустимые виды предпочтений. Пакет не зависит от внешних
// библиотек и не знает, откуда загружен каталог (YAML, БД, тесты).
package questionnaire

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION TYPES
// ══════════════════════════════════════════════════════════════════════════════

// QuestionType определяет форму ответа на вопрос.
type QuestionType string

const (
	// TypeSingleSelect - один вариант из списка.
	TypeSingleSelect QuestionType = "single_select"

	// TypeMultiSelect - несколько вариантов из списка.
	TypeMultiSelect QuestionType = "multi_select"

	// TypeLikert - целое число на шкале (по умолчанию 1-5).
	TypeLikert QuestionType = "likert"

	// TypeCompound - составной ответ: набор веществ + частота употребления.
	TypeCompound QuestionType = "compound"

	// TypeAgeRange - собственный возраст + желаемый диапазон возраста партнёра.
	TypeAgeRange QuestionType = "age_range"

	// TypeLoveLanguages - языки любви: что человек проявляет и что хочет получать.
	TypeLoveLanguages QuestionType = "love_languages"
)

// IsValid проверяет корректность типа вопроса.
func (t QuestionType) IsValid() bool {
	switch t {
	case TypeSingleSelect, TypeMultiSelect, TypeLikert, TypeCompound, TypeAgeRange, TypeLoveLanguages:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCE KINDS
// ══════════════════════════════════════════════════════════════════════════════

// PreferenceKind определяет, как пользователь сравнивает чужой ответ со своим.
type PreferenceKind string

const (
	PreferenceSame           PreferenceKind = "same"
	PreferenceSimilar        PreferenceKind = "similar"
	PreferenceDifferent      PreferenceKind = "different"
	PreferenceMore           PreferenceKind = "more"
	PreferenceLess           PreferenceKind = "less"
	PreferenceCompatible     PreferenceKind = "compatible"
	PreferenceSpecificValues PreferenceKind = "specific_values"
)

// IsValid проверяет корректность вида предпочтения.
func (k PreferenceKind) IsValid() bool {
	switch k {
	case PreferenceSame, PreferenceSimilar, PreferenceDifferent, PreferenceMore,
		PreferenceLess, PreferenceCompatible, PreferenceSpecificValues:
		return true
	default:
		return false
	}
}

// allowedKinds - какие виды предпочтений имеют смысл для каждого типа вопроса.
// Для age_range и love_languages вид не используется: сравнение зашито в тип.
var allowedKinds = map[QuestionType][]PreferenceKind{
	TypeSingleSelect: {PreferenceSame, PreferenceSimilar, PreferenceDifferent, PreferenceCompatible, PreferenceSpecificValues},
	TypeMultiSelect:  {PreferenceSame, PreferenceSimilar, PreferenceDifferent, PreferenceSpecificValues},
	TypeLikert:       {PreferenceSame, PreferenceSimilar, PreferenceDifferent, PreferenceMore, PreferenceLess, PreferenceCompatible, PreferenceSpecificValues},
	TypeCompound:     {PreferenceSame, PreferenceSimilar, PreferenceDifferent, PreferenceSpecificValues},
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION
// ══════════════════════════════════════════════════════════════════════════════

// Default Likert scale bounds.
const (
	DefaultScaleMin = 1
	DefaultScaleMax = 5
)

// Question - один вопрос анкеты.
type Question struct {
	// ID - стабильный идентификатор вопроса (ключ в ответах пользователя).
	ID string

	// SectionID - секция, к которой относится вопрос.
	SectionID string

	// Type - форма ответа.
	Type QuestionType

	// Prompt - текст вопроса (для аудита и логов).
	Prompt string

	// Options - допустимые варианты для select-вопросов.
	// Пустой список означает "свободные метки".
	Options []string

	// Ordered - варианты упорядочены (например, "never" < "sometimes" < "often").
	// Для упорядоченных вариантов similar/more/less считаются по порядковому расстоянию.
	Ordered bool

	// ScaleMin, ScaleMax - границы шкалы Лайкерта.
	ScaleMin int
	ScaleMax int

	// Frequencies - упорядоченные уровни частоты для составного вопроса.
	Frequencies []string

	// Compatibility - таблица совместимости для предпочтения "compatible":
	// ответ -> набор совместимых с ним ответов.
	Compatibility map[string][]string

	// DefaultPreference - вид предпочтения, если пользователь его не указал.
	DefaultPreference PreferenceKind
}

// Allows проверяет, допустим ли вид предпочтения для вопроса.
func (q Question) Allows(kind PreferenceKind) bool {
	if kind == PreferenceMore || kind == PreferenceLess {
		if q.Type == TypeSingleSelect && q.Ordered {
			return true
		}
	}
	for _, k := range allowedKinds[q.Type] {
		if k == kind {
			return true
		}
	}
	return false
}

// UsesPreferenceKind сообщает, задаётся ли у вопроса вид предпочтения вообще.
func (q Question) UsesPreferenceKind() bool {
	_, ok := allowedKinds[q.Type]
	return ok
}

// EffectiveDefaultPreference возвращает вид предпочтения по умолчанию.
func (q Question) EffectiveDefaultPreference() PreferenceKind {
	if q.DefaultPreference != "" {
		return q.DefaultPreference
	}
	switch q.Type {
	case TypeSingleSelect:
		return PreferenceSame
	case TypeMultiSelect, TypeLikert, TypeCompound:
		return PreferenceSimilar
	default:
		return ""
	}
}

// Scale возвращает границы шкалы с учётом значений по умолчанию.
func (q Question) Scale() (lo, hi int) {
	lo, hi = q.ScaleMin, q.ScaleMax
	if lo == 0 && hi == 0 {
		return DefaultScaleMin, DefaultScaleMax
	}
	return lo, hi
}

// OptionIndex возвращает позицию варианта в списке или -1.
func (q Question) OptionIndex(value string) int {
	for i, opt := range q.Options {
		if opt == value {
			return i
		}
	}
	return -1
}

// HasOption проверяет, что вариант допустим.
// Для вопросов без списка вариантов допустима любая непустая метка.
func (q Question) HasOption(value string) bool {
	if value == "" {
		return false
	}
	if len(q.Options) == 0 {
		return true
	}
	return q.OptionIndex(value) >= 0
}

// FrequencyIndex возвращает позицию уровня частоты или -1.
func (q Question) FrequencyIndex(value string) int {
	for i, f := range q.Frequencies {
		if f == value {
			return i
		}
	}
	return -1
}

// CompatibleWith проверяет таблицу совместимости.
// Второе значение false, если для ответа таблица не задана.
func (q Question) CompatibleWith(own, other string) (compatible bool, defined bool) {
	partners, ok := q.Compatibility[own]
	if !ok {
		return false, false
	}
	for _, p := range partners {
		if p == other {
			return true, true
		}
	}
	return false, true
}

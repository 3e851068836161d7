package matching

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZER
// Приводит сырые ответы из хранилища к вариантам Answer/Preference.
// Чистая функция: ничего не пишет, ничего не логирует сама.
// ══════════════════════════════════════════════════════════════════════════════

// MaxAge - верхняя граница правдоподобного возраста.
const MaxAge = 120

// Normalizer приводит ответы к каноническому виду по каталогу анкеты.
type Normalizer struct {
	catalog *questionnaire.Catalog
}

// NewNormalizer создаёт нормализатор.
func NewNormalizer(catalog *questionnaire.Catalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Issue - проблема качества данных, найденная при нормализации.
// Такой ответ исключается из подсчёта, пользователь остаётся в пуле.
type Issue struct {
	UserID     UserID
	QuestionID string
	Err        error
}

// NormalizeUser нормализует профиль и все ответы пользователя.
func (n *Normalizer) NormalizeUser(raw RawUser) (User, []Issue) {
	user := User{
		Profile:   normalizeProfile(raw.Profile),
		Responses: make(map[string]Response, len(raw.Responses)),
	}

	var issues []Issue
	for _, rr := range raw.Responses {
		q, ok := n.catalog.Question(rr.QuestionID)
		if !ok {
			issues = append(issues, Issue{UserID: user.ID, QuestionID: rr.QuestionID, Err: shared.ErrQuestionNotFound})
			continue
		}
		if _, dup := user.Responses[q.ID]; dup {
			issues = append(issues, Issue{
				UserID: user.ID, QuestionID: q.ID,
				Err: shared.NewDomainError("matching", "Normalize", shared.ErrAlreadyExists, "duplicate response"),
			})
			continue
		}

		resp, err := n.Normalize(q, rr)
		if err != nil {
			issues = append(issues, Issue{UserID: user.ID, QuestionID: q.ID, Err: err})
			continue
		}
		if q.Type == questionnaire.TypeAgeRange && resp.Answer == nil && user.Age > 0 {
			resp.Answer = AgeAnswer{Age: user.Age}
		}
		user.Responses[q.ID] = resp
	}

	return user, issues
}

// Normalize приводит один сырой ответ к Response.
func (n *Normalizer) Normalize(q questionnaire.Question, raw RawResponse) (Response, error) {
	importance := raw.Importance
	if importance == 0 {
		importance = DefaultImportance
	}
	if importance < MinImportance || importance > MaxImportance {
		return Response{}, malformed(q, shared.ErrInvalidImportance, fmt.Sprintf("importance %d", raw.Importance))
	}

	answer, err := decodeAnswer(q, raw.Answer)
	if err != nil {
		return Response{}, err
	}

	pref, err := decodePreference(q, raw.Preference)
	if err != nil {
		return Response{}, err
	}

	return Response{
		QuestionID:  q.ID,
		Answer:      answer,
		Preference:  pref,
		Importance:  importance,
		Dealbreaker: raw.Dealbreaker,
	}, nil
}

func malformed(q questionnaire.Question, base *shared.DomainError, detail string) error {
	return shared.WrapError("matching", "Normalize", base.Kind,
		fmt.Sprintf("question %q (%s): %s", q.ID, q.Type, detail), base)
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Answers
// ──────────────────────────────────────────────────────────────────────────────

type compoundJSON struct {
	Substances []string `json:"substances"`
	Frequency  string   `json:"frequency"`
}

type loveLanguagesJSON struct {
	Shown    []string `json:"shown"`
	Received []string `json:"received"`
}

func decodeAnswer(q questionnaire.Question, data json.RawMessage) (Answer, error) {
	bad := func(detail string) error {
		return malformed(q, shared.ErrMalformedAnswer, detail)
	}

	if isNull(data) {
		// Возраст может прийти из профиля.
		if q.Type == questionnaire.TypeAgeRange {
			return nil, nil
		}
		return nil, bad("missing answer")
	}

	switch q.Type {
	case questionnaire.TypeSingleSelect:
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, bad("expected string")
		}
		v = strings.TrimSpace(v)
		if !q.HasOption(v) {
			return nil, bad(fmt.Sprintf("unknown option %q", v))
		}
		return CategoricalAnswer{Value: v}, nil

	case questionnaire.TypeMultiSelect:
		values, err := decodeLabels(q, data)
		if err != nil {
			return nil, bad(err.Error())
		}
		return MultiSelectAnswer{Values: values}, nil

	case questionnaire.TypeLikert:
		v, err := decodeInt(data)
		if err != nil {
			return nil, bad(err.Error())
		}
		lo, hi := q.Scale()
		if v < lo || v > hi {
			return nil, bad(fmt.Sprintf("value %d outside %d..%d", v, lo, hi))
		}
		return LikertAnswer{Value: v}, nil

	case questionnaire.TypeCompound:
		var c compoundJSON
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, bad("expected {substances, frequency}")
		}
		if q.FrequencyIndex(c.Frequency) < 0 {
			return nil, bad(fmt.Sprintf("unknown frequency %q", c.Frequency))
		}
		for _, s := range c.Substances {
			if !q.HasOption(s) {
				return nil, bad(fmt.Sprintf("unknown substance %q", s))
			}
		}
		return CompoundAnswer{Substances: NewStringSet(c.Substances...), Frequency: c.Frequency}, nil

	case questionnaire.TypeAgeRange:
		v, err := decodeInt(data)
		if err != nil {
			return nil, bad(err.Error())
		}
		if v <= 0 || v > MaxAge {
			return nil, bad(fmt.Sprintf("implausible age %d", v))
		}
		return AgeAnswer{Age: v}, nil

	case questionnaire.TypeLoveLanguages:
		var l loveLanguagesJSON
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, bad("expected {shown, received}")
		}
		for _, v := range append(append([]string(nil), l.Shown...), l.Received...) {
			if !q.HasOption(v) {
				return nil, bad(fmt.Sprintf("unknown love language %q", v))
			}
		}
		return LoveLanguagesAnswer{Shown: NewStringSet(l.Shown...), Received: NewStringSet(l.Received...)}, nil

	default:
		return nil, malformed(q, shared.ErrUnknownQuestionType, "cannot decode")
	}
}

func decodeLabels(q questionnaire.Question, data json.RawMessage) (StringSet, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("expected list of strings")
	}
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
		if !q.HasOption(values[i]) {
			return nil, fmt.Errorf("unknown option %q", v)
		}
	}
	return NewStringSet(values...), nil
}

func decodeInt(data json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Формы бывают строковыми: "4".
		var s string
		if json.Unmarshal(data, &s) != nil {
			return 0, fmt.Errorf("expected integer")
		}
		parsed, perr := strconv.Atoi(strings.TrimSpace(s))
		if perr != nil {
			return 0, fmt.Errorf("expected integer, got %q", s)
		}
		return parsed, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Preferences
// ──────────────────────────────────────────────────────────────────────────────

type preferenceJSON struct {
	Kind              string   `json:"kind"`
	Values            []string `json:"values"`
	Min               *int     `json:"min"`
	Max               *int     `json:"max"`
	DoesntMatter      bool     `json:"doesnt_matter"`
	DoesntMatterCamel bool     `json:"doesntMatter"`
}

const doesntMatterLabel = "doesnt_matter"

func decodePreference(q questionnaire.Question, data json.RawMessage) (Preference, error) {
	bad := func(detail string) error {
		return malformed(q, shared.ErrMalformedPreference, detail)
	}

	var p preferenceJSON
	switch {
	case isNull(data):
	default:
		trimmed := bytes.TrimSpace(data)
		switch trimmed[0] {
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return Preference{}, bad("invalid string")
			}
			if s == doesntMatterLabel {
				p.DoesntMatter = true
			} else {
				p.Kind = s
			}
		case '[':
			if err := json.Unmarshal(trimmed, &p.Values); err != nil {
				return Preference{}, bad("expected list of strings")
			}
			p.Kind = string(questionnaire.PreferenceSpecificValues)
		case '{':
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return Preference{}, bad("invalid object")
			}
		default:
			return Preference{}, bad("unsupported shape")
		}
	}

	if p.DoesntMatter || p.DoesntMatterCamel {
		return Preference{DoesntMatter: true}, nil
	}

	switch q.Type {
	case questionnaire.TypeAgeRange:
		if p.Min == nil && p.Max == nil {
			// Нет диапазона - сравнивать не с чем.
			return Preference{DoesntMatter: true}, nil
		}
		r := Range{Min: 0, Max: MaxAge}
		if p.Min != nil {
			r.Min = *p.Min
		}
		if p.Max != nil {
			r.Max = *p.Max
		}
		if !r.IsValid() {
			return Preference{}, bad(fmt.Sprintf("empty age range %d..%d", r.Min, r.Max))
		}
		return Preference{AgeRange: &r}, nil

	case questionnaire.TypeLoveLanguages:
		return Preference{}, nil
	}

	kind := questionnaire.PreferenceKind(strings.ToLower(strings.TrimSpace(p.Kind)))
	if kind == "" {
		kind = q.EffectiveDefaultPreference()
	}
	if !q.Allows(kind) {
		return Preference{}, bad(fmt.Sprintf("preference %q not allowed", kind))
	}

	values := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		v = strings.TrimSpace(v)
		if q.Type == questionnaire.TypeLikert {
			iv, err := strconv.Atoi(v)
			lo, hi := q.Scale()
			if err != nil || iv < lo || iv > hi {
				return Preference{}, bad(fmt.Sprintf("likert target %q outside scale", v))
			}
		} else if !q.HasOption(v) {
			return Preference{}, bad(fmt.Sprintf("unknown target %q", v))
		}
		values = append(values, v)
	}
	if kind == questionnaire.PreferenceSpecificValues && len(values) == 0 {
		return Preference{}, bad("specific_values needs at least one value")
	}

	return Preference{Kind: kind, Values: NewStringSet(values...)}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

var genderAliases = map[string]string{
	"woman":      "woman",
	"women":      "woman",
	"female":     "woman",
	"f":          "woman",
	"man":        "man",
	"men":        "man",
	"male":       "man",
	"m":          "man",
	"non_binary": "non_binary",
	"nonbinary":  "non_binary",
	"nb":         "non_binary",
	"enby":       "non_binary",
}

var openPreferenceLabels = map[string]bool{
	"everyone":      true,
	"anyone":        true,
	"any":           true,
	"all":           true,
	"doesnt_matter": true,
}

func canonicalLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

// NormalizeGender приводит метку пола к канонической форме.
func NormalizeGender(label string) string {
	c := canonicalLabel(label)
	if alias, ok := genderAliases[c]; ok {
		return alias
	}
	return c
}

// NormalizeGenderPreferences нормализует список допустимых полов.
// Пустой результат означает "открыт всем".
func NormalizeGenderPreferences(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		c := canonicalLabel(l)
		if c == "" {
			continue
		}
		if openPreferenceLabels[c] {
			return nil
		}
		out = append(out, NormalizeGender(c))
	}
	set := NewStringSet(out...)
	if len(set) == 0 {
		return nil
	}
	return set
}

func normalizeProfile(p Profile) Profile {
	out := p
	out.ID = UserID(strings.TrimSpace(string(p.ID)))
	out.Gender = NormalizeGender(p.Gender)
	out.GenderPreferences = NormalizeGenderPreferences(p.GenderPreferences)
	out.Campus = canonicalLabel(p.Campus)
	if p.AgeRange != nil {
		r := *p.AgeRange
		out.AgeRange = &r
	}
	return out
}

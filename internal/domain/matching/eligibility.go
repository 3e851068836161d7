package matching

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY FILTER
// Жёсткие фильтры до подсчёта: кто вообще попадает в пул
// и какие пары не стоит даже оценивать.
// ══════════════════════════════════════════════════════════════════════════════

// IneligibleReason - почему пользователь не попал в пул.
type IneligibleReason string

const (
	ReasonMissingID       IneligibleReason = "missing_id"
	ReasonDuplicateID     IneligibleReason = "duplicate_id"
	ReasonNotSubmitted    IneligibleReason = "questionnaire_not_submitted"
	ReasonNoValidAnswers  IneligibleReason = "no_valid_answers"
	ReasonMissingGender   IneligibleReason = "missing_gender"
	ReasonInvalidAgeRange IneligibleReason = "invalid_age_range"
)

// Ineligible - пользователь вне пула и причина.
type Ineligible struct {
	UserID UserID
	Reason IneligibleReason
}

// FilterReason - почему пара отброшена до подсчёта.
type FilterReason string

const (
	FilterNone   FilterReason = ""
	FilterSelf   FilterReason = "self"
	FilterGender FilterReason = "gender"
	FilterAge    FilterReason = "age"
	FilterCampus FilterReason = "campus"
)

// Verdict - результат проверки пары.
type Verdict struct {
	Eligible bool
	Reason   FilterReason
}

// EligibilityFilter применяет жёсткие фильтры.
type EligibilityFilter struct{}

// NewEligibilityFilter создаёт фильтр.
func NewEligibilityFilter() *EligibilityFilter {
	return &EligibilityFilter{}
}

// Pool делит пользователей на пул и отсеянных. Пул отсортирован по id.
func (f *EligibilityFilter) Pool(users []User) ([]User, []Ineligible) {
	eligible := make([]User, 0, len(users))
	var ineligible []Ineligible
	seen := make(map[UserID]bool, len(users))

	for _, u := range users {
		reason := f.userReason(u)
		if reason == "" && seen[u.ID] {
			reason = ReasonDuplicateID
		}
		if reason != "" {
			ineligible = append(ineligible, Ineligible{UserID: u.ID, Reason: reason})
			continue
		}
		seen[u.ID] = true
		eligible = append(eligible, u)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	sort.SliceStable(ineligible, func(i, j int) bool { return ineligible[i].UserID < ineligible[j].UserID })
	return eligible, ineligible
}

func (f *EligibilityFilter) userReason(u User) IneligibleReason {
	switch {
	case u.ID.IsEmpty():
		return ReasonMissingID
	case !u.IsSubmitted():
		return ReasonNotSubmitted
	case len(u.Responses) == 0:
		return ReasonNoValidAnswers
	case u.Gender == "":
		return ReasonMissingGender
	case u.AgeRange != nil && !u.AgeRange.IsValid():
		return ReasonInvalidAgeRange
	default:
		return ""
	}
}

// Check проверяет пару по порядку: сам с собой, пол в обе стороны,
// возраст (если задан жёсткий диапазон), кампус.
func (f *EligibilityFilter) Check(a, b User) Verdict {
	if a.ID == b.ID {
		return Verdict{Reason: FilterSelf}
	}
	if !acceptsGender(a, b) || !acceptsGender(b, a) {
		return Verdict{Reason: FilterGender}
	}
	if !acceptsAge(a, b) || !acceptsAge(b, a) {
		return Verdict{Reason: FilterAge}
	}
	if !campusCompatible(a, b) {
		return Verdict{Reason: FilterCampus}
	}
	return Verdict{Eligible: true}
}

// acceptsGender: пустой список предпочтений - открыт всем.
func acceptsGender(asker, other User) bool {
	prefs := NormalizeGenderPreferences(asker.GenderPreferences)
	if len(prefs) == 0 {
		return true
	}
	gender := NormalizeGender(other.Gender)
	if gender == "" {
		return false
	}
	for _, p := range prefs {
		if p == gender {
			return true
		}
	}
	return false
}

func acceptsAge(asker, other User) bool {
	if asker.AgeRange == nil {
		return true
	}
	if other.Age <= 0 {
		return false
	}
	return asker.AgeRange.Contains(other.Age)
}

func campusCompatible(a, b User) bool {
	if a.Campus == b.Campus {
		return true
	}
	return a.CrossCampus || b.CrossCampus
}

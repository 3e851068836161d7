package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

func TestScorer_DoesntMatterIsNeutral(t *testing.T) {
	c := testCatalog(t)
	s := NewScorer(DefaultPolicy())

	asker := likert("sleep", 1, questionnaire.PreferenceSimilar, 5)
	asker.Preference.DoesntMatter = true
	asker.Dealbreaker = true

	res := s.Score(question(t, c, "sleep"), asker, LikertAnswer{Value: 5})
	assert.True(t, res.Valid)
	assert.True(t, res.Neutral)
	assert.Equal(t, 1.0, res.Score)
	assert.Zero(t, res.Weight)
	assert.False(t, res.DealbreakerFailed)
}

func TestScorer_MissingOrMismatchedAnswerIsExcluded(t *testing.T) {
	c := testCatalog(t)
	s := NewScorer(DefaultPolicy())
	asker := likert("sleep", 3, questionnaire.PreferenceSimilar, 3)

	assert.False(t, s.Score(question(t, c, "sleep"), asker, nil).Valid)

	// Asker has no likert answer of their own.
	broken := Response{QuestionID: "sleep", Preference: Preference{Kind: questionnaire.PreferenceSimilar}, Importance: 3}
	assert.False(t, s.Score(question(t, c, "sleep"), broken, LikertAnswer{Value: 3}).Valid)
}

func TestScorer_Likert(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "sleep")
	s := NewScorer(DefaultPolicy())

	tests := []struct {
		name  string
		own   int
		kind  questionnaire.PreferenceKind
		other int
		want  float64
	}{
		{"similar identical", 4, questionnaire.PreferenceSimilar, 4, 1},
		{"similar opposite", 1, questionnaire.PreferenceSimilar, 5, 0},
		{"similar one step", 2, questionnaire.PreferenceSame, 3, 0.75},
		{"different opposite", 1, questionnaire.PreferenceDifferent, 5, 1},
		{"different identical", 3, questionnaire.PreferenceDifferent, 3, 0},
		{"more satisfied", 3, questionnaire.PreferenceMore, 4, 1},
		{"more equal", 3, questionnaire.PreferenceMore, 3, 0.5},
		{"more equal at ceiling", 5, questionnaire.PreferenceMore, 5, 1},
		{"more worse by two", 3, questionnaire.PreferenceMore, 1, 0.25},
		{"less satisfied", 3, questionnaire.PreferenceLess, 1, 1},
		{"less equal at floor", 1, questionnaire.PreferenceLess, 1, 1},
		{"less worse by four", 1, questionnaire.PreferenceLess, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Score(q, likert("sleep", tt.own, tt.kind, 3), LikertAnswer{Value: tt.other})
			assert.True(t, res.Valid)
			assert.InDelta(t, tt.want, res.Score, 1e-12)
			assert.Equal(t, 1.0, res.Weight)
		})
	}
}

func TestScorer_LikertMoreIsMonotonic(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "sleep")
	s := NewScorer(DefaultPolicy())

	prev := -1.0
	for other := 1; other <= 5; other++ {
		got := s.Score(q, likert("sleep", 3, questionnaire.PreferenceMore, 3), LikertAnswer{Value: other}).Score
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestScorer_Categorical(t *testing.T) {
	c := testCatalog(t)
	s := NewScorer(DefaultPolicy())
	religion := question(t, c, "religion")
	drinking := question(t, c, "drinking")

	same := single("religion", "none", questionnaire.PreferenceSame, 3)
	assert.Equal(t, 1.0, s.Score(religion, same, CategoricalAnswer{Value: "none"}).Score)
	assert.Equal(t, 0.0, s.Score(religion, same, CategoricalAnswer{Value: "other"}).Score)

	compatible := single("religion", "none", questionnaire.PreferenceCompatible, 3)
	assert.Equal(t, 1.0, s.Score(religion, compatible, CategoricalAnswer{Value: "other"}).Score)
	assert.Equal(t, 0.0, s.Score(religion, compatible, CategoricalAnswer{Value: "muslim"}).Score)

	// No table entry for "jewish": falls back to equality.
	compatibleNoTable := single("religion", "jewish", questionnaire.PreferenceCompatible, 3)
	assert.Equal(t, 1.0, s.Score(religion, compatibleNoTable, CategoricalAnswer{Value: "jewish"}).Score)

	specific := single("religion", "none", questionnaire.PreferenceSpecificValues, 3)
	specific.Preference.Values = NewStringSet("christian", "other")
	assert.Equal(t, 1.0, s.Score(religion, specific, CategoricalAnswer{Value: "other"}).Score)
	assert.Equal(t, 0.0, s.Score(religion, specific, CategoricalAnswer{Value: "none"}).Score)

	similar := single("drinking", "never", questionnaire.PreferenceSimilar, 3)
	assert.InDelta(t, 0.5, s.Score(drinking, similar, CategoricalAnswer{Value: "sometimes"}).Score, 1e-12)
	assert.InDelta(t, 0.0, s.Score(drinking, similar, CategoricalAnswer{Value: "often"}).Score, 1e-12)

	less := single("drinking", "sometimes", questionnaire.PreferenceLess, 3)
	assert.Equal(t, 1.0, s.Score(drinking, less, CategoricalAnswer{Value: "never"}).Score)
}

func TestScorer_MultiSelect(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "hobbies")
	s := NewScorer(DefaultPolicy())

	asker := Response{
		QuestionID: "hobbies",
		Answer:     MultiSelectAnswer{Values: NewStringSet("hiking", "music")},
		Preference: Preference{Kind: questionnaire.PreferenceSimilar},
		Importance: 3,
	}
	got := s.Score(q, asker, MultiSelectAnswer{Values: NewStringSet("music", "gaming", "cooking")})
	assert.InDelta(t, 0.25, got.Score, 1e-12)

	empty := asker
	empty.Answer = MultiSelectAnswer{Values: NewStringSet()}
	got = s.Score(q, empty, MultiSelectAnswer{Values: NewStringSet()})
	assert.Equal(t, NeutralScore, got.Score)

	target := asker
	target.Preference = Preference{Kind: questionnaire.PreferenceSpecificValues, Values: NewStringSet("gaming")}
	assert.Equal(t, 1.0, s.Score(q, target, MultiSelectAnswer{Values: NewStringSet("gaming", "music")}).Score)
	assert.Equal(t, 0.0, s.Score(q, target, MultiSelectAnswer{Values: NewStringSet("music")}).Score)
}

func TestScorer_Compound(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "substances")
	s := NewScorer(DefaultPolicy())

	asker := Response{
		QuestionID: "substances",
		Answer:     CompoundAnswer{Substances: NewStringSet("alcohol"), Frequency: "monthly"},
		Preference: Preference{Kind: questionnaire.PreferenceSimilar},
		Importance: 3,
	}

	// Substances: jaccard({alcohol},{alcohol,tobacco}) = 0.5; frequency monthly vs daily = 1 - 2/3.
	got := s.Score(q, asker, CompoundAnswer{Substances: NewStringSet("alcohol", "tobacco"), Frequency: "daily"})
	assert.InDelta(t, 0.5*0.5+0.5*(1.0/3.0), got.Score, 1e-12)

	clean := asker
	clean.Preference = Preference{Kind: questionnaire.PreferenceSpecificValues, Values: NewStringSet("alcohol")}
	got = s.Score(q, clean, CompoundAnswer{Substances: NewStringSet(), Frequency: "monthly"})
	assert.InDelta(t, 1.0, got.Score, 1e-12)
}

func TestScorer_AgeRange(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "partner_age")
	s := NewScorer(DefaultPolicy())

	asker := Response{
		QuestionID: "partner_age",
		Answer:     AgeAnswer{Age: 22},
		Preference: Preference{AgeRange: &Range{Min: 20, Max: 24}},
		Importance: 3,
	}

	assert.Equal(t, 1.0, s.Score(q, asker, AgeAnswer{Age: 20}).Score)
	assert.Equal(t, 1.0, s.Score(q, asker, AgeAnswer{Age: 24}).Score)
	assert.InDelta(t, 2.0/3.0, s.Score(q, asker, AgeAnswer{Age: 25}).Score, 1e-12)
	assert.InDelta(t, 1.0/3.0, s.Score(q, asker, AgeAnswer{Age: 18}).Score, 1e-12)
	assert.Equal(t, 0.0, s.Score(q, asker, AgeAnswer{Age: 30}).Score)

	strict := asker
	strict.Dealbreaker = true
	res := s.Score(q, strict, AgeAnswer{Age: 25})
	assert.Equal(t, 0.0, res.Score)
	assert.True(t, res.DealbreakerFailed)

	noPartial := DefaultPolicy()
	noPartial.AgePartialCredit = false
	assert.Equal(t, 0.0, NewScorer(noPartial).Score(q, asker, AgeAnswer{Age: 25}).Score)
}

func TestScorer_LoveLanguages(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "love_languages")
	s := NewScorer(DefaultPolicy())

	asker := Response{
		QuestionID: "love_languages",
		Answer:     LoveLanguagesAnswer{Shown: NewStringSet("acts"), Received: NewStringSet("time", "words")},
		Importance: 3,
	}

	got := s.Score(q, asker, LoveLanguagesAnswer{Shown: NewStringSet("time", "gifts")})
	assert.InDelta(t, 0.5, got.Score, 1e-12)

	asker.Answer = LoveLanguagesAnswer{Shown: NewStringSet("acts")}
	got = s.Score(q, asker, LoveLanguagesAnswer{Shown: NewStringSet("time")})
	assert.Equal(t, NeutralScore, got.Score)
}

func TestScorer_DealbreakerFailsOnlyBelowEpsilon(t *testing.T) {
	c := testCatalog(t)
	q := question(t, c, "religion")
	s := NewScorer(DefaultPolicy())

	asker := single("religion", "muslim", questionnaire.PreferenceSame, 5)
	asker.Dealbreaker = true

	assert.True(t, s.Score(q, asker, CategoricalAnswer{Value: "christian"}).DealbreakerFailed)
	assert.False(t, s.Score(q, asker, CategoricalAnswer{Value: "muslim"}).DealbreakerFailed)
	assert.Equal(t, 2.0, s.Score(q, asker, CategoricalAnswer{Value: "muslim"}).Weight)
}

package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

func TestAggregator_IdenticalAnswersScoreHundred(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	a := newUser("a",
		likert("sleep", 3, questionnaire.PreferenceSimilar, 3),
		likert("tidiness", 4, questionnaire.PreferenceSimilar, 4),
	)
	b := newUser("b",
		likert("sleep", 3, questionnaire.PreferenceSimilar, 2),
		likert("tidiness", 4, questionnaire.PreferenceSimilar, 5),
	)

	ps := g.Pair(a, b)
	assert.False(t, ps.HardFiltered)
	assert.InDelta(t, 100, ps.AToB, 1e-9)
	assert.InDelta(t, 100, ps.BToA, 1e-9)
	assert.InDelta(t, 100, ps.TotalScore, 1e-9)
	assert.InDelta(t, 100, ps.BidirectionalScore, 1e-9)
	assert.Len(t, ps.Contributions, 4)
}

func TestAggregator_PairIsSymmetric(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	a := newUser("a",
		likert("sleep", 5, questionnaire.PreferenceSimilar, 5),
		likert("tidiness", 1, questionnaire.PreferenceMore, 1),
		single("religion", "none", questionnaire.PreferenceCompatible, 4),
	)
	b := newUser("b",
		likert("sleep", 2, questionnaire.PreferenceDifferent, 3),
		likert("tidiness", 4, questionnaire.PreferenceSimilar, 2),
		single("religion", "other", questionnaire.PreferenceSame, 2),
	)

	ab, ba := g.Pair(a, b), g.Pair(b, a)
	assert.Equal(t, ab.UserA, ba.UserA)
	assert.Equal(t, ab.UserB, ba.UserB)
	assert.Equal(t, ab.TotalScore, ba.TotalScore)
	assert.Equal(t, ab.BidirectionalScore, ba.BidirectionalScore)
	assert.Equal(t, ab.AToB, ba.AToB)
	assert.Equal(t, UserID("a"), ab.UserA)
}

func TestAggregator_ImportanceWeightsAndCombiners(t *testing.T) {
	c := testCatalog(t)

	// a→b: sleep matches at ×2, tidiness misses at ×0.5 → 2/2.5 = 80.
	// b→a: sleep matches at ×1, tidiness misses at ×1 → 50.
	a := newUser("a",
		likert("sleep", 3, questionnaire.PreferenceSimilar, 5),
		likert("tidiness", 1, questionnaire.PreferenceSimilar, 1),
	)
	b := newUser("b",
		likert("sleep", 3, questionnaire.PreferenceSimilar, 3),
		likert("tidiness", 5, questionnaire.PreferenceSimilar, 3),
	)

	ps := NewAggregator(c, DefaultPolicy()).Pair(a, b)
	assert.InDelta(t, 80, ps.AToB, 1e-9)
	assert.InDelta(t, 50, ps.BToA, 1e-9)
	assert.InDelta(t, 65, ps.TotalScore, 1e-9)
	assert.InDelta(t, 65, ps.BidirectionalScore, 1e-9)

	minPolicy := DefaultPolicy()
	minPolicy.Combiner = CombinerMin
	ps = NewAggregator(c, minPolicy).Pair(a, b)
	assert.InDelta(t, 65, ps.TotalScore, 1e-9, "total stays the mean")
	assert.InDelta(t, 50, ps.BidirectionalScore, 1e-9)

	geoPolicy := DefaultPolicy()
	geoPolicy.Combiner = CombinerGeometric
	ps = NewAggregator(c, geoPolicy).Pair(a, b)
	assert.InDelta(t, math.Sqrt(80*50), ps.BidirectionalScore, 1e-9)
}

func TestAggregator_SectionWeights(t *testing.T) {
	c, err := questionnaire.NewCatalog(
		[]questionnaire.Section{{ID: "major", Weight: 0.75}, {ID: "minor", Weight: 0.25}},
		[]questionnaire.Question{
			{ID: "qa", SectionID: "major", Type: questionnaire.TypeLikert},
			{ID: "qb", SectionID: "minor", Type: questionnaire.TypeLikert},
		},
	)
	require.NoError(t, err)
	g := NewAggregator(c, DefaultPolicy())

	a := newUser("a", likert("qa", 1, questionnaire.PreferenceSimilar, 3), likert("qb", 1, questionnaire.PreferenceSimilar, 3))
	b := newUser("b", likert("qa", 1, questionnaire.PreferenceSimilar, 3), likert("qb", 5, questionnaire.PreferenceSimilar, 3))

	ps := g.Pair(a, b)
	assert.InDelta(t, 75, ps.AToB, 1e-9)
	assert.InDelta(t, 75, ps.BToA, 1e-9)
	assert.InDelta(t, 75, ps.TotalScore, 1e-9)

	// Unanswered sections drop out and the rest is renormalised.
	lone := newUser("c", likert("qa", 1, questionnaire.PreferenceSimilar, 3))
	ps = g.Pair(lone, b)
	assert.InDelta(t, 100, ps.TotalScore, 1e-9)
}

func TestAggregator_DealbreakerIsAbsolute(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	strict := single("religion", "muslim", questionnaire.PreferenceSame, 5)
	strict.Dealbreaker = true

	a := newUser("a",
		strict,
		likert("sleep", 3, questionnaire.PreferenceSimilar, 5),
		likert("tidiness", 3, questionnaire.PreferenceSimilar, 5),
	)
	b := newUser("b",
		single("religion", "christian", questionnaire.PreferenceSame, 1),
		likert("sleep", 3, questionnaire.PreferenceSimilar, 5),
		likert("tidiness", 3, questionnaire.PreferenceSimilar, 5),
	)

	for _, ps := range []PairScore{g.Pair(a, b), g.Pair(b, a)} {
		assert.True(t, ps.HardFiltered)
		assert.Equal(t, "religion", ps.DealbreakerQuestion)
		assert.Equal(t, RejectedScore, ps.TotalScore)
		assert.Equal(t, RejectedScore, ps.BidirectionalScore)
		assert.False(t, g.Passes(ps))
	}
}

func TestAggregator_DealbreakerOnAnyQuestion(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)
	g := NewAggregator(c, DefaultPolicy())

	strict := raw("tidiness", `1`, `"similar"`)
	strict.Importance = 5
	strict.Dealbreaker = true

	a, issues := n.NormalizeUser(RawUser{
		Profile:   Profile{ID: "a", Gender: "woman", Age: 21, Campus: "main", SubmittedAt: &submitted},
		Responses: []RawResponse{strict, raw("sleep", `3`, `"similar"`)},
	})
	require.Empty(t, issues)

	b, issues := n.NormalizeUser(RawUser{
		Profile:   Profile{ID: "b", Gender: "woman", Age: 21, Campus: "main", SubmittedAt: &submitted},
		Responses: []RawResponse{raw("tidiness", `5`, ""), raw("sleep", `3`, `"similar"`)},
	})
	require.Empty(t, issues)

	ps := g.Pair(a, b)
	assert.True(t, ps.HardFiltered)
	assert.Equal(t, "tidiness", ps.DealbreakerQuestion)
	assert.False(t, g.Passes(ps))
}

func TestAggregator_AgeDealbreakerUsesProfileAge(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	a := newUser("a", Response{
		QuestionID:  "partner_age",
		Answer:      AgeAnswer{Age: 21},
		Preference:  Preference{AgeRange: &Range{Min: 20, Max: 24}},
		Importance:  4,
		Dealbreaker: true,
	})
	b := newUser("b", likert("sleep", 3, questionnaire.PreferenceSimilar, 3))
	b.Age = 30

	ps := g.Pair(a, b)
	assert.True(t, ps.HardFiltered)
	assert.Equal(t, "partner_age", ps.DealbreakerQuestion)

	b.Age = 23
	assert.False(t, g.Pair(a, b).HardFiltered)
}

func TestAggregator_DoesntMatterIsNeutral(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	careless := likert("sleep", 1, questionnaire.PreferenceSimilar, 5)
	careless.Preference.DoesntMatter = true

	withNeutral := newUser("a", careless, likert("tidiness", 3, questionnaire.PreferenceSimilar, 3))
	without := newUser("a", likert("tidiness", 3, questionnaire.PreferenceSimilar, 3))
	other := newUser("b",
		likert("sleep", 5, questionnaire.PreferenceSimilar, 3),
		likert("tidiness", 4, questionnaire.PreferenceSimilar, 3),
	)

	got := g.Directional(withNeutral, other)
	want := g.Directional(without, other)
	assert.InDelta(t, 75, got.Score, 1e-9)
	assert.Equal(t, want.Score, got.Score)
	assert.Equal(t, 1, got.Scored)
}

func TestAggregator_NothingToScoreIsNeutral(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	careless := likert("sleep", 1, questionnaire.PreferenceSimilar, 5)
	careless.Preference.DoesntMatter = true

	a := newUser("a", careless)
	b := newUser("b", single("religion", "none", questionnaire.PreferenceSame, 3))

	assert.Equal(t, NeutralDirectionalScore, g.Directional(a, b).Score)

	ps := g.Pair(a, b)
	assert.Equal(t, NeutralDirectionalScore, ps.AToB)
	assert.Equal(t, NeutralDirectionalScore, ps.BToA)
	assert.Equal(t, NeutralDirectionalScore, ps.TotalScore)
}

func TestAggregator_ScoresStayInBounds(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())
	kinds := []questionnaire.PreferenceKind{
		questionnaire.PreferenceSame,
		questionnaire.PreferenceSimilar,
		questionnaire.PreferenceDifferent,
		questionnaire.PreferenceMore,
		questionnaire.PreferenceLess,
	}

	var users []User
	for i := 0; i < 10; i++ {
		users = append(users, newUser(string(rune('a'+i)),
			likert("sleep", 1+i%5, kinds[i%len(kinds)], 1+i%5),
			likert("tidiness", 5-i%5, kinds[(i+2)%len(kinds)], 1+(i+1)%5),
			single("drinking", []string{"never", "sometimes", "often"}[i%3], kinds[(i+1)%len(kinds)], 3),
		))
	}

	for i := range users {
		for j := i + 1; j < len(users); j++ {
			ps := g.Pair(users[i], users[j])
			require.False(t, ps.HardFiltered)
			for _, v := range []float64{ps.AToB, ps.BToA, ps.TotalScore, ps.BidirectionalScore} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
		}
	}
}

func TestAggregator_PassesAndEdge(t *testing.T) {
	g := NewAggregator(testCatalog(t), DefaultPolicy())

	a := newUser("a", likert("sleep", 1, questionnaire.PreferenceSimilar, 3))
	b := newUser("b", likert("sleep", 5, questionnaire.PreferenceSimilar, 3))
	low := g.Pair(a, b)
	assert.InDelta(t, 0, low.BidirectionalScore, 1e-9)
	assert.False(t, g.Passes(low))

	c := newUser("c", likert("sleep", 2, questionnaire.PreferenceSimilar, 3))
	ok := g.Pair(a, c)
	assert.True(t, g.Passes(ok))
	assert.Equal(t, MatchEdge{UserA: "a", UserB: "c", Weight: 75000}, g.Edge(ok))
}

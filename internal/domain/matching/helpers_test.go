package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

func testCatalog(t *testing.T) *questionnaire.Catalog {
	t.Helper()

	c, err := questionnaire.NewCatalog(
		[]questionnaire.Section{
			{ID: "lifestyle", Weight: 0.5},
			{ID: "values", Weight: 0.3},
			{ID: "logistics", Weight: 0.2},
		},
		[]questionnaire.Question{
			{ID: "sleep", SectionID: "lifestyle", Type: questionnaire.TypeLikert},
			{ID: "tidiness", SectionID: "lifestyle", Type: questionnaire.TypeLikert},
			{
				ID: "drinking", SectionID: "lifestyle", Type: questionnaire.TypeSingleSelect,
				Options: []string{"never", "sometimes", "often"}, Ordered: true,
			},
			{
				ID: "substances", SectionID: "lifestyle", Type: questionnaire.TypeCompound,
				Options:     []string{"alcohol", "tobacco", "cannabis"},
				Frequencies: []string{"never", "monthly", "weekly", "daily"},
			},
			{
				ID: "hobbies", SectionID: "values", Type: questionnaire.TypeMultiSelect,
				Options: []string{"hiking", "gaming", "cooking", "music"},
			},
			{
				ID: "religion", SectionID: "values", Type: questionnaire.TypeSingleSelect,
				Options:       []string{"none", "christian", "muslim", "jewish", "other"},
				Compatibility: map[string][]string{"none": {"none", "other"}},
			},
			{
				ID: "love_languages", SectionID: "values", Type: questionnaire.TypeLoveLanguages,
				Options: []string{"words", "acts", "gifts", "time", "touch"},
			},
			{ID: "partner_age", SectionID: "logistics", Type: questionnaire.TypeAgeRange},
		},
	)
	require.NoError(t, err)
	return c
}

func question(t *testing.T, c *questionnaire.Catalog, id string) questionnaire.Question {
	t.Helper()
	q, ok := c.Question(id)
	require.True(t, ok, "question %s", id)
	return q
}

var submitted = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newUser(id string, responses ...Response) User {
	u := User{
		Profile: Profile{
			ID:          UserID(id),
			Gender:      "woman",
			Age:         21,
			Campus:      "main",
			SubmittedAt: &submitted,
		},
		Responses: make(map[string]Response, len(responses)),
	}
	for _, r := range responses {
		u.Responses[r.QuestionID] = r
	}
	return u
}

func likert(qid string, value int, kind questionnaire.PreferenceKind, importance int) Response {
	return Response{
		QuestionID: qid,
		Answer:     LikertAnswer{Value: value},
		Preference: Preference{Kind: kind},
		Importance: importance,
	}
}

func single(qid, value string, kind questionnaire.PreferenceKind, importance int) Response {
	return Response{
		QuestionID: qid,
		Answer:     CategoricalAnswer{Value: value},
		Preference: Preference{Kind: kind},
		Importance: importance,
	}
}

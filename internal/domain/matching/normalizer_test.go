package matching

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

func raw(qid, answer, pref string) RawResponse {
	r := RawResponse{QuestionID: qid, Answer: json.RawMessage(answer)}
	if pref != "" {
		r.Preference = json.RawMessage(pref)
	}
	return r
}

func TestNormalize_Answers(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	tests := []struct {
		name   string
		qid    string
		answer string
		want   Answer
	}{
		{"single select", "religion", `"none"`, CategoricalAnswer{Value: "none"}},
		{"multi select dedups and sorts", "hobbies", `["music","hiking","music"]`, MultiSelectAnswer{Values: StringSet{"hiking", "music"}}},
		{"likert number", "sleep", `4`, LikertAnswer{Value: 4}},
		{"likert string", "sleep", `"2"`, LikertAnswer{Value: 2}},
		{"compound", "substances", `{"substances":["tobacco","alcohol"],"frequency":"weekly"}`,
			CompoundAnswer{Substances: StringSet{"alcohol", "tobacco"}, Frequency: "weekly"}},
		{"age", "partner_age", `23`, AgeAnswer{Age: 23}},
		{"love languages", "love_languages", `{"shown":["acts"],"received":["time","words"]}`,
			LoveLanguagesAnswer{Shown: StringSet{"acts"}, Received: StringSet{"time", "words"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := n.Normalize(question(t, c, tt.qid), raw(tt.qid, tt.answer, ""))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Answer)
			assert.Equal(t, DefaultImportance, resp.Importance)
		})
	}
}

func TestNormalize_MalformedAnswers(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	tests := []struct {
		name   string
		qid    string
		answer string
	}{
		{"unknown option", "religion", `"pastafarian"`},
		{"wrong shape", "hobbies", `"hiking"`},
		{"likert out of scale", "sleep", `9`},
		{"likert fractional", "sleep", `3.5`},
		{"unknown frequency", "substances", `{"substances":[],"frequency":"hourly"}`},
		{"implausible age", "partner_age", `-4`},
		{"missing answer", "sleep", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(question(t, c, tt.qid), raw(tt.qid, tt.answer, ""))
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidFormat)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestNormalize_Preferences(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	resp, err := n.Normalize(question(t, c, "sleep"), raw("sleep", `3`, ""))
	require.NoError(t, err)
	assert.Equal(t, questionnaire.PreferenceSimilar, resp.Preference.Kind)

	resp, err = n.Normalize(question(t, c, "religion"), raw("religion", `"none"`, ""))
	require.NoError(t, err)
	assert.Equal(t, questionnaire.PreferenceSame, resp.Preference.Kind)

	resp, err = n.Normalize(question(t, c, "sleep"), raw("sleep", `3`, `{"kind":"more"}`))
	require.NoError(t, err)
	assert.Equal(t, questionnaire.PreferenceMore, resp.Preference.Kind)

	resp, err = n.Normalize(question(t, c, "religion"), raw("religion", `"none"`, `["none","other"]`))
	require.NoError(t, err)
	assert.Equal(t, questionnaire.PreferenceSpecificValues, resp.Preference.Kind)
	assert.Equal(t, StringSet{"none", "other"}, resp.Preference.Values)

	resp, err = n.Normalize(question(t, c, "hobbies"), raw("hobbies", `["gaming"]`, `"doesnt_matter"`))
	require.NoError(t, err)
	assert.True(t, resp.Preference.DoesntMatter)

	resp, err = n.Normalize(question(t, c, "partner_age"), raw("partner_age", `22`, `{"min":20,"max":25}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Preference.AgeRange)
	assert.Equal(t, Range{Min: 20, Max: 25}, *resp.Preference.AgeRange)
}

func TestNormalize_MalformedPreferences(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	cases := map[string]RawResponse{
		"kind not allowed for multi select": raw("hobbies", `["gaming"]`, `{"kind":"more"}`),
		"unknown target":                    raw("religion", `"none"`, `["pastafarian"]`),
		"empty specific values":             raw("religion", `"none"`, `{"kind":"specific_values"}`),
		"inverted age range":                raw("partner_age", `22`, `{"min":30,"max":25}`),
		"likert target off scale":           raw("sleep", `3`, `{"kind":"specific_values","values":["7"]}`),
	}

	for name, rr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(question(t, c, rr.QuestionID), rr)
			assert.ErrorIs(t, err, shared.ErrInvalidFormat)
		})
	}
}

func TestNormalize_ImportanceAndDealbreaker(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	rr := raw("sleep", `3`, "")
	rr.Importance = 6
	_, err := n.Normalize(question(t, c, "sleep"), rr)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	rr = raw("tidiness", `3`, "")
	rr.Dealbreaker = true
	resp, err := n.Normalize(question(t, c, "tidiness"), rr)
	require.NoError(t, err)
	assert.True(t, resp.Dealbreaker)
	assert.True(t, resp.IsDealbreaker())

	rr = raw("sleep", `3`, `"doesnt_matter"`)
	rr.Dealbreaker = true
	rr.Importance = 5
	resp, err = n.Normalize(question(t, c, "sleep"), rr)
	require.NoError(t, err)
	assert.False(t, resp.IsDealbreaker())
	assert.Zero(t, resp.EffectiveImportance())
}

func TestNormalizeUser(t *testing.T) {
	c := testCatalog(t)
	n := NewNormalizer(c)

	ru := RawUser{
		Profile: Profile{
			ID:                " u1 ",
			Gender:            "Women",
			GenderPreferences: []string{"Men", "non-binary"},
			Age:               22,
			Campus:            " Main ",
			SubmittedAt:       &submitted,
		},
		Responses: []RawResponse{
			raw("sleep", `4`, ""),
			raw("sleep", `2`, ""),
			raw("hobbies", `"not-a-list"`, ""),
			raw("ghost", `1`, ""),
			raw("partner_age", `null`, `{"min":20,"max":26}`),
		},
	}

	u, issues := n.NormalizeUser(ru)

	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "woman", u.Gender)
	assert.Equal(t, []string{"man", "non_binary"}, u.GenderPreferences)
	assert.Equal(t, "main", u.Campus)

	require.Len(t, u.Responses, 2)
	assert.Equal(t, LikertAnswer{Value: 4}, u.Responses["sleep"].Answer)
	assert.Equal(t, AgeAnswer{Age: 22}, u.Responses["partner_age"].Answer)

	require.Len(t, issues, 3)
	questions := []string{issues[0].QuestionID, issues[1].QuestionID, issues[2].QuestionID}
	assert.ElementsMatch(t, []string{"sleep", "hobbies", "ghost"}, questions)
}

func TestNormalizeGenderPreferences_OpenMarkers(t *testing.T) {
	assert.Nil(t, NormalizeGenderPreferences([]string{"women", "Everyone"}))
	assert.Nil(t, NormalizeGenderPreferences(nil))
	assert.Equal(t, []string{"woman"}, NormalizeGenderPreferences([]string{"women", "Woman", "female"}))
}

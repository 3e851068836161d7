package matching

import (
	"time"
)

// Stats - сводка одного прогона подбора. Нулевое число пар - валидный
// результат ("анкеты ещё обрабатываются"), а не ошибка.
type Stats struct {
	RunID   string `json:"run_id"`
	BatchID string `json:"batch_id"`

	EligibleUsers     int                      `json:"eligible_users"`
	IneligibleUsers   int                      `json:"ineligible_users"`
	IneligibleReasons map[IneligibleReason]int `json:"ineligible_reasons,omitempty"`
	MalformedAnswers  int                      `json:"malformed_answers"`

	PairsConsidered   int `json:"pairs_considered"`
	FilteredGender    int `json:"filtered_gender"`
	FilteredAge       int `json:"filtered_age"`
	FilteredCampus    int `json:"filtered_campus"`
	PreferredBypassed int `json:"preferred_bypassed"`

	EdgesEvaluated int `json:"edges_evaluated"`
	HardFiltered   int `json:"hard_filtered"`
	BelowThreshold int `json:"below_threshold"`
	EdgesKept      int `json:"edges_kept"`

	PrimaryMatches  int     `json:"primary_matches"`
	FallbackMatches int     `json:"fallback_matches"`
	FinalMatches    int     `json:"final_matches"`
	AverageScore    float64 `json:"average_score"`
	UnmatchedUsers  int     `json:"unmatched_users"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	DryRun    bool          `json:"dry_run"`
}

// RecordIneligible учитывает отсеянного пользователя.
func (s *Stats) RecordIneligible(reason IneligibleReason) {
	if s.IneligibleReasons == nil {
		s.IneligibleReasons = make(map[IneligibleReason]int)
	}
	s.IneligibleUsers++
	s.IneligibleReasons[reason]++
}

// RecordFilter учитывает пару, отброшенную жёстким фильтром.
func (s *Stats) RecordFilter(reason FilterReason) {
	switch reason {
	case FilterGender:
		s.FilteredGender++
	case FilterAge:
		s.FilteredAge++
	case FilterCampus:
		s.FilteredCampus++
	}
}

// RecordMatches заполняет итоговые счётчики по найденным парам.
func (s *Stats) RecordMatches(set MatchSet, scores []float64) {
	s.PrimaryMatches = len(set.Primary)
	s.FallbackMatches = len(set.Fallback)
	s.FinalMatches = set.Len()

	s.AverageScore = 0
	if len(scores) > 0 {
		sum := 0.0
		for _, v := range scores {
			sum += v
		}
		s.AverageScore = sum / float64(len(scores))
	}

	matched := make(map[UserID]bool)
	for _, e := range set.All() {
		matched[e.UserA] = true
		matched[e.UserB] = true
	}
	s.UnmatchedUsers = s.EligibleUsers - len(matched)
	if s.UnmatchedUsers < 0 {
		s.UnmatchedUsers = 0
	}
}

// HasMatches возвращает true, если прогон дал хотя бы одну пару.
func (s Stats) HasMatches() bool {
	return s.FinalMatches > 0
}

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
)

//go:embed questionnaire.yaml
var defaultMatchingFile []byte

// MatchingConfig holds the scoring policy, the questionnaire catalog
// and the runtime knobs of a matching run.
type MatchingConfig struct {
	// Path of the YAML file the catalog was read from ("" = embedded default)
	CatalogPath string

	Policy  matching.Policy
	Catalog *questionnaire.Catalog

	// Max goroutines scoring pairs when parallel scoring is on
	ScoringConcurrency int

	// Redis lock lifetime for a batch run
	LockTTL time.Duration

	// How long run stats stay in the cache
	StatsTTL time.Duration

	// Upper bound for the whole run, including persistence
	RunTimeout time.Duration
}

// MatchingFile is the YAML layout of config/questionnaire.yaml.
type MatchingFile struct {
	Policy    policyFile     `yaml:"policy"`
	Sections  []sectionFile  `yaml:"sections"`
	Questions []questionFile `yaml:"questions"`
}

type policyFile struct {
	ImportanceMultipliers   []float64 `yaml:"importance_multipliers"`
	DealbreakerEpsilon      *float64  `yaml:"dealbreaker_epsilon"`
	AgePartialCredit        *bool     `yaml:"age_partial_credit"`
	AgeFalloffYears         *float64  `yaml:"age_falloff_years"`
	CompoundSubstanceWeight *float64  `yaml:"compound_substance_weight"`
	Combiner                string    `yaml:"combiner"`
	MinScore                *float64  `yaml:"min_score"`
	Quota                   *int      `yaml:"quota"`
	WeightScale             *int64    `yaml:"weight_scale"`
}

type sectionFile struct {
	ID     string  `yaml:"id"`
	Title  string  `yaml:"title"`
	Weight float64 `yaml:"weight"`
}

type scaleFile struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type questionFile struct {
	ID                string              `yaml:"id"`
	Section           string              `yaml:"section"`
	Type              string              `yaml:"type"`
	Prompt            string              `yaml:"prompt"`
	Options           []string            `yaml:"options"`
	Ordered           bool                `yaml:"ordered"`
	Scale             *scaleFile          `yaml:"scale"`
	Frequencies       []string            `yaml:"frequencies"`
	Compatibility     map[string][]string `yaml:"compatibility"`
	DefaultPreference string              `yaml:"default_preference"`
}

// ParseMatchingFile decodes a matching YAML document. Unknown keys are rejected.
func ParseMatchingFile(data []byte) (*MatchingFile, error) {
	var f MatchingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse matching file: %w", err)
	}
	return &f, nil
}

// Build turns the file into a validated policy and catalog.
// Values missing in the file keep the ones from base.
func (f *MatchingFile) Build(base matching.Policy) (matching.Policy, *questionnaire.Catalog, error) {
	policy, err := f.Policy.apply(base)
	if err != nil {
		return matching.Policy{}, nil, err
	}

	sections := make([]questionnaire.Section, 0, len(f.Sections))
	for _, s := range f.Sections {
		sections = append(sections, questionnaire.Section{ID: s.ID, Title: s.Title, Weight: s.Weight})
	}

	questions := make([]questionnaire.Question, 0, len(f.Questions))
	for _, q := range f.Questions {
		question := questionnaire.Question{
			ID:                q.ID,
			SectionID:         q.Section,
			Type:              questionnaire.QuestionType(q.Type),
			Prompt:            q.Prompt,
			Options:           q.Options,
			Ordered:           q.Ordered,
			Frequencies:       q.Frequencies,
			Compatibility:     q.Compatibility,
			DefaultPreference: questionnaire.PreferenceKind(q.DefaultPreference),
		}
		if q.Scale != nil {
			question.ScaleMin, question.ScaleMax = q.Scale.Min, q.Scale.Max
		}
		questions = append(questions, question)
	}

	catalog, err := questionnaire.NewCatalog(sections, questions)
	if err != nil {
		return matching.Policy{}, nil, err
	}

	return policy, catalog, nil
}

func (p policyFile) apply(base matching.Policy) (matching.Policy, error) {
	out := base

	if len(p.ImportanceMultipliers) > 0 {
		if len(p.ImportanceMultipliers) != matching.MaxImportance {
			return out, fmt.Errorf("importance_multipliers: want %d values, got %d",
				matching.MaxImportance, len(p.ImportanceMultipliers))
		}
		copy(out.ImportanceMultipliers[:], p.ImportanceMultipliers)
	}
	if p.DealbreakerEpsilon != nil {
		out.DealbreakerEpsilon = *p.DealbreakerEpsilon
	}
	if p.AgePartialCredit != nil {
		out.AgePartialCredit = *p.AgePartialCredit
	}
	if p.AgeFalloffYears != nil {
		out.AgeFalloffYears = *p.AgeFalloffYears
	}
	if p.CompoundSubstanceWeight != nil {
		out.CompoundSubstanceWeight = *p.CompoundSubstanceWeight
	}
	if p.Combiner != "" {
		c, err := matching.ParseCombiner(p.Combiner)
		if err != nil {
			return out, err
		}
		out.Combiner = c
	}
	if p.MinScore != nil {
		out.MinScore = *p.MinScore
	}
	if p.Quota != nil {
		out.Quota = *p.Quota
	}
	if p.WeightScale != nil {
		out.WeightScale = *p.WeightScale
	}

	return out, nil
}

func loadMatchingConfig(features *FeatureFlags) (MatchingConfig, error) {
	path := getEnv("MATCHING_CATALOG_PATH", "")

	data := defaultMatchingFile
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return MatchingConfig{}, fmt.Errorf("read %s: %w", path, err)
		}
		data = b
	}

	file, err := ParseMatchingFile(data)
	if err != nil {
		return MatchingConfig{}, err
	}

	policy, catalog, err := file.Build(matching.DefaultPolicy())
	if err != nil {
		return MatchingConfig{}, err
	}

	// Env vars win over the file.
	if v := getEnv("MATCH_COMBINER", ""); v != "" {
		c, err := matching.ParseCombiner(v)
		if err != nil {
			return MatchingConfig{}, err
		}
		policy.Combiner = c
	}
	policy.MinScore = getEnvFloat("MATCH_MIN_SCORE", policy.MinScore)
	policy.Quota = getEnvInt("MATCH_QUOTA", policy.Quota)
	policy.AgeFalloffYears = getEnvFloat("MATCH_AGE_FALLOFF_YEARS", policy.AgeFalloffYears)
	policy.FallbackEnabled = features.IsEnabled(FeatureFallbackPass, nil)
	policy.AgePartialCredit = policy.AgePartialCredit && features.IsEnabled(FeatureAgePartialCredit, nil)

	return MatchingConfig{
		CatalogPath:        path,
		Policy:             policy,
		Catalog:            catalog,
		ScoringConcurrency: getEnvInt("MATCH_SCORING_CONCURRENCY", 8),
		LockTTL:            getEnvDuration("MATCH_LOCK_TTL", 10*time.Minute),
		StatsTTL:           getEnvDuration("MATCH_STATS_TTL", 24*time.Hour),
		RunTimeout:         getEnvDuration("MATCH_RUN_TIMEOUT", 15*time.Minute),
	}, nil
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

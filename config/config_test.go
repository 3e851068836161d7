package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

const smallMatchingFile = `
policy:
  combiner: min
  quota: 2
sections:
  - id: lifestyle
    weight: 0.6
  - id: values
    weight: 0.4
questions:
  - id: sleep
    section: lifestyle
    type: likert
  - id: religion
    section: values
    type: single_select
    options: [none, other]
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "DATABASE_URL", "DB_HOST", "DB_USER", "MATCHING_CATALOG_PATH",
		"MATCH_COMBINER", "MATCH_MIN_SCORE", "MATCH_QUOTA", "MATCH_SCORING_CONCURRENCY",
		"FEATURE_MATCHING_FALLBACK_PASS", "FEATURE_MATCHING_AGE_PARTIAL_CREDIT", "LOG_HASH_SALT",
	} {
		t.Setenv(key, "")
	}
}

func TestEmbeddedMatchingFileIsValid(t *testing.T) {
	f, err := ParseMatchingFile(defaultMatchingFile)
	require.NoError(t, err)

	policy, catalog, err := f.Build(matching.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, policy.Validate())

	assert.Equal(t, matching.DefaultPolicy(), policy)
	assert.Greater(t, catalog.Len(), 0)

	sum := 0.0
	for _, s := range catalog.Sections() {
		sum += s.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestMatchingFile_PolicyOverrides(t *testing.T) {
	f, err := ParseMatchingFile([]byte(smallMatchingFile))
	require.NoError(t, err)

	policy, catalog, err := f.Build(matching.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, matching.CombinerMin, policy.Combiner)
	assert.Equal(t, 2, policy.Quota)
	assert.Equal(t, 5.0, policy.MinScore, "unset values keep the default")
	assert.Equal(t, 2, catalog.Len())
}

func TestMatchingFile_RejectsWeightsNotSummingToOne(t *testing.T) {
	doc := `
sections:
  - id: lifestyle
    weight: 0.5
  - id: values
    weight: 0.4
questions:
  - id: sleep
    section: lifestyle
    type: likert
`
	f, err := ParseMatchingFile([]byte(doc))
	require.NoError(t, err)

	_, _, err = f.Build(matching.DefaultPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConfiguration)
	assert.ErrorIs(t, err, shared.ErrSectionWeightsSum)
}

func TestMatchingFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "sections: []\nweigths: 1\n"},
		{"short multiplier table", "policy:\n  importance_multipliers: [1, 2]\n"},
		{"unknown combiner", "policy:\n  combiner: harmonic\n"},
		{"unknown question type", smallMatchingFile + "  - id: x\n    section: values\n    type: essay\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseMatchingFile([]byte(tt.doc))
			if err == nil {
				_, _, err = f.Build(matching.DefaultPolicy())
			}
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/cupid")
	t.Setenv("MATCH_COMBINER", "geometric")
	t.Setenv("MATCH_QUOTA", "4")
	t.Setenv("FEATURE_MATCHING_FALLBACK_PASS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, matching.CombinerGeometric, cfg.Matching.Policy.Combiner)
	assert.Equal(t, 4, cfg.Matching.Policy.Quota)
	assert.False(t, cfg.Matching.Policy.FallbackEnabled)
	assert.True(t, cfg.Matching.Policy.AgePartialCredit)
	assert.Equal(t, 8, cfg.Matching.ScoringConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Matching.LockTTL)
	assert.NotNil(t, cfg.Matching.Catalog)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Failures(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		clearEnv(t)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("bad combiner", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://localhost/cupid")
		t.Setenv("MATCH_COMBINER", "median")
		_, err := Load()
		assert.ErrorIs(t, err, shared.ErrConfiguration)
	})

	t.Run("quota below one", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://localhost/cupid")
		t.Setenv("MATCH_QUOTA", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota")
	})

	t.Run("catalog weights from file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		doc := "sections:\n  - id: a\n    weight: 0.9\nquestions: []\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		t.Setenv("DATABASE_URL", "postgres://localhost/cupid")
		t.Setenv("MATCHING_CATALOG_PATH", path)
		_, err := Load()
		assert.ErrorIs(t, err, shared.ErrSectionWeightsSum)
	})

	t.Run("production without hash salt", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("DATABASE_URL", "postgres://localhost/cupid")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOG_HASH_SALT")
	})
}

package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	t.Setenv("FEATURE_MATCHING_RUN_LOCK", "")
	ff := LoadFeatureFlags()

	for _, name := range []string{
		FeatureFallbackPass, FeatureParallelScoring, FeatureAgePartialCredit, FeatureRunLock, FeatureStatsCache,
	} {
		assert.True(t, ff.IsEnabled(name, nil), name)
	}
	assert.False(t, ff.IsEnabled("matching.unknown", nil))
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_MATCHING_RUN_LOCK", "false")
	t.Setenv("FEATURE_MATCHING_PARALLEL_SCORING", "0")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureRunLock, nil))
	assert.False(t, ff.IsEnabled(FeatureParallelScoring, &FeatureContext{BatchID: "2026-spring"}))
}

func TestFeatureFlags_RolloutIsStablePerBatch(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureParallelScoring, 50))

	enabled := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{BatchID: fmt.Sprintf("batch-%d", i)}
		first := ff.IsEnabled(FeatureParallelScoring, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureParallelScoring, ctx))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)
}

func TestFeatureFlags_BatchOverride(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{BatchID: "2026-spring"}

	ff.SetBatchOverride("2026-spring", FeatureFallbackPass, false)
	assert.False(t, ff.IsEnabled(FeatureFallbackPass, ctx))
	assert.True(t, ff.IsEnabled(FeatureFallbackPass, &FeatureContext{BatchID: "2026-fall"}))

	ff.ClearBatchOverrides("2026-spring")
	assert.True(t, ff.IsEnabled(FeatureFallbackPass, ctx))
}

func TestFeatureFlags_SetRolloutPercent(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureRunLock, 101), ErrInvalidRolloutPercent)

	require.NoError(t, ff.DisableFeature(FeatureRunLock))
	assert.False(t, ff.IsEnabled(FeatureRunLock, nil))
	assert.False(t, ff.GetAllFeatures()[FeatureRunLock].Enabled)

	require.NoError(t, ff.EnableFeature(FeatureRunLock))
	assert.True(t, ff.IsEnabled(FeatureRunLock, nil))

	var nilFlags *FeatureFlags
	assert.False(t, nilFlags.IsEnabled(FeatureRunLock, nil))
}

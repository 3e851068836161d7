package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages toggles for the matching pipeline.
// Flags can be switched per environment and rolled out gradually per batch,
// so a new behaviour can be tried on one semester's batch before the rest.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	batchOverrides map[string]map[string]bool // batchID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Batches are assigned based on hash of their ID
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	BatchID string
}

// Predefined feature flag names.
const (
	FeatureFallbackPass     = "matching.fallback_pass"      // Quota top-up after the primary matching
	FeatureParallelScoring  = "matching.parallel_scoring"   // Score candidate pairs concurrently
	FeatureAgePartialCredit = "matching.age_partial_credit" // Near-miss credit on age ranges
	FeatureRunLock          = "matching.run_lock"           // One run per batch at a time
	FeatureStatsCache       = "matching.stats_cache"        // Cache run stats in Redis
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:       make(map[string]*Feature),
		batchOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureFallbackPass] = &Feature{
		Name:           FeatureFallbackPass,
		Description:    "Give under-quota users extra matches from remaining edges",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureParallelScoring] = &Feature{
		Name:           FeatureParallelScoring,
		Description:    "Score candidate pairs on a bounded worker group",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAgePartialCredit] = &Feature{
		Name:           FeatureAgePartialCredit,
		Description:    "Partial credit for ages just outside the preferred range",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRunLock] = &Feature{
		Name:           FeatureRunLock,
		Description:    "Hold a Redis lock for the duration of a batch run",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStatsCache] = &Feature{
		Name:           FeatureStatsCache,
		Description:    "Cache the latest run stats per batch",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_MATCHING_FALLBACK_PASS=false
// Example: FEATURE_MATCHING_PARALLEL_SCORING=50 (50% of batches)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "matching.run_lock" -> "FEATURE_MATCHING_RUN_LOCK"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	if ff == nil {
		return false
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.BatchID != "" {
		if overrides, ok := ff.batchOverrides[ctx.BatchID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.BatchID != "" {
		return isInRollout(ctx.BatchID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout uses consistent hashing so a batch stays in its bucket.
func isInRollout(batchID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(batchID))

	return int(h.Sum32()%100) < percent
}

// SetBatchOverride sets a feature override for a specific batch.
func (ff *FeatureFlags) SetBatchOverride(batchID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.batchOverrides[batchID]; !ok {
		ff.batchOverrides[batchID] = make(map[string]bool)
	}
	ff.batchOverrides[batchID][featureName] = enabled
}

// ClearBatchOverrides removes all overrides for a batch.
func (ff *FeatureFlags) ClearBatchOverrides(batchID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.batchOverrides, batchID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}

// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/campus-cupid/matchmaker/config"
	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/questionnaire"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
	"github.com/campus-cupid/matchmaker/pkg/logger"
	"github.com/campus-cupid/matchmaker/pkg/retry"
	"github.com/campus-cupid/matchmaker/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN MATCHING COMMAND
// Runs one matching pass over a batch: load submitted questionnaires, filter,
// score every eligible pair, match, and replace the batch's matches atomically.
// ══════════════════════════════════════════════════════════════════════════════

// RunMatchingCommand contains the data needed to run matching for a batch.
type RunMatchingCommand struct {
	// BatchID identifies the matching round (e.g. "2026-valentines").
	BatchID string

	// DryRun computes everything but writes nothing except logs.
	DryRun bool

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RunMatchingCommand) Validate() error {
	_, err := shared.NewBatchID(c.BatchID)
	return err
}

// RunMatchingResult contains the outcome of a run.
type RunMatchingResult struct {
	RunID string

	// Matches are the persisted (or, in dry-run, would-be persisted) pairs,
	// primary pass first.
	Matches []matching.Match

	// Preferred are pre-assigned pairs that bypassed scoring, returned as given.
	Preferred []matching.PreferredPair

	// Ineligible lists users left out of the pool and why.
	Ineligible []matching.Ineligible

	// Issues are malformed responses excluded from scoring.
	Issues []matching.Issue

	Stats matching.Stats
}

// Outcome is the pure result of scoring and matching a set of users.
type Outcome struct {
	Set        matching.MatchSet
	Scores     map[matching.PairKey]matching.PairScore
	Ineligible []matching.Ineligible
	Preferred  []matching.PreferredPair
	Stats      matching.Stats
}

// ScoreOf returns the bidirectional score of a matched edge.
func (o *Outcome) ScoreOf(e matching.MatchEdge) float64 {
	return o.Scores[matching.NewPairKey(e.UserA, e.UserB)].BidirectionalScore
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RunMatchingHandler handles the RunMatchingCommand.
type RunMatchingHandler struct {
	userRepo  matching.UserRepository
	matchRepo matching.MatchRepository
	runRepo   matching.RunRepository
	runLock   matching.RunLock    // optional
	cache     matching.StatsCache // optional

	catalog    *questionnaire.Catalog
	policy     matching.Policy
	normalizer *matching.Normalizer
	filter     *matching.EligibilityFilter

	features     *config.FeatureFlags
	concurrency  int
	lockAttempts int
	log          *logger.Logger
	now          func() time.Time
}

// RunMatchingHandlerConfig contains configuration for the handler.
type RunMatchingHandlerConfig struct {
	Catalog *questionnaire.Catalog
	Policy  matching.Policy

	// Features toggles parallel scoring, fallback, run lock and stats cache.
	// Nil means all of them are off.
	Features *config.FeatureFlags

	// Concurrency bounds the scoring goroutines.
	Concurrency int

	// LockAttempts is how many times to try a busy run lock.
	LockAttempts int

	Logger *logger.Logger
}

// NewRunMatchingHandler creates a new RunMatchingHandler.
func NewRunMatchingHandler(
	userRepo matching.UserRepository,
	matchRepo matching.MatchRepository,
	runRepo matching.RunRepository,
	runLock matching.RunLock,
	cache matching.StatsCache,
	cfg RunMatchingHandlerConfig,
) (*RunMatchingHandler, error) {
	if cfg.Catalog == nil {
		return nil, shared.NewDomainError("matching", "NewRunMatchingHandler", shared.ErrConfiguration, "catalog is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LockAttempts < 1 {
		cfg.LockAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &RunMatchingHandler{
		userRepo:     userRepo,
		matchRepo:    matchRepo,
		runRepo:      runRepo,
		runLock:      runLock,
		cache:        cache,
		catalog:      cfg.Catalog,
		policy:       cfg.Policy,
		normalizer:   matching.NewNormalizer(cfg.Catalog),
		filter:       matching.NewEligibilityFilter(),
		features:     cfg.Features,
		concurrency:  cfg.Concurrency,
		lockAttempts: cfg.LockAttempts,
		log:          cfg.Logger.With(logger.Component("run_matching")),
		now:          time.Now,
	}, nil
}

// Handle executes the run matching command.
// Zero matches is a valid outcome and is not reported as an error.
func (h *RunMatchingHandler) Handle(ctx context.Context, cmd RunMatchingCommand) (*RunMatchingResult, error) {
	batch, err := shared.NewBatchID(cmd.BatchID)
	if err != nil {
		return nil, fmt.Errorf("run_matching: validation failed: %w", err)
	}
	runID := uuid.NewString()
	started := h.now()

	log := h.log.With(logger.BatchID(batch.String()), logger.RunID(runID))
	if cmd.CorrelationID != "" {
		log = log.With(logger.String("correlation_id", cmd.CorrelationID))
	}
	ctx = logger.WithContext(ctx, log)

	ctx, span := tracing.Tracer().Start(ctx, "matching.run")
	span.SetAttributes(
		attribute.String("batch_id", batch.String()),
		attribute.String("run_id", runID),
		attribute.Bool("dry_run", cmd.DryRun),
	)
	defer span.End()

	fctx := &config.FeatureContext{BatchID: batch.String()}

	// ─────────────────────────────────────────────────────────────────────────
	// Lock
	// ─────────────────────────────────────────────────────────────────────────
	if h.runLock != nil && !cmd.DryRun && h.features.IsEnabled(config.FeatureRunLock, fctx) {
		var token string
		err := retry.LockRetrier(h.lockAttempts, isRunInProgress).Do(ctx, func(ctx context.Context) error {
			t, err := h.runLock.Acquire(ctx, batch)
			token = t
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lock")
			return nil, fmt.Errorf("run_matching: acquire lock: %w", err)
		}
		defer func() {
			// The run context may already be cancelled; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := h.runLock.Release(rctx, batch, token); err != nil {
				log.Warn("failed to release run lock", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Load
	// ─────────────────────────────────────────────────────────────────────────
	raw, preferred, err := h.load(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		return nil, fmt.Errorf("run_matching: %w", err)
	}

	users, issues := h.normalize(ctx, raw)

	// ─────────────────────────────────────────────────────────────────────────
	// Score + match
	// ─────────────────────────────────────────────────────────────────────────
	policy, parallel := h.runPolicy(fctx)

	outcome, err := h.compute(ctx, policy, parallel, users, preferred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute")
		return nil, fmt.Errorf("run_matching: %w", err)
	}

	stats := outcome.Stats
	stats.RunID = runID
	stats.BatchID = batch.String()
	stats.MalformedAnswers = len(issues)
	stats.StartedAt = started
	stats.DryRun = cmd.DryRun

	matches := h.buildMatches(batch, outcome, started)

	// ─────────────────────────────────────────────────────────────────────────
	// Persist
	// ─────────────────────────────────────────────────────────────────────────
	if !cmd.DryRun {
		if err := h.persist(ctx, batch, matches); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist")
			return nil, fmt.Errorf("run_matching: %w", err)
		}
	}

	stats.Duration = h.now().Sub(started)

	if !cmd.DryRun {
		h.recordRun(ctx, stats, fctx)
	}

	span.SetAttributes(
		attribute.Int("eligible_users", stats.EligibleUsers),
		attribute.Int("edges_kept", stats.EdgesKept),
		attribute.Int("final_matches", stats.FinalMatches),
	)

	if !stats.HasMatches() {
		log.Info("no matches produced, questionnaires still being processed",
			logger.Int("eligible", stats.EligibleUsers),
			logger.Int("ineligible", stats.IneligibleUsers),
		)
	}
	log.Info("matching run completed",
		logger.Int("eligible", stats.EligibleUsers),
		logger.Int("edges_evaluated", stats.EdgesEvaluated),
		logger.Int("hard_filtered", stats.HardFiltered),
		logger.Int("below_threshold", stats.BelowThreshold),
		logger.Int("primary", stats.PrimaryMatches),
		logger.Int("fallback", stats.FallbackMatches),
		logger.Float64("average_score", stats.AverageScore),
		logger.Bool("dry_run", cmd.DryRun),
		logger.Latency(stats.Duration),
	)

	return &RunMatchingResult{
		RunID:      runID,
		Matches:    matches,
		Preferred:  outcome.Preferred,
		Ineligible: outcome.Ineligible,
		Issues:     issues,
		Stats:      stats,
	}, nil
}

// Compute scores and matches already normalised users with the handler's
// policy and feature flags, as Handle does. It touches no storage and is
// deterministic for the same input.
func (h *RunMatchingHandler) Compute(ctx context.Context, users []matching.User, preferred []matching.PreferredPair) (*Outcome, error) {
	policy, parallel := h.runPolicy(nil)
	return h.compute(ctx, policy, parallel, users, preferred)
}

// runPolicy applies feature flags on top of the configured policy.
func (h *RunMatchingHandler) runPolicy(fctx *config.FeatureContext) (matching.Policy, bool) {
	policy := h.policy
	policy.FallbackEnabled = policy.FallbackEnabled && h.features.IsEnabled(config.FeatureFallbackPass, fctx)
	return policy, h.features.IsEnabled(config.FeatureParallelScoring, fctx)
}

func (h *RunMatchingHandler) load(ctx context.Context, batch shared.BatchID) ([]matching.RawUser, []matching.PreferredPair, error) {
	ctx, span := tracing.Tracer().Start(ctx, "matching.load")
	defer span.End()

	raw, err := h.userRepo.ListSubmitted(ctx, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}
	preferred, err := h.userRepo.ListPreferredPairs(ctx, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("load preferred pairs: %w", err)
	}

	span.SetAttributes(attribute.Int("users", len(raw)), attribute.Int("preferred_pairs", len(preferred)))
	return raw, preferred, nil
}

// normalize converts raw users and logs every malformed response as a
// data-quality warning. Such responses are dropped, the user stays.
func (h *RunMatchingHandler) normalize(ctx context.Context, raw []matching.RawUser) ([]matching.User, []matching.Issue) {
	log := logger.FromContext(ctx)

	users := make([]matching.User, 0, len(raw))
	var issues []matching.Issue
	for _, r := range raw {
		u, userIssues := h.normalizer.NormalizeUser(r)
		for _, is := range userIssues {
			log.Warn("malformed questionnaire response excluded",
				logger.UserID(is.UserID.String()),
				logger.QuestionID(is.QuestionID),
				logger.Err(is.Err),
			)
		}
		issues = append(issues, userIssues...)
		users = append(users, u)
	}
	return users, issues
}

type candidate struct {
	a, b int
}

func (h *RunMatchingHandler) compute(
	ctx context.Context,
	policy matching.Policy,
	parallel bool,
	users []matching.User,
	preferred []matching.PreferredPair,
) (*Outcome, error) {
	ctx, span := tracing.Tracer().Start(ctx, "matching.compute")
	defer span.End()

	var stats matching.Stats

	pool, ineligible := h.filter.Pool(users)
	for _, in := range ineligible {
		stats.RecordIneligible(in.Reason)
	}
	stats.EligibleUsers = len(pool)

	bypass := make(map[matching.PairKey]bool, len(preferred))
	for _, p := range preferred {
		bypass[p.Key()] = true
	}

	// Hard filters. Pool is sorted by id so candidates come out in a fixed order.
	var candidates []candidate
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			stats.PairsConsidered++
			if bypass[matching.NewPairKey(pool[i].ID, pool[j].ID)] {
				stats.PreferredBypassed++
				continue
			}
			v := h.filter.Check(pool[i], pool[j])
			if !v.Eligible {
				stats.RecordFilter(v.Reason)
				continue
			}
			candidates = append(candidates, candidate{a: i, b: j})
		}
	}

	// Scoring. All pairs are scored before the matcher starts.
	aggregator := matching.NewAggregator(h.catalog, policy)
	scores, err := h.scoreAll(ctx, aggregator, pool, candidates, parallel)
	if err != nil {
		return nil, err
	}

	byPair := make(map[matching.PairKey]matching.PairScore)
	edges := make([]matching.MatchEdge, 0, len(scores))
	for _, ps := range scores {
		stats.EdgesEvaluated++
		switch {
		case ps.HardFiltered:
			stats.HardFiltered++
		case !aggregator.Passes(ps):
			stats.BelowThreshold++
		default:
			byPair[matching.NewPairKey(ps.UserA, ps.UserB)] = ps
			edges = append(edges, aggregator.Edge(ps))
		}
	}
	stats.EdgesKept = len(edges)

	ids := make([]matching.UserID, len(pool))
	for i, u := range pool {
		ids[i] = u.ID
	}

	_, mspan := tracing.Tracer().Start(ctx, "matching.blossom")
	set, err := matching.NewMatcher(policy).Match(ids, edges)
	mspan.SetAttributes(attribute.Int("vertices", len(ids)), attribute.Int("edges", len(edges)))
	if err != nil {
		mspan.RecordError(err)
		mspan.SetStatus(codes.Error, "blossom")
		mspan.End()
		return nil, err
	}
	mspan.End()

	outcome := &Outcome{
		Set:        set,
		Scores:     byPair,
		Ineligible: ineligible,
		Preferred:  preferred,
	}

	matchScores := make([]float64, 0, set.Len())
	for _, e := range set.All() {
		matchScores = append(matchScores, outcome.ScoreOf(e))
	}
	stats.RecordMatches(set, matchScores)
	outcome.Stats = stats

	span.SetAttributes(attribute.Int("candidates", len(candidates)), attribute.Int("matches", set.Len()))
	return outcome, nil
}

// scoreAll scores candidate pairs. Each worker writes only its own slots,
// so the result order does not depend on scheduling.
func (h *RunMatchingHandler) scoreAll(
	ctx context.Context,
	aggregator *matching.Aggregator,
	pool []matching.User,
	candidates []candidate,
	parallel bool,
) ([]matching.PairScore, error) {
	out := make([]matching.PairScore, len(candidates))

	if !parallel || h.concurrency <= 1 || len(candidates) < 2*h.concurrency {
		for i, c := range candidates {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			out[i] = aggregator.Pair(pool[c.a], pool[c.b])
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	chunk := (len(candidates) + h.concurrency - 1) / h.concurrency
	for start := 0; start < len(candidates); start += chunk {
		start, end := start, min(start+chunk, len(candidates))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				c := candidates[i]
				out[i] = aggregator.Pair(pool[c.a], pool[c.b])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *RunMatchingHandler) buildMatches(batch shared.BatchID, outcome *Outcome, at time.Time) []matching.Match {
	matches := make([]matching.Match, 0, outcome.Set.Len())
	add := func(edges []matching.MatchEdge, source matching.MatchSource) {
		for _, e := range edges {
			matches = append(matches, matching.Match{
				ID:        uuid.NewString(),
				BatchID:   batch,
				UserA:     e.UserA,
				UserB:     e.UserB,
				Score:     outcome.ScoreOf(e),
				Source:    source,
				CreatedAt: at,
			})
		}
	}
	add(outcome.Set.Primary, matching.MatchSourcePrimary)
	add(outcome.Set.Fallback, matching.MatchSourceFallback)
	return matches
}

func (h *RunMatchingHandler) persist(ctx context.Context, batch shared.BatchID, matches []matching.Match) error {
	ctx, span := tracing.Tracer().Start(ctx, "matching.persist")
	defer span.End()
	span.SetAttributes(attribute.Int("matches", len(matches)))

	log := logger.FromContext(ctx)
	r := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(50*time.Millisecond),
		retry.WithRetryIf(func(err error) bool { return retry.IsRetryable(err) || shared.IsRetryable(err) }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("replace batch failed, retrying",
				logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		}),
	)
	if err := r.Do(ctx, func(ctx context.Context) error {
		return h.matchRepo.ReplaceBatch(ctx, batch, matches)
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("replace matches: %w", err)
	}
	return nil
}

// recordRun stores run stats. Failures here do not fail the run: the matches
// are already committed.
func (h *RunMatchingHandler) recordRun(ctx context.Context, stats matching.Stats, fctx *config.FeatureContext) {
	log := logger.FromContext(ctx)

	if h.runRepo != nil {
		if err := retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
			return h.runRepo.Save(ctx, stats)
		}); err != nil {
			log.Error("failed to save run stats", logger.Err(err))
		}
	}

	if h.cache != nil && h.features.IsEnabled(config.FeatureStatsCache, fctx) {
		if err := h.cache.Put(ctx, stats); err != nil {
			log.Warn("failed to cache run stats", logger.Err(err))
		}
	}
}

func isRunInProgress(err error) bool {
	return errors.Is(err, shared.ErrRunInProgress)
}

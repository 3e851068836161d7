package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RunRepository implements matching.RunRepository for PostgreSQL.
// The full stats document is kept as JSONB; a few columns are lifted out for
// listing without decoding.
type RunRepository struct {
	conn *Connection
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(conn *Connection) *RunRepository {
	return &RunRepository{conn: conn}
}

// Save appends a run to the journal.
func (r *RunRepository) Save(ctx context.Context, stats matching.Stats) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO match_runs (id, batch_id, started_at, duration_ms, final_matches, stats)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, stats.RunID, stats.BatchID, stats.StartedAt, stats.Duration.Milliseconds(), stats.FinalMatches, doc)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "SaveRun", shared.ErrAlreadyExists, "run already recorded", err)
		}
		return fmt.Errorf("failed to save run: %w", classify(err))
	}

	return nil
}

// Latest returns the most recent run of a batch.
func (r *RunRepository) Latest(ctx context.Context, batch shared.BatchID) (*matching.Stats, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var doc []byte
	err := r.conn.QueryRow(ctx, `
		SELECT stats FROM match_runs
		WHERE batch_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, batch.String()).Scan(&doc)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load latest run: %w", classify(err))
	}

	var stats matching.Stats
	if err := json.Unmarshal(doc, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode run stats: %w", err)
	}
	return &stats, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements matching.MatchRepository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

var matchColumns = []string{"id", "batch_id", "user_a", "user_b", "score", "source", "created_at"}

// ReplaceBatch deletes the batch's matches and copies the new set in one
// transaction. Readers see either the old set or the new one.
func (r *MatchRepository) ReplaceBatch(ctx context.Context, batch shared.BatchID, matches []matching.Match) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		// Serialise concurrent replacements of the same batch.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, batch.String()); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE batch_id = $1`, batch.String()); err != nil {
			return fmt.Errorf("failed to delete old matches: %w", err)
		}

		if len(matches) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(matches))
		for _, m := range matches {
			a, b := shared.OrderedPair(m.UserA, m.UserB)
			rows = append(rows, []any{
				m.ID, batch.String(), a.String(), b.String(), m.Score, string(m.Source), m.CreatedAt,
			})
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"matches"}, matchColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy matches: %w", err)
		}
		if int(n) != len(matches) {
			return fmt.Errorf("copied %d of %d matches", n, len(matches))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace batch %s: %w", batch, classify(err))
	}

	return nil
}

// ListByUser returns a user's matches in a batch, best score first.
func (r *MatchRepository) ListByUser(ctx context.Context, batch shared.BatchID, user matching.UserID, page shared.Pagination) ([]matching.Match, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, batch_id, user_a, user_b, score, source, created_at
		FROM matches
		WHERE batch_id = $1 AND (user_a = $2 OR user_b = $2)
		ORDER BY score DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.conn.Query(ctx, query, batch.String(), user.String(), page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", classify(err))
	}
	defer rows.Close()

	var out []matching.Match
	for rows.Next() {
		var (
			m         matching.Match
			batchID   string
			a, b      string
			source    string
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &batchID, &a, &b, &m.Score, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.BatchID = shared.BatchID(batchID)
		m.UserA = matching.UserID(a)
		m.UserB = matching.UserID(b)
		m.Source = matching.MatchSource(source)
		m.CreatedAt = createdAt
		out = append(out, m)
	}

	return out, rows.Err()
}

// CountByBatch returns the number of matches in a batch.
func (r *MatchRepository) CountByBatch(ctx context.Context, batch shared.BatchID) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM matches WHERE batch_id = $1`, batch.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", classify(err))
	}
	return n, nil
}

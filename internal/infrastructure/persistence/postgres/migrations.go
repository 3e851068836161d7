package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", classify(err))
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", classify(err))
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
// Returns the number of migrations applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %w", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}

	return count, nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), lastVersion)
		return err
	})
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_matches", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS AND QUESTIONNAIRES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Users taking part in a batch. Profile fields feed the hard filters.
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) NOT NULL,
    batch_id VARCHAR(64) NOT NULL,
    gender VARCHAR(32) NOT NULL DEFAULT '',
    gender_preferences TEXT[] NOT NULL DEFAULT '{}',
    age INTEGER NOT NULL DEFAULT 0,
    age_min INTEGER,
    age_max INTEGER,
    campus VARCHAR(64) NOT NULL DEFAULT '',
    cross_campus BOOLEAN NOT NULL DEFAULT FALSE,
    submitted_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (batch_id, id),
    CONSTRAINT valid_age CHECK (age >= 0 AND age <= 120),
    CONSTRAINT valid_age_range CHECK (age_min IS NULL OR age_max IS NULL OR age_min <= age_max)
);

CREATE INDEX IF NOT EXISTS idx_users_batch_submitted ON users(batch_id, id) WHERE submitted_at IS NOT NULL;

-- One row per answered question. answer and preference are stored already
-- decrypted; their shape depends on the question type.
CREATE TABLE IF NOT EXISTS questionnaire_responses (
    batch_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(64) NOT NULL,
    question_id VARCHAR(64) NOT NULL,
    answer JSONB,
    preference JSONB,
    importance SMALLINT NOT NULL DEFAULT 3,
    dealbreaker BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (batch_id, user_id, question_id),
    FOREIGN KEY (batch_id, user_id) REFERENCES users(batch_id, id) ON DELETE CASCADE
);

-- Pairs assigned by hand before the run.
CREATE TABLE IF NOT EXISTS preferred_pairs (
    batch_id VARCHAR(64) NOT NULL,
    user_a VARCHAR(64) NOT NULL,
    user_b VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (batch_id, user_a, user_b),
    CONSTRAINT ordered_pair CHECK (user_a < user_b)
);
`

const migration001Down = `
DROP TABLE IF EXISTS preferred_pairs;
DROP TABLE IF EXISTS questionnaire_responses;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MATCHES AND RUN JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS matches (
    id UUID PRIMARY KEY,
    batch_id VARCHAR(64) NOT NULL,
    user_a VARCHAR(64) NOT NULL,
    user_b VARCHAR(64) NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    source VARCHAR(16) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT ordered_pair CHECK (user_a < user_b),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 100),
    CONSTRAINT valid_source CHECK (source IN ('primary', 'fallback')),
    CONSTRAINT unique_pair UNIQUE (batch_id, user_a, user_b)
);

CREATE INDEX IF NOT EXISTS idx_matches_batch_user_a ON matches(batch_id, user_a, score DESC);
CREATE INDEX IF NOT EXISTS idx_matches_batch_user_b ON matches(batch_id, user_b, score DESC);

CREATE TABLE IF NOT EXISTS match_runs (
    id UUID PRIMARY KEY,
    batch_id VARCHAR(64) NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    final_matches INTEGER NOT NULL DEFAULT 0,
    stats JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_runs_batch_started ON match_runs(batch_id, started_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS match_runs;
DROP TABLE IF EXISTS matches;
`

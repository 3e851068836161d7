package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-cupid/matchmaker/internal/domain/matching"
	"github.com/campus-cupid/matchmaker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements matching.UserRepository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// ListSubmitted loads submitted users of a batch with their responses.
// Both reads run in one snapshot so a late submission cannot split a user.
func (r *UserRepository) ListSubmitted(ctx context.Context, batch shared.BatchID) ([]matching.RawUser, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var users []matching.RawUser
	err := r.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		var err error
		users, err = r.listUsers(ctx, tx, batch)
		if err != nil {
			return err
		}
		return r.attachResponses(ctx, tx, batch, users)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submitted users: %w", classify(err))
	}

	return users, nil
}

func (r *UserRepository) listUsers(ctx context.Context, q Querier, batch shared.BatchID) ([]matching.RawUser, error) {
	query := `
		SELECT id, gender, gender_preferences, age, age_min, age_max,
			   campus, cross_campus, submitted_at
		FROM users
		WHERE batch_id = $1 AND submitted_at IS NOT NULL
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, batch.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []matching.RawUser
	for rows.Next() {
		var (
			u           matching.RawUser
			id          string
			ageMin      *int
			ageMax      *int
			submittedAt *time.Time
		)
		if err := rows.Scan(
			&id, &u.Gender, &u.GenderPreferences, &u.Age, &ageMin, &ageMax,
			&u.Campus, &u.CrossCampus, &submittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = matching.UserID(id)
		u.SubmittedAt = submittedAt
		u.AgeRange = ageRange(ageMin, ageMax)
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *UserRepository) attachResponses(ctx context.Context, q Querier, batch shared.BatchID, users []matching.RawUser) error {
	if len(users) == 0 {
		return nil
	}

	index := make(map[matching.UserID]int, len(users))
	for i, u := range users {
		index[u.ID] = i
	}

	query := `
		SELECT user_id, question_id, answer, preference, importance, dealbreaker
		FROM questionnaire_responses
		WHERE batch_id = $1
		ORDER BY user_id, question_id
	`

	rows, err := q.Query(ctx, query, batch.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID     string
			resp       matching.RawResponse
			answer     []byte
			preference []byte
		)
		if err := rows.Scan(&userID, &resp.QuestionID, &answer, &preference, &resp.Importance, &resp.Dealbreaker); err != nil {
			return fmt.Errorf("failed to scan response: %w", err)
		}

		i, ok := index[matching.UserID(userID)]
		if !ok {
			// Responses of an unsubmitted questionnaire.
			continue
		}
		resp.Answer = json.RawMessage(answer)
		resp.Preference = json.RawMessage(preference)
		users[i].Responses = append(users[i].Responses, resp)
	}

	return rows.Err()
}

// ListPreferredPairs returns hand-assigned pairs of a batch.
func (r *UserRepository) ListPreferredPairs(ctx context.Context, batch shared.BatchID) ([]matching.PreferredPair, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT user_a, user_b
		FROM preferred_pairs
		WHERE batch_id = $1
		ORDER BY user_a, user_b
	`, batch.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list preferred pairs: %w", classify(err))
	}
	defer rows.Close()

	var pairs []matching.PreferredPair
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("failed to scan preferred pair: %w", err)
		}
		pairs = append(pairs, matching.PreferredPair{UserA: matching.UserID(a), UserB: matching.UserID(b)})
	}

	return pairs, rows.Err()
}

func ageRange(lo, hi *int) *matching.Range {
	if lo == nil && hi == nil {
		return nil
	}
	r := matching.Range{Min: 0, Max: matching.MaxAge}
	if lo != nil {
		r.Min = *lo
	}
	if hi != nil {
		r.Max = *hi
	}
	return &r
}

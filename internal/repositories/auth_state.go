package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/shared"
)

// AuthStateRepository persists [models.AuthState] values in the auth_states table.
//
// Timestamps are stored as unix milliseconds so expiry comparisons happen in SQL.
type AuthStateRepository struct {
	db *sql.DB
}

// NewAuthStateRepository creates a new [AuthStateRepository] with the given database connection
func NewAuthStateRepository(db *sql.DB) *AuthStateRepository {
	return &AuthStateRepository{db: db}
}

// Issue inserts a new state with generated ID and sequence
func (r *AuthStateRepository) Issue(ctx context.Context, state *models.AuthState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "auth_states")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO auth_states (id, sequence, session_id, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id,
		sequence,
		state.SessionID(),
		state.Value(),
		state.CreatedAt().UnixMilli(),
		state.ExpiresAt().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth state: %w", err)
	}

	state.SetID(id)
	state.SetSequence(sequence)
	return nil
}

// Consume marks the state as used.
//
// It fails with [shared.ErrNotFound] unless value was issued to sessionID, has not been consumed, and has not expired at now.
// The check and the write are a single UPDATE, so two concurrent callbacks cannot both succeed.
func (r *AuthStateRepository) Consume(ctx context.Context, sessionID, value string, now time.Time) error {
	query := `
		UPDATE auth_states
		SET consumed_at = ?
		WHERE session_id = ? AND value = ? AND consumed_at IS NULL AND expires_at > ?
	`

	ms := now.UnixMilli()
	result, err := r.db.ExecContext(ctx, query, ms, sessionID, value, ms)
	if err != nil {
		return fmt.Errorf("failed to consume auth state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: auth state for session %s", shared.ErrNotFound, sessionID)
	}

	return nil
}

// Get retrieves a state by its value
func (r *AuthStateRepository) Get(ctx context.Context, value string) (*models.AuthState, error) {
	query := `
		SELECT id, sequence, session_id, value, created_at, expires_at, consumed_at
		FROM auth_states
		WHERE value = ?
	`

	var (
		id         string
		sequence   int
		sessionID  string
		stateValue string
		createdAt  int64
		expiresAt  int64
		consumedAt sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&id, &sequence, &sessionID, &stateValue, &createdAt, &expiresAt, &consumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: auth state", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auth state: %w", err)
	}

	created := time.UnixMilli(createdAt)
	state := models.NewAuthState(sessionID, stateValue, created, time.UnixMilli(expiresAt).Sub(created))
	state.SetID(id)
	state.SetSequence(sequence)
	if consumedAt.Valid {
		t := time.UnixMilli(consumedAt.Int64)
		state.SetConsumedAt(&t)
	}

	return state, nil
}

// Prune deletes states that have expired or been consumed at now and returns how many were removed.
func (r *AuthStateRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM auth_states WHERE expires_at <= ? OR consumed_at IS NOT NULL",
		now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune auth states: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

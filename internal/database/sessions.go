package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/google/uuid"
)

// SessionRepository stores conversation contexts in the chat_sessions
// table. Each session is one row; a user's live session is the one with
// the latest interaction.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID              uuid.UUID `db:"id"`
	Context         []byte    `db:"context"`
	Version         int64     `db:"version"`
	LastInteraction time.Time `db:"last_interaction"`
}

// Load returns the user's most recent session
func (r *SessionRepository) Load(ctx context.Context, userID string) (*models.StoredContext, error) {
	query := `
		SELECT id, context, version, last_interaction
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY last_interaction DESC
		LIMIT 1
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrContextNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return &models.StoredContext{
		SessionID:       row.ID,
		Payload:         row.Context,
		Version:         row.Version,
		LastInteraction: row.LastInteraction,
	}, nil
}

// Persist inserts a new session when expectedVersion is 0 and otherwise
// updates the session only if its version is unchanged.
func (r *SessionRepository) Persist(ctx context.Context, userID string, sessionID uuid.UUID, payload []byte, lastInteraction time.Time, expectedVersion int64) (int64, error) {
	if expectedVersion == 0 {
		query := `
			INSERT INTO chat_sessions (id, user_id, context, version, created_at, last_interaction)
			VALUES ($1, $2, $3, 1, $4, $4)
			ON CONFLICT (id) DO NOTHING
		`
		res, err := r.db.ExecContext(ctx, query, sessionID, userID, payload, lastInteraction)
		if err != nil {
			return 0, fmt.Errorf("failed to create session: %w", err)
		}
		return 1, expectOneRow(res)
	}

	query := `
		UPDATE chat_sessions
		SET context = $3, version = version + 1, last_interaction = $4
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, query, sessionID, expectedVersion, payload, lastInteraction)
	if err != nil {
		return 0, fmt.Errorf("failed to update session: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

// DeleteExpired removes sessions idle since before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE last_interaction < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrVersionConflict
	}
	return nil
}

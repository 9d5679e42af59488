package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ChatHistoryRepository handles chat history database operations
type ChatHistoryRepository struct {
	db *DB
}

// NewChatHistoryRepository creates a new chat history repository
func NewChatHistoryRepository(db *DB) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: db}
}

// SaveChatHistory inserts a turn. Saving the same turn twice is a no-op so
// redelivered queue messages are harmless.
func (r *ChatHistoryRepository) SaveChatHistory(ctx context.Context, turn *models.ChatTurn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var params []byte
	if turn.Parameters != nil {
		var err error
		params, err = json.Marshal(turn.Parameters)
		if err != nil {
			return fmt.Errorf("failed to marshal parameters: %w", err)
		}
	}

	query := `
		INSERT INTO chat_history (id, user_id, session_id, user_message, assistant_message, outcome, parameters, shown_vehicle_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.ID,
		turn.UserID,
		turn.SessionID,
		turn.UserMessage,
		turn.AssistantMessage,
		string(turn.Outcome),
		params,
		pq.Array(nonNilIDs(turn.ShownVehicleIDs)),
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent turns, newest first
func (r *ChatHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ChatTurn, error) {
	query := `
		SELECT id, user_id, session_id, user_message, assistant_message, outcome, parameters, shown_vehicle_ids, created_at
		FROM chat_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []*models.ChatTurn
	for rows.Next() {
		var (
			turn    models.ChatTurn
			outcome string
			params  []byte
			shown   pq.Int64Array
		)
		if err := rows.Scan(
			&turn.ID,
			&turn.UserID,
			&turn.SessionID,
			&turn.UserMessage,
			&turn.AssistantMessage,
			&outcome,
			&params,
			&shown,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat history: %w", err)
		}
		turn.Outcome = models.TurnOutcome(outcome)
		turn.ShownVehicleIDs = []int64(shown)
		if len(params) > 0 {
			var c models.Criteria
			if err := json.Unmarshal(params, &c); err != nil {
				return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
			}
			turn.Parameters = &c
		}
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat history: %w", err)
	}
	return turns, nil
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

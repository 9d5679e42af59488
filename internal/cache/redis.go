// Package cache holds the Redis-backed pieces of the service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const contextKeyPrefix = "chat:ctx:"

// NewClient connects to Redis and verifies the connection
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type envelope struct {
	SessionID       uuid.UUID       `json:"session_id"`
	Version         int64           `json:"version"`
	LastInteraction time.Time       `json:"last_interaction"`
	Context         json.RawMessage `json:"context"`
}

// ContextRepository keeps one conversation context per user under
// chat:ctx:<user>, expiring after the session idle window.
type ContextRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContextRepository creates a Redis context repository. Keys expire
// after ttl without a write.
func NewContextRepository(client *redis.Client, ttl time.Duration) *ContextRepository {
	return &ContextRepository{client: client, ttl: ttl}
}

func contextKey(userID string) string {
	return contextKeyPrefix + userID
}

// Load returns the user's stored context
func (r *ContextRepository) Load(ctx context.Context, userID string) (*models.StoredContext, error) {
	raw, err := r.client.Get(ctx, contextKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrContextNotFound
		}
		return nil, fmt.Errorf("failed to load context: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode context envelope: %w", err)
	}
	return &models.StoredContext{
		SessionID:       env.SessionID,
		Payload:         env.Context,
		Version:         env.Version,
		LastInteraction: env.LastInteraction,
	}, nil
}

// Persist writes the context under WATCH so a concurrent writer makes the
// transaction fail instead of being overwritten.
func (r *ContextRepository) Persist(ctx context.Context, userID string, sessionID uuid.UUID, payload []byte, lastInteraction time.Time, expectedVersion int64) (int64, error) {
	key := contextKey(userID)
	newVersion := expectedVersion + 1

	data, err := json.Marshal(envelope{
		SessionID:       sessionID,
		Version:         newVersion,
		LastInteraction: lastInteraction,
		Context:         payload,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode context envelope: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		if expectedVersion != 0 {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return models.ErrVersionConflict
			}
			if err != nil {
				return err
			}
			var current envelope
			if err := json.Unmarshal(raw, &current); err != nil {
				return models.ErrVersionConflict
			}
			if current.SessionID != sessionID || current.Version != expectedVersion {
				return models.ErrVersionConflict
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, models.ErrVersionConflict) || errors.Is(err, redis.TxFailedErr) {
			return 0, models.ErrVersionConflict
		}
		return 0, fmt.Errorf("failed to persist context: %w", err)
	}
	return newVersion, nil
}

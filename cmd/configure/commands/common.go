package commands

import (
	"fmt"
	"os"

	"github.com/benvon/smart-autotrader/internal/cache"
	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/benvon/smart-autotrader/internal/services/conversation"
)

// withDatabase loads configuration, connects to postgres and runs fn
func withDatabase(fn func(cfg *config.Config, db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	return fn(cfg, db)
}

// contextRepository opens the session store the server is configured with.
// The returned func releases any extra connection.
func contextRepository(cfg *config.Config, db *database.DB) (conversation.ContextRepository, func(), error) {
	if cfg.ContextStore != config.ContextStoreRedis {
		return database.NewSessionRepository(db), func() {}, nil
	}
	client, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
		}
	}
	return cache.NewContextRepository(client, 2*cfg.SessionIdleTimeout), closeFn, nil
}

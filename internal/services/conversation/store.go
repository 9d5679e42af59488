// Package conversation runs chat turns against a per-user search session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a session may sit idle before the next
// message starts a new one.
const DefaultIdleTimeout = 30 * time.Minute

// ContextRepository persists serialized conversation contexts per user.
//
// Persist with expectedVersion 0 starts a new session and replaces whatever
// the user had. Any other expectedVersion must match the stored version of
// the same session, otherwise models.ErrVersionConflict is returned.
type ContextRepository interface {
	Load(ctx context.Context, userID string) (*models.StoredContext, error)
	Persist(ctx context.Context, userID string, sessionID uuid.UUID, payload []byte, lastInteraction time.Time, expectedVersion int64) (int64, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	IdleTimeout time.Duration
	// SelectModel picks the extractor model label for a new session.
	SelectModel func() string
	Now         func() time.Time
}

// Store loads and saves conversation contexts.
type Store struct {
	repo        ContextRepository
	idleTimeout time.Duration
	selectModel func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewStore creates a new context store.
func NewStore(repo ContextRepository, cfg StoreConfig, logger *zap.Logger) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SelectModel == nil {
		cfg.SelectModel = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:        repo,
		idleTimeout: cfg.IdleTimeout,
		selectModel: cfg.SelectModel,
		now:         cfg.Now,
		logger:      logger,
	}
}

// GetOrCreate returns the user's live session or a fresh one. It never
// fails: load errors, corrupt payloads and expired sessions all yield a new
// context.
func (s *Store) GetOrCreate(ctx context.Context, userID string) *models.ConversationContext {
	now := s.now()

	stored, err := s.repo.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrContextNotFound) {
			s.logger.Warn("context_load_failed", zap.String("user_id", logger.SanitizeUserID(userID)), zap.Error(err))
		}
		return s.fresh(userID, now)
	}

	if now.Sub(stored.LastInteraction) > s.idleTimeout {
		s.logger.Info("session_expired",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("session_id", stored.SessionID.String()),
			zap.Time("last_interaction", stored.LastInteraction))
		return s.fresh(userID, now)
	}

	var cc models.ConversationContext
	if err := json.Unmarshal(stored.Payload, &cc); err != nil {
		s.logger.Warn("context_decode_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("session_id", stored.SessionID.String()),
			zap.Error(err))
		// Keep the stored identity so the next save overwrites the corrupt payload.
		replacement := s.fresh(userID, now)
		replacement.SessionID = stored.SessionID
		replacement.Version = stored.Version
		return replacement
	}

	cc.SessionID = stored.SessionID
	cc.UserID = userID
	cc.Version = stored.Version
	if cc.LastInteraction.IsZero() {
		cc.LastInteraction = stored.LastInteraction
	}
	return &cc
}

// Save stamps the interaction time and persists cc. On success cc carries
// the new version. A lost race is returned as models.ErrVersionConflict.
func (s *Store) Save(ctx context.Context, userID string, cc *models.ConversationContext) error {
	cc.LastInteraction = s.now()
	payload, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	version, err := s.repo.Persist(ctx, userID, cc.SessionID, payload, cc.LastInteraction, cc.Version)
	if err != nil {
		return fmt.Errorf("failed to persist context: %w", err)
	}
	cc.Version = version
	return nil
}

// Reset starts and persists a new empty session for userID.
func (s *Store) Reset(ctx context.Context, userID string) (*models.ConversationContext, error) {
	cc := s.fresh(userID, s.now())
	if err := s.Save(ctx, userID, cc); err != nil {
		return nil, err
	}
	s.logger.Info("session_reset", zap.String("user_id", logger.SanitizeUserID(userID)), zap.String("session_id", cc.SessionID.String()))
	return cc, nil
}

func (s *Store) fresh(userID string, now time.Time) *models.ConversationContext {
	return models.NewConversationContext(userID, s.selectModel(), now)
}

// MemoryRepository is an in-process ContextRepository.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]models.StoredContext
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]models.StoredContext)}
}

// Load returns a copy of the user's stored context.
func (m *MemoryRepository) Load(_ context.Context, userID string) (*models.StoredContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return nil, models.ErrContextNotFound
	}
	out := e
	out.Payload = append([]byte(nil), e.Payload...)
	return &out, nil
}

// Persist stores payload with an optimistic version check.
func (m *MemoryRepository) Persist(_ context.Context, userID string, sessionID uuid.UUID, payload []byte, lastInteraction time.Time, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if expectedVersion != 0 {
		if !ok || e.SessionID != sessionID || e.Version != expectedVersion {
			return 0, models.ErrVersionConflict
		}
	}

	version := expectedVersion + 1
	m.entries[userID] = models.StoredContext{
		SessionID:       sessionID,
		Payload:         append([]byte(nil), payload...),
		Version:         version,
		LastInteraction: lastInteraction,
	}
	return version, nil
}

// Put replaces the raw stored entry for userID.
func (m *MemoryRepository) Put(userID string, stored models.StoredContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = stored
}

package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSTTL is how long a fetched key set is reused
const DefaultJWKSTTL = time.Hour

type jwksEntry struct {
	keys    jwk.Set
	expires time.Time
}

// JWKSManager fetches and caches key sets per JWKS URL
type JWKSManager struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]jwksEntry
}

// NewJWKSManager creates a new JWKS manager. A nil client gets a 10 second timeout.
func NewJWKSManager(client *http.Client, ttl time.Duration) *JWKSManager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	return &JWKSManager{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]jwksEntry),
	}
}

// GetJWKS retrieves the key set for jwksURL, with caching
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, ok := m.cache[jwksURL]
	m.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.keys, nil
	}

	keys, err := m.fetchJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.cache[jwksURL] = jwksEntry{keys: keys, expires: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return keys, nil
}

// Invalidate drops the cached key set so the next lookup refetches it
func (m *JWKSManager) Invalidate(jwksURL string) {
	m.mu.Lock()
	delete(m.cache, jwksURL)
	m.mu.Unlock()
}

func (m *JWKSManager) fetchJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return keys, nil
}

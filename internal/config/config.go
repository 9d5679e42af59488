package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Context store backends.
const (
	ContextStorePostgres = "postgres"
	ContextStoreRedis    = "redis"
)

// Extractor backends.
const (
	ExtractorHTTP   = "http"
	ExtractorOpenAI = "openai"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELInsecure     bool
	OTELSampleRatio  float64

	// Worker
	WorkerConcurrency      int
	SessionRetention       time.Duration
	SessionCleanupInterval time.Duration
	DLQRetention           time.Duration
	DLQGCInterval          time.Duration

	// Conversation state
	ContextStore       string
	SessionIdleTimeout time.Duration

	// Parameter extraction
	ExtractorBackend      string
	ExtractorURL          string
	ExtractorTimeout      time.Duration
	ExtractorClientID     string
	ExtractorClientSecret string
	ExtractorTokenURL     string
	OpenAIKey             string
	AIModel               string
	AIBaseURL             string
	AIModelMap            map[string]string
	ModelStrategy         string

	// Search and limits
	SearchLimit int
	RateLimit   string

	// Authentication
	AuthDisabled bool
	AuthIssuer   string
	AuthJWKSURL  string
	AuthAudience string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables always take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(lookup func(string) string) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		DatabaseURL:      e.get("DATABASE_URL", ""),
		ServerPort:       e.get("SERVER_PORT", "8080"),
		BaseURL:          e.get("BASE_URL", "http://localhost:8080"),
		FrontendURL:      e.get("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       e.getBool("ENABLE_HSTS", false),
		RedisURL:         e.get("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      e.get("RABBITMQ_URL", ""),
		RabbitMQPrefetch: e.getInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  e.getBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  e.getBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:     e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     e.getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio:  e.getFloat("OTEL_SAMPLE_RATIO", 1),

		WorkerConcurrency:      e.getInt("WORKER_CONCURRENCY", 1),
		SessionRetention:       e.getDuration("SESSION_RETENTION", 7*24*time.Hour),
		SessionCleanupInterval: e.getDuration("SESSION_CLEANUP_INTERVAL", time.Hour),
		DLQRetention:           e.getDuration("DLQ_RETENTION", 24*time.Hour),
		DLQGCInterval:          e.getDuration("DLQ_GC_INTERVAL", time.Hour),

		ContextStore:       strings.ToLower(e.get("CONTEXT_STORE", ContextStorePostgres)),
		SessionIdleTimeout: e.getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		ExtractorBackend:      strings.ToLower(e.get("EXTRACTOR_BACKEND", ExtractorHTTP)),
		ExtractorURL:          e.get("EXTRACTOR_URL", "http://localhost:5000"),
		ExtractorTimeout:      e.getDuration("EXTRACTOR_TIMEOUT", 30*time.Second),
		ExtractorClientID:     e.get("EXTRACTOR_CLIENT_ID", ""),
		ExtractorClientSecret: e.get("EXTRACTOR_CLIENT_SECRET", ""),
		ExtractorTokenURL:     e.get("EXTRACTOR_TOKEN_URL", ""),
		OpenAIKey:             e.get("OPENAI_API_KEY", ""),
		AIModel:               e.get("AI_MODEL", "gpt-4o-mini"),
		AIBaseURL:             e.get("AI_BASE_URL", ""),
		AIModelMap:            parseModelMap(e.get("AI_MODEL_MAP", "")),
		ModelStrategy:         strings.ToLower(e.get("MODEL_STRATEGY", "fixed")),

		SearchLimit: e.getInt("SEARCH_LIMIT", 20),
		RateLimit:   e.get("RATE_LIMIT", "60-M"),

		AuthDisabled: e.getBool("AUTH_DISABLED", false),
		AuthIssuer:   e.get("AUTH_ISSUER", ""),
		AuthJWKSURL:  e.get("AUTH_JWKS_URL", ""),
		AuthAudience: e.get("AUTH_AUDIENCE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.ContextStore {
	case ContextStorePostgres, ContextStoreRedis:
	default:
		return nil, fmt.Errorf("CONTEXT_STORE must be %q or %q, got %q", ContextStorePostgres, ContextStoreRedis, cfg.ContextStore)
	}

	switch cfg.ExtractorBackend {
	case ExtractorHTTP:
		if cfg.ExtractorURL == "" {
			return nil, fmt.Errorf("EXTRACTOR_URL is required when EXTRACTOR_BACKEND is %q", ExtractorHTTP)
		}
	case ExtractorOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EXTRACTOR_BACKEND is %q", ExtractorOpenAI)
		}
	default:
		return nil, fmt.Errorf("EXTRACTOR_BACKEND must be %q or %q, got %q", ExtractorHTTP, ExtractorOpenAI, cfg.ExtractorBackend)
	}

	// AUTH_JWKS_URL may be left empty; it is discovered from the issuer at startup
	if !cfg.AuthDisabled && cfg.AuthIssuer == "" {
		return nil, fmt.Errorf("AUTH_ISSUER is required unless AUTH_DISABLED is set")
	}

	if cfg.SessionIdleTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}

	if cfg.SessionRetention < cfg.SessionIdleTimeout {
		return nil, fmt.Errorf("SESSION_RETENTION must not be shorter than SESSION_IDLE_TIMEOUT")
	}

	return cfg, nil
}

// ModelLabels returns the configured strategy labels in a stable order.
// The default model is always reachable under the "default" label.
func (c *Config) ModelLabels() []string {
	labels := []string{"default"}
	for _, label := range slices.Sorted(maps.Keys(c.AIModelMap)) {
		if label != "default" {
			labels = append(labels, label)
		}
	}
	return labels
}

type env struct {
	lookup func(string) string
}

func (e env) get(key, defaultValue string) string {
	if value := e.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e.lookup(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value := e.lookup(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e env) getFloat(key string, defaultValue float64) float64 {
	if value := e.lookup(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("90s") or a bare number of seconds.
func (e env) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := e.lookup(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// parseModelMap parses "label=model,label2=model2".
func parseModelMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		label, model, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		model = strings.TrimSpace(model)
		if label == "" || model == "" {
			continue
		}
		out[label] = model
	}
	return out
}

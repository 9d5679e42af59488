package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/benvon/smart-autotrader/api/openapi"
	"github.com/benvon/smart-autotrader/internal/cache"
	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/benvon/smart-autotrader/internal/handlers"
	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/middleware"
	"github.com/benvon/smart-autotrader/internal/queue"
	"github.com/benvon/smart-autotrader/internal/services/clarify"
	"github.com/benvon/smart-autotrader/internal/services/conversation"
	"github.com/benvon/smart-autotrader/internal/services/extraction"
	"github.com/benvon/smart-autotrader/internal/services/oidc"
	"github.com/benvon/smart-autotrader/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "smart-autotrader-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including extractor prompts and responses")
	devFlag := flag.Bool("dev", false, "Use the human-readable console logger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(*devFlag, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("context_store", cfg.ContextStore),
		zap.String("extractor_backend", cfg.ExtractorBackend),
		zap.String("model_strategy", cfg.ModelStrategy),
		zap.Bool("auth_disabled", cfg.AuthDisabled),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
				ServiceName: serviceName,
				Endpoint:    cfg.OTELEndpoint,
				Insecure:    cfg.OTELInsecure,
				SampleRatio: cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracing = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Redis is required for the redis context store and optional otherwise;
	// without it rate limits are kept per process
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(cfg.RedisURL)
		switch {
		case err == nil:
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		case cfg.ContextStore == config.ContextStoreRedis:
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		default:
			zapLogger.Warn("redis_unavailable_using_local_rate_limits", zap.Error(err))
			redisClient = nil
		}
	}

	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectQueue(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	chatHistory := database.NewChatHistoryRepository(db)
	var history conversation.HistoryRecorder = chatHistory
	if jobQueue != nil {
		history = queue.NewHistoryPublisher(jobQueue)
	}

	var contextRepo conversation.ContextRepository
	switch cfg.ContextStore {
	case config.ContextStoreRedis:
		// Keys outlive the idle timeout so an expired session is still seen and restarted cleanly
		contextRepo = cache.NewContextRepository(redisClient, 2*cfg.SessionIdleTimeout)
	default:
		contextRepo = database.NewSessionRepository(db)
	}

	extractor, labels := newExtractor(cfg, zapLogger, debugMode)
	store := conversation.NewStore(contextRepo, conversation.StoreConfig{
		IdleTimeout: cfg.SessionIdleTimeout,
		SelectModel: extraction.NewStrategySelector(cfg.ModelStrategy, labels),
	}, zapLogger)
	chatService := conversation.NewService(
		store,
		extractor,
		database.NewVehicleRepository(db, cfg.SearchLimit),
		history,
		clarify.NewPolicy(clarify.DefaultCatalog()),
		conversation.ServiceConfig{ExtractionTimeout: cfg.ExtractorTimeout},
		zapLogger,
	)

	authMW, err := newAuth(context.Background(), cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_configure_auth", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	checks := map[string]handlers.CheckFunc{"database": db.HealthCheck}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if jobQueue != nil {
		checks["queue"] = jobQueue.HealthCheck
	}

	r := newRouter(routerDeps{
		chat:        handlers.NewChatHandler(chatService, store),
		history:     handlers.NewHistoryHandler(chatHistory),
		health:      handlers.NewHealthChecker(checks),
		openAPI:     handlers.NewOpenAPIHandler(openapi.Spec),
		auth:        authMW,
		rateLimit:   rateLimitMW,
		frontendURL: cfg.FrontendURL,
		enableHSTS:  cfg.EnableHSTS,
		tracing:     tracing,
		logger:      zapLogger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
		// Extraction can take most of the request timeout, so writes get headroom past it
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff to ride out broker startup
func connectQueue(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}

// newExtractor builds the configured extraction backend and the model labels
// sessions are pinned to. The HTTP service takes concrete model names; the
// in-process client resolves labels through AI_MODEL_MAP.
func newExtractor(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (extraction.Extractor, []string) {
	switch cfg.ExtractorBackend {
	case config.ExtractorOpenAI:
		return extraction.NewOpenAIExtractor(extraction.OpenAIExtractorConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			Models:    cfg.AIModelMap,
			Timeout:   cfg.ExtractorTimeout,
			DebugMode: debugMode,
		}, zapLogger), cfg.ModelLabels()
	default:
		var models []string
		for _, label := range slices.Sorted(maps.Keys(cfg.AIModelMap)) {
			models = append(models, cfg.AIModelMap[label])
		}
		return extraction.NewHTTPExtractor(extraction.HTTPExtractorConfig{
			BaseURL:      cfg.ExtractorURL,
			Timeout:      cfg.ExtractorTimeout,
			ClientID:     cfg.ExtractorClientID,
			ClientSecret: cfg.ExtractorClientSecret,
			TokenURL:     cfg.ExtractorTokenURL,
			DebugMode:    debugMode,
		}, zapLogger), models
	}
}

// newAuth returns bearer token verification against the configured issuer,
// or trusted user headers when auth is disabled for local development
func newAuth(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.AuthDisabled {
		zapLogger.Warn("auth_disabled_trusting_user_header", zap.String("header", middleware.DevUserHeader))
		return middleware.DevAuth(zapLogger), nil
	}

	client := &http.Client{Timeout: 10 * time.Second}
	jwksURL := cfg.AuthJWKSURL
	if jwksURL == "" {
		discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		d, err := oidc.Discover(discoverCtx, client, cfg.AuthIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
		}
		jwksURL = d.JWKSURI
	}
	zapLogger.Info("auth_configured", zap.String("issuer", cfg.AuthIssuer), zap.String("jwks_url", jwksURL))

	verifier := oidc.NewVerifier(oidc.NewJWKSManager(client, oidc.DefaultJWKSTTL), cfg.AuthIssuer, jwksURL, cfg.AuthAudience)
	return middleware.Auth(verifier, zapLogger), nil
}

package main

import (
	"net/http"

	"github.com/benvon/smart-autotrader/internal/handlers"
	"github.com/benvon/smart-autotrader/internal/middleware"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

type routerDeps struct {
	chat      *handlers.ChatHandler
	history   *handlers.HistoryHandler
	health    *handlers.HealthChecker
	openAPI   *handlers.OpenAPIHandler
	auth      func(http.Handler) http.Handler
	rateLimit func(http.Handler) http.Handler

	frontendURL string
	enableHSTS  bool
	tracing     bool
	logger      *zap.Logger
}

// newRouter assembles routes and the middleware chain. CORS wraps the router
// itself so preflight requests are answered before route matching.
func newRouter(d routerDeps) http.Handler {
	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first registered outermost
	if d.tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(d.enableHSTS))
	r.Use(middleware.Logging(d.logger))
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	d.openAPI.RegisterRoutes(r)

	chatRouter := r.PathPrefix("/api/v1/chat").Subrouter()
	chatRouter.Use(d.auth)
	chatRouter.Use(d.rateLimit)
	d.chat.RegisterRoutes(chatRouter)
	d.history.RegisterRoutes(chatRouter)

	return middleware.CORSFromEnv(d.frontendURL)(r)
}

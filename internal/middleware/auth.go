package middleware

import (
	"context"
	"net/http"
	"strings"

	logpkg "github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/request"
	"go.uber.org/zap"
)

// DevUserHeader carries the caller's user id when authentication is disabled
const DevUserHeader = "X-User-ID"

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Auth validates the bearer token and attaches its subject as the request's user id
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Info("token_verification_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)))
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), claims.UserID())))
		})
	}
}

// DevAuth trusts the X-User-ID header. Only for local development with AUTH_DISABLED.
func DevAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(DevUserHeader))
			if userID == "" || len(userID) > logpkg.MaxUserIDLength {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing "+DevUserHeader+" header", logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), userID)))
		})
	}
}

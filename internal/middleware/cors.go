package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

// CORS handles CORS headers and OPTIONS preflight requests for the given origins
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", DevUserHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}

// CORSFromEnv parses FRONTEND_URL (comma-separated origins). http://localhost:3000 is always allowed.
func CORSFromEnv(frontendURL string) func(http.Handler) http.Handler {
	return CORS(parseOrigins(frontendURL))
}

func parseOrigins(frontendURL string) []string {
	origins := []string{"http://localhost:3000"}
	for _, origin := range strings.Split(frontendURL, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" && !slices.Contains(origins, origin) {
			origins = append(origins, origin)
		}
	}
	return origins
}

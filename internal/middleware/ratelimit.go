package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/smart-autotrader/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRateLimit allows 60 requests per minute
const DefaultRateLimit = "60-M"

// RateLimit limits requests per user, falling back to client IP for
// unauthenticated routes. A nil redis client keeps counters in process memory.
func RateLimit(redisClient *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRateLimit
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "chat:ratelimit"})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	mw := stdlibmw.NewMiddleware(limiter.New(store, parsed), stdlibmw.WithKeyGetter(rateLimitKey))
	return mw.Handler, nil
}

func rateLimitKey(r *http.Request) string {
	if userID := request.UserIDFromContext(r); userID != "" {
		return "user:" + userID
	}
	return "ip:" + request.ClientIP(r)
}

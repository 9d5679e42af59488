// Package request holds per-request values shared by middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey int

const userKey ctxKey = iota

// ClientIP returns the caller address used for rate-limit keys and audit
// logs. The first X-Forwarded-For hop wins, then X-Real-IP, then the
// connection's remote host without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithUserID attaches the authenticated subject that owns the chat session.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the subject stored by WithUserID.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey).(string)
	return id, ok && id != ""
}

// UserIDFromContext is UserID for handlers holding the request; "" when unauthenticated.
func UserIDFromContext(r *http.Request) string {
	id, _ := UserID(r.Context())
	return id
}

package ratelimit

import (
	"context"
	"net/http"
	"strings"
)

type userIDKey struct{}

// WithUserID marks ctx as belonging to an authenticated user, which then
// takes precedence over the client address as the rate limit partition.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// ClientIdentity resolves the rate limit partition key for r: the
// authenticated user, else the first X-Forwarded-For entry, else X-Real-IP,
// else "unknown".
func ClientIdentity(r *http.Request) string {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return "user:" + id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return "unknown"
}

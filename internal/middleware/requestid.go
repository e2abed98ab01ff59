package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID attaches the correlation id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the correlation id stored by RequestID.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// NewRequestID returns a time based id. Two requests within the same
// millisecond get the same id; nothing downstream depends on uniqueness.
func NewRequestID(now time.Time) string {
	return "req-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// RequestID reads X-Request-ID from the inbound request, generating one
// when it is absent, and stores it in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = NewRequestID(time.Now())
		}

		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

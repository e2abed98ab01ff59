package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AccessLog writes one line per request once the handler returns.
func AccessLog(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := newResponseRecorder(w)

			next.ServeHTTP(rr, r)

			requestID, _ := RequestIDFrom(r.Context())
			logger.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rr.status,
				"duration", time.Since(start),
				"request_id", requestID,
			)
		})
	}
}

// Recover turns a handler panic into a 500 so one bad request never takes
// the process down.
func Recover(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Errorw("handler panic", "path", r.URL.Path, "panic", v, zap.Stack("stack"))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenithdesk/chord/internal/shared"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns a v4 UUID to each request that doesn't already carry one.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = shared.GenerateID()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs one line per request with method, path, and duration.
//
// Query strings are deliberately not logged: the callback request carries the
// one-time authorization code and state token.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", w.Header().Get(requestIDHeader),
				"duration", time.Since(start))
		})
	}
}

package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/crmbridge/crmbridge/internal/domain/auth"
	"github.com/crmbridge/crmbridge/internal/ctxkey"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// LoggerKey is the context key for the request-scoped logger.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDMiddleware extracts or generates a request ID and stores an
// enriched logger in the request context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enriched)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// logFromContext retrieves the request-scoped logger, falling back to the
// transport logger.
func logFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// AuthMiddleware enforces the bearer token gate. With a nil gate every
// request passes. Denials are uniform: the same status and body regardless
// of what failed, so probing reveals nothing about the reason.
func AuthMiddleware(gate *auth.Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil || !gate.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			// Preflight requests carry no credentials.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if err := gate.Check(header); err != nil {
				logFromContext(r.Context(), logger).Warn("request denied",
					"path", r.URL.Path, "token_id", tokenLogID(header))
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tokenLogID derives a short correlation ID from the presented credential so
// repeated failures can be tied together without logging the token itself.
func tokenLogID(header string) string {
	if header == "" {
		return "none"
	}
	return fmt.Sprintf("%08x", xxhash.Sum64String(header)&0xffffffff)
}

package sse

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen string
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))
	if seen == "" {
		t.Error("no request ID generated")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("header = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}

	// Propagated when present.
	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-123" {
		t.Errorf("request ID = %q, want req-123", seen)
	}
}

func TestTokenLogID(t *testing.T) {
	t.Parallel()

	if got := tokenLogID(""); got != "none" {
		t.Errorf("tokenLogID(empty) = %q, want none", got)
	}

	a := tokenLogID("Bearer aaa")
	b := tokenLogID("Bearer bbb")
	if a == b {
		t.Errorf("distinct tokens share log ID %q", a)
	}
	if a != tokenLogID("Bearer aaa") {
		t.Error("tokenLogID is not deterministic")
	}
	if len(a) != 8 {
		t.Errorf("log ID length = %d, want 8 hex chars", len(a))
	}
}

// Package sse provides the HTTP/SSE transport adapter.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crmbridge/crmbridge/internal/domain/auth"
	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/domain/session"
	"github.com/crmbridge/crmbridge/internal/port/inbound"
	"github.com/crmbridge/crmbridge/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transport serves MCP over HTTP: an SSE stream down, JSON-RPC posts up.
// It implements the inbound.Transport interface.
type Transport struct {
	dispatcher  *service.Dispatcher
	server      *http.Server
	addr        string
	ssePath     string
	messagePath string
	authGate    *auth.Gate
	gate        *ratelimit.Gate
	sessions    *session.Registry
	logger      *slog.Logger
	metrics     *Metrics
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is ":3000".
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithPaths sets the SSE stream and message post paths.
func WithPaths(ssePath, messagePath string) Option {
	return func(t *Transport) {
		if ssePath != "" {
			t.ssePath = ssePath
		}
		if messagePath != "" {
			t.messagePath = messagePath
		}
	}
}

// WithAuthGate enables bearer token checks on the MCP endpoints.
func WithAuthGate(g *auth.Gate) Option {
	return func(t *Transport) {
		t.authGate = g
	}
}

// WithCallGate exposes the upstream call gate's occupancy as a metric.
func WithCallGate(g *ratelimit.Gate) Option {
	return func(t *Transport) {
		t.gate = g
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates an SSE transport over the dispatcher.
func NewTransport(dispatcher *service.Dispatcher, opts ...Option) *Transport {
	t := &Transport{
		dispatcher:  dispatcher,
		addr:        ":3000",
		ssePath:     "/sse",
		messagePath: "/message",
		sessions:    session.NewRegistry(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins accepting connections. It blocks until the context is
// cancelled or the listener fails.
func (t *Transport) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg, t.sessions, t.gate)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: t.buildHandler(reg),
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting SSE server", "addr", t.addr, "sse_path", t.ssePath, "message_path", t.messagePath)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down SSE server")
		return t.shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("SSE server failed: %w", err)
		}
		return nil
	}
}

// buildHandler assembles the mux and middleware chain. Middleware order,
// outermost first: metrics, request ID, auth (MCP endpoints only).
func (t *Transport) buildHandler(reg *prometheus.Registry) http.Handler {
	mcpHandler := func(h http.Handler) http.Handler {
		h = AuthMiddleware(t.authGate, t.logger)(h)
		h = RequestIDMiddleware(t.logger)(h)
		return MetricsMiddleware(t.metrics)(h)
	}

	mux := http.NewServeMux()
	mux.Handle(t.ssePath, mcpHandler(t.sseHandler()))
	mux.Handle(t.messagePath, mcpHandler(t.messageHandler()))
	mux.Handle("/health", healthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

// shutdown closes active SSE streams first so their event loops exit, then
// stops the listener.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.sessions.CloseAll()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("SSE server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

var _ inbound.Transport = (*Transport)(nil)

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crmbridge/crmbridge/internal/adapter/inbound/sse"
	"github.com/crmbridge/crmbridge/internal/adapter/inbound/stdio"
	"github.com/crmbridge/crmbridge/internal/adapter/outbound/pipedrive"
	"github.com/crmbridge/crmbridge/internal/config"
	"github.com/crmbridge/crmbridge/internal/domain/auth"
	"github.com/crmbridge/crmbridge/internal/domain/policy"
	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/service"
	"github.com/crmbridge/crmbridge/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CRM bridge",
	Long: `Start the bridge with the configured transport.

Transports:
  stdio            Serve JSON-RPC over stdin/stdout (default; for local clients)
  sse              Serve HTTP with an SSE event stream and a message post endpoint
  streamable-http  Run the sse server plus a companion proxy process that
                   re-exposes it with the streamable HTTP flavor

The --transport flag overrides the configured transport for this invocation.`,
	RunE: runServe,
}

var serveTransport string

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "transport override: stdio, sse, or streamable-http")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Transport = serveTransport
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	// Capture SIGINT/SIGTERM for graceful shutdown. The goroutine restores
	// default signal handling after the first signal so a second Ctrl+C
	// terminates immediately.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	// Logs go to stderr so the stdio transport keeps stdout for frames.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

// run wires all components together and serves until ctx is cancelled.
// Everything that can fail here is a startup error; once the transport is
// serving, upstream and client failures are reported per request instead.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gate, err := auth.NewGate(auth.Config{
		Secret:    cfg.Auth.Secret,
		Algorithm: cfg.Auth.Algorithm,
		Audience:  cfg.Auth.Audience,
		Issuer:    cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth gate: %w", err)
	}
	if gate.Enabled() {
		logger.Info("authentication enabled", "algorithm", cfg.Auth.Algorithm)
		// Validate guarantees a boot token accompanies the secret; a
		// mis-signed deployment fails here instead of denying every client.
		if err := gate.Verify(cfg.Auth.BootToken); err != nil {
			return fmt.Errorf("boot token self-check failed: %w", err)
		}
		logger.Info("boot token self-check passed")
	}

	interval, err := cfg.RateLimit.IntervalDuration()
	if err != nil {
		return fmt.Errorf("invalid rate limit interval: %w", err)
	}
	callGate := ratelimit.NewGate(ratelimit.Config{
		Interval:    interval,
		Concurrency: cfg.RateLimit.Concurrency,
	})

	timeout, err := cfg.CRM.TimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid crm timeout: %w", err)
	}
	client := pipedrive.NewClient(cfg.CRM.Domain, cfg.CRM.APIToken, pipedrive.WithTimeout(timeout))
	provider := pipedrive.NewLimited(client, callGate)

	catalog, err := service.NewCatalog(provider)
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}

	rules := make([]policy.Rule, 0, len(cfg.Policies))
	for _, p := range cfg.Policies {
		rules = append(rules, policy.Rule{
			Name:      p.Name,
			Condition: p.Condition,
			Action:    policy.Action(p.Action),
		})
	}
	engine, err := policy.NewEngine(rules)
	if err != nil {
		return fmt.Errorf("failed to compile policies: %w", err)
	}
	if len(rules) > 0 {
		logger.Info("tool policies loaded", "rules", len(rules))
	}

	dispatcher := service.NewDispatcher(catalog, engine, logger, mcp.ServerInfo{
		Name:    "crmbridge",
		Version: Version,
	})

	logger.Info("starting crmbridge",
		"version", Version,
		"transport", cfg.Transport,
		"crm_domain", cfg.CRM.Domain,
		"rate_interval", interval.String(),
		"rate_concurrency", cfg.RateLimit.Concurrency,
	)

	switch cfg.Transport {
	case "stdio":
		t := stdio.NewTransport(dispatcher, logger)
		return t.Start(ctx)

	case "sse":
		t := sse.NewTransport(dispatcher,
			sse.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
			sse.WithPaths(cfg.Server.SSEPath, cfg.Server.MessagePath),
			sse.WithAuthGate(gate),
			sse.WithCallGate(callGate),
			sse.WithLogger(logger),
		)
		return t.Start(ctx)

	case "streamable-http":
		return runComposed(ctx, cfg, logger)

	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isServerHealthy checks if the inner SSE server is reachable by hitting /health.
func isServerHealthy(addr string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// waitHealthy polls addr until it reports healthy, ctx is cancelled, or the
// timeout elapses.
func waitHealthy(ctx context.Context, addr string, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
		if isServerHealthy(addr) {
			return true
		}
	}
	return false
}

// proxyArgs builds the argument list for the companion proxy process: its
// own listen port plus the SSE endpoint of the inner server.
func proxyArgs(cfg *config.Config) []string {
	return []string{
		"--port", strconv.Itoa(cfg.Proxy.Port),
		fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Server.Port, cfg.Server.SSEPath),
	}
}

// runComposed implements the streamable-http transport: it spawns a child
// crmbridge in sse mode, waits for it to become healthy, then runs the
// companion proxy in front of it. The proxy is never started when the inner
// server fails its health check.
func runComposed(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	selfExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	innerArgs := []string{"serve", "--transport", "sse"}
	if cfgFile != "" {
		innerArgs = append(innerArgs, "--config", cfgFile)
	}
	inner := exec.Command(selfExe, innerArgs...)
	inner.Stdout = os.Stderr
	inner.Stderr = os.Stderr
	inner.Env = os.Environ()
	if err := inner.Start(); err != nil {
		return fmt.Errorf("failed to start inner sse server: %w", err)
	}
	logger.Info("inner sse server started", "pid", inner.Process.Pid, "port", cfg.Server.Port)

	// Reap the child regardless of how this function exits.
	innerDone := make(chan error, 1)
	go func() { innerDone <- inner.Wait() }()
	defer stopProcess(inner.Process, innerDone, logger, "inner sse server")

	healthAddr := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	if !waitHealthy(ctx, healthAddr, 30*time.Second, time.Second) {
		return fmt.Errorf("inner sse server did not become healthy within 30s (port %d)", cfg.Server.Port)
	}
	logger.Info("inner sse server is healthy")

	proxy := exec.Command(cfg.Proxy.Command, proxyArgs(cfg)...)
	proxy.Stdout = os.Stderr
	proxy.Stderr = os.Stderr
	proxy.Env = os.Environ()
	if err := proxy.Start(); err != nil {
		return fmt.Errorf("failed to start proxy %q: %w", cfg.Proxy.Command, err)
	}
	logger.Info("proxy started", "command", cfg.Proxy.Command, "pid", proxy.Process.Pid, "port", cfg.Proxy.Port)

	proxyDone := make(chan error, 1)
	go func() { proxyDone <- proxy.Wait() }()

	select {
	case <-ctx.Done():
		stopProcess(proxy.Process, proxyDone, logger, "proxy")
		return nil
	case err := <-proxyDone:
		if err != nil {
			return fmt.Errorf("proxy exited: %w", err)
		}
		return nil
	case err := <-innerDone:
		stopProcess(proxy.Process, proxyDone, logger, "proxy")
		innerDone <- err // keep the deferred stop from blocking
		return fmt.Errorf("inner sse server exited unexpectedly: %v", err)
	}
}

// stopProcess asks proc to stop gracefully and kills it after a grace period.
// done must receive the process Wait result.
func stopProcess(proc *os.Process, done chan error, logger *slog.Logger, name string) {
	if !processIsAlive(proc) {
		// Drain the Wait result if the process already exited.
		select {
		case <-done:
		default:
		}
		return
	}
	if err := sendGracefulStop(proc); err != nil {
		logger.Warn("failed to stop "+name, "error", err)
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(5 * time.Second):
		logger.Warn(name+" did not stop in 5s, killing", "pid", proc.Pid)
		_ = proc.Kill()
		<-done
	}
}

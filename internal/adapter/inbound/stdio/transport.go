// Package stdio provides the newline-delimited stdio transport adapter.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/crmbridge/crmbridge/internal/port/inbound"
	"github.com/crmbridge/crmbridge/internal/service"
)

const (
	// scannerInitialBufSize is the initial frame scanner buffer.
	scannerInitialBufSize = 256 * 1024 // 256KB

	// scannerMaxBufSize caps a single frame. Frames beyond this size fail
	// with bufio.ErrTooLong.
	scannerMaxBufSize = 1024 * 1024 // 1MB
)

// Transport serves MCP over stdin/stdout, one JSON-RPC frame per line.
// Stdout carries protocol frames only; all logging goes to stderr.
type Transport struct {
	dispatcher *service.Dispatcher
	logger     *slog.Logger

	in  io.Reader
	out io.Writer

	mu sync.Mutex // serializes writes to out
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithStreams overrides stdin/stdout. Used in tests.
func WithStreams(in io.Reader, out io.Writer) Option {
	return func(t *Transport) {
		t.in = in
		t.out = out
	}
}

// NewTransport creates a stdio transport over the dispatcher.
func NewTransport(dispatcher *service.Dispatcher, logger *slog.Logger, opts ...Option) *Transport {
	t := &Transport{
		dispatcher: dispatcher,
		logger:     logger,
		in:         os.Stdin,
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start reads frames until EOF or context cancellation. A malformed frame
// yields an error reply and the loop continues; only a broken pipe ends it.
func (t *Transport) Start(ctx context.Context) error {
	t.logger.Info("stdio transport started")

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, scannerInitialBufSize), scannerMaxBufSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		reply, err := t.dispatcher.HandleRaw(ctx, line)
		if err != nil {
			t.logger.Error("failed to encode reply", "error", err)
			continue
		}
		if reply == nil {
			continue
		}
		if err := t.write(reply); err != nil {
			return fmt.Errorf("stdout write failed: %w", err)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("stdin read failed: %w", err)
	}
	t.logger.Info("stdio transport stopped")
	return nil
}

func (t *Transport) write(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(frame); err != nil {
		return err
	}
	_, err := t.out.Write([]byte("\n"))
	return err
}

// Close shuts the transport down. Stdio owns no resources beyond the
// process streams.
func (t *Transport) Close() error {
	return nil
}

var _ inbound.Transport = (*Transport)(nil)

// Package inbound defines the inbound port interfaces for the protocol core.
// Transport adapters (stdio, SSE) implement Transport and feed decoded
// requests to the dispatcher.
package inbound

import "context"

// Transport serves the MCP protocol over one wire flavor.
type Transport interface {
	// Start begins serving. Blocks until the context is cancelled or a
	// fatal transport error occurs. Returns nil on graceful shutdown.
	Start(ctx context.Context) error

	// Close shuts the transport down and releases its resources.
	Close() error
}

// Package integration exercises the full request path: stdio frames through
// the dispatcher, catalog, policy engine, and rate-limited CRM client against
// a fake upstream.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/crmbridge/crmbridge/internal/adapter/inbound/stdio"
	"github.com/crmbridge/crmbridge/internal/adapter/outbound/pipedrive"
	"github.com/crmbridge/crmbridge/internal/domain/policy"
	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/service"
	"github.com/crmbridge/crmbridge/pkg/mcp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rpcReply struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolReply struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// newBridge assembles the same component stack the serve command wires up,
// pointed at a fake CRM.
func newBridge(t *testing.T, upstream http.HandlerFunc) *service.Dispatcher {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	gate := ratelimit.NewGate(ratelimit.Config{
		Interval:    time.Millisecond,
		Concurrency: 2,
	})
	client := pipedrive.NewClient("acme", "tok", pipedrive.WithBaseURL(srv.URL), pipedrive.WithHTTPClient(srv.Client()))
	provider := pipedrive.NewLimited(client, gate)

	catalog, err := service.NewCatalog(provider)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	engine, err := policy.NewEngine([]policy.Rule{
		{Name: "read-only", Condition: `tool.name.startsWith("create_")`, Action: policy.ActionDeny},
	})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewDispatcher(catalog, engine, logger, mcp.ServerInfo{Name: "crmbridge", Version: "test"})
}

func TestStdioFullPath(t *testing.T) {
	var createAttempts int
	dispatcher := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/deals":
			w.Write([]byte(`{"success":true,"data":[{"id":7,"title":"Acme renewal","status":"open","value":1200,"currency":"EUR"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/deals":
			createAttempts++
			w.Write([]byte(`{"success":true,"data":{"id":8,"title":"should not happen"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	frames := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"list_deals","arguments":{"status":"open"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"create_deal","arguments":{"title":"Forbidden"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"bogus/method"}`,
	}

	in := strings.NewReader(strings.Join(frames, "\n") + "\n")
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := stdio.NewTransport(dispatcher, logger, stdio.WithStreams(in, &out))

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d replies, want 5 (the notification is silent):\n%s", len(lines), out.String())
	}

	replies := make([]rpcReply, len(lines))
	for i, line := range lines {
		if err := json.Unmarshal([]byte(line), &replies[i]); err != nil {
			t.Fatalf("reply %d is not valid JSON: %v\n%s", i, err, line)
		}
	}

	// initialize
	var init mcp.InitializeResult
	if err := json.Unmarshal(replies[0].Result, &init); err != nil {
		t.Fatalf("initialize result: %v", err)
	}
	if init.ProtocolVersion != mcp.ProtocolVersion || init.ServerInfo.Name != "crmbridge" {
		t.Errorf("initialize = %+v", init)
	}

	// tools/list
	var list mcp.ListToolsResult
	if err := json.Unmarshal(replies[1].Result, &list); err != nil {
		t.Fatalf("tools/list result: %v", err)
	}
	if len(list.Tools) != 12 {
		t.Errorf("tools/list returned %d tools, want 12", len(list.Tools))
	}

	// tools/call list_deals hits the fake upstream.
	var deals toolReply
	if err := json.Unmarshal(replies[2].Result, &deals); err != nil {
		t.Fatalf("list_deals result: %v", err)
	}
	if deals.IsError || len(deals.Content) != 1 {
		t.Fatalf("list_deals = %+v", deals)
	}
	if !strings.Contains(deals.Content[0].Text, "Found 1 deals") || !strings.Contains(deals.Content[0].Text, "Acme renewal") {
		t.Errorf("list_deals text = %q", deals.Content[0].Text)
	}

	// tools/call create_deal is denied by the read-only policy before any
	// upstream request is made.
	var denied toolReply
	if err := json.Unmarshal(replies[3].Result, &denied); err != nil {
		t.Fatalf("create_deal result: %v", err)
	}
	if !denied.IsError || !strings.Contains(denied.Content[0].Text, "denied by policy") {
		t.Errorf("create_deal = %+v, want policy denial", denied)
	}
	if createAttempts != 0 {
		t.Errorf("create_deal reached the upstream %d times, want 0", createAttempts)
	}

	// Unknown method.
	if replies[4].Error == nil || replies[4].Error.Code != mcp.CodeMethodNotFound {
		t.Errorf("bogus/method reply = %+v, want method-not-found", replies[4])
	}
}

func TestStdioFullPath_UpstreamErrorStaysInEnvelope(t *testing.T) {
	dispatcher := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"success":false,"error":"Rate limit exceeded"}`))
	})

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_pipelines","arguments":{}}}` + "\n")
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := stdio.NewTransport(dispatcher, logger, stdio.WithStreams(in, &out))

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var reply rpcReply
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &reply); err != nil {
		t.Fatalf("reply is not valid JSON: %v", err)
	}
	if reply.Error != nil {
		t.Fatalf("upstream failure surfaced as JSON-RPC error %+v, want tool envelope", reply.Error)
	}
	var envelope toolReply
	if err := json.Unmarshal(reply.Result, &envelope); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !envelope.IsError || !strings.Contains(envelope.Content[0].Text, "Error:") {
		t.Errorf("envelope = %+v, want isError with message", envelope)
	}
}

// Package service contains the protocol core shared by all transports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crmbridge/crmbridge/internal/domain/policy"
	"github.com/crmbridge/crmbridge/internal/domain/tool"
	"github.com/crmbridge/crmbridge/pkg/mcp"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Dispatcher routes decoded JSON-RPC requests to the catalog. It is
// transport-agnostic: stdio and SSE both feed it raw frames and relay
// whatever bytes it returns.
type Dispatcher struct {
	catalog  *tool.Catalog
	policies *policy.Engine
	logger   *slog.Logger
	info     mcp.ServerInfo
}

// NewDispatcher wires the protocol core.
func NewDispatcher(catalog *tool.Catalog, policies *policy.Engine, logger *slog.Logger, info mcp.ServerInfo) *Dispatcher {
	return &Dispatcher{
		catalog:  catalog,
		policies: policies,
		logger:   logger,
		info:     info,
	}
}

// HandleRaw decodes one wire frame, dispatches it, and encodes the reply.
// Notifications produce no reply (nil, nil). Malformed frames produce a
// parse-error response; nothing at this layer is ever fatal.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) ([]byte, error) {
	req, err := mcp.DecodeRequest(raw)
	if err != nil {
		d.logger.Warn("discarding malformed frame", "error", err)
		return mcp.EncodeMessage(mcp.ErrorResponse(jsonrpc.ID{}, mcp.CodeParseError, "Parse error"))
	}

	resp := d.Handle(ctx, req)
	if resp == nil {
		return nil, nil
	}
	return mcp.EncodeMessage(resp)
}

// Handle dispatches one request. Returns nil for notifications.
func (d *Dispatcher) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if !req.IsCall() {
		// Notifications such as notifications/initialized are accepted
		// and dropped.
		d.logger.Debug("notification received", "method", req.Method)
		return nil
	}

	d.logger.Debug("dispatching request", "method", req.Method)

	var (
		result any
		err    error
	)
	switch req.Method {
	case "initialize":
		result = mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			Capabilities: mcp.Capabilities{
				Tools:   &struct{}{},
				Prompts: &struct{}{},
			},
			ServerInfo: d.info,
		}
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = d.listTools()
	case "tools/call":
		return d.callTool(ctx, req)
	case "prompts/list":
		result = d.listPrompts()
	case "prompts/get":
		return d.getPrompt(req)
	default:
		return mcp.ErrorResponse(req.ID, mcp.CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	resp, err := mcp.ResultResponse(req.ID, result)
	if err != nil {
		d.logger.Error("failed to encode result", "method", req.Method, "error", err)
		return mcp.ErrorResponse(req.ID, mcp.CodeInternalError, "Internal error")
	}
	return resp
}

func (d *Dispatcher) listTools() mcp.ListToolsResult {
	tools := d.catalog.Tools()
	out := mcp.ListToolsResult{Tools: make([]mcp.ToolDescriptor, 0, len(tools))}
	for _, t := range tools {
		schema, err := json.Marshal(t.Schema)
		if err != nil {
			// Schemas are static structs; this cannot fail at runtime.
			d.logger.Error("failed to encode tool schema", "tool", t.Name, "error", err)
			continue
		}
		out.Tools = append(out.Tools, mcp.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out
}

func (d *Dispatcher) listPrompts() mcp.ListPromptsResult {
	prompts := d.catalog.Prompts()
	out := mcp.ListPromptsResult{Prompts: make([]mcp.PromptDescriptor, 0, len(prompts))}
	for _, p := range prompts {
		out.Prompts = append(out.Prompts, mcp.PromptDescriptor{
			Name:        p.Name,
			Description: p.Description,
		})
	}
	return out
}

// callTool resolves, validates, authorizes, and runs one tool invocation.
// Validation and policy denial are protocol errors; handler failures are
// reported inside the tool envelope with isError set.
func (d *Dispatcher) callTool(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	params, err := mcp.ParseParams(req)
	if err != nil {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, err.Error())
	}
	name, _ := params["name"].(string)
	if name == "" {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, "missing tool name")
	}

	t, ok := d.catalog.Tool(name)
	if !ok {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, fmt.Sprintf("unknown tool: %s", name))
	}

	args, _ := params["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	// The handler never runs when the declared input shape is violated.
	if err := t.Schema.Validate(args); err != nil {
		var verr *tool.ValidationError
		if errors.As(err, &verr) {
			return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, verr.Error())
		}
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, "invalid arguments")
	}

	if d.policies != nil {
		decision, err := d.policies.Evaluate(ctx, name, args)
		if err != nil {
			d.logger.Error("policy evaluation failed", "tool", name, "error", err)
			return mcp.ErrorResponse(req.ID, mcp.CodeInternalError, "policy evaluation failed")
		}
		if !decision.Allowed {
			d.logger.Warn("tool call denied", "tool", name, "rule", decision.Rule)
			return d.toolResult(req.ID, mcp.CallToolResult{
				Content: mcp.TextContent(fmt.Sprintf("Error: %s", policy.ErrDenied)),
				IsError: true,
			})
		}
	}

	text, err := t.Handler(ctx, args)
	if err != nil {
		d.logger.Warn("tool call failed", "tool", name, "error", err)
		return d.toolResult(req.ID, mcp.CallToolResult{
			Content: mcp.TextContent(fmt.Sprintf("Error: %s", err)),
			IsError: true,
		})
	}
	return d.toolResult(req.ID, mcp.CallToolResult{Content: mcp.TextContent(text)})
}

func (d *Dispatcher) getPrompt(req *jsonrpc.Request) *jsonrpc.Response {
	params, err := mcp.ParseParams(req)
	if err != nil {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, err.Error())
	}
	name, _ := params["name"].(string)
	if name == "" {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, "missing prompt name")
	}

	p, ok := d.catalog.Prompt(name)
	if !ok {
		return mcp.ErrorResponse(req.ID, mcp.CodeInvalidParams, fmt.Sprintf("unknown prompt: %s", name))
	}

	resp, err := mcp.ResultResponse(req.ID, mcp.UserPrompt(p.Description, p.Text()))
	if err != nil {
		d.logger.Error("failed to encode prompt", "prompt", name, "error", err)
		return mcp.ErrorResponse(req.ID, mcp.CodeInternalError, "Internal error")
	}
	return resp
}

func (d *Dispatcher) toolResult(id jsonrpc.ID, result mcp.CallToolResult) *jsonrpc.Response {
	resp, err := mcp.ResultResponse(id, result)
	if err != nil {
		d.logger.Error("failed to encode tool result", "error", err)
		return mcp.ErrorResponse(id, mcp.CodeInternalError, "Internal error")
	}
	return resp
}

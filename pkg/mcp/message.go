// Package mcp provides the MCP wire types and JSON-RPC codec utilities
// shared by the stdio and SSE transports.
package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes used by the dispatcher.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Content is one content block of a tool or prompt result. Only text blocks
// are produced here.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent builds a single text block.
func TextContent(text string) []Content {
	return []Content{{Type: "text", Text: text}}
}

// CallToolResult is the uniform tools/call envelope. Handler failures are
// reported inside the envelope with IsError set, never as protocol errors.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ToolDescriptor is one entry of a tools/list result.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the tools/list response payload.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// PromptDescriptor is one entry of a prompts/list result.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListPromptsResult is the prompts/list response payload.
type ListPromptsResult struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

// PromptMessage is one message of a prompts/get result.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// GetPromptResult is the prompts/get envelope. Every prompt renders as a
// single user message carrying a text block.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// UserPrompt wraps fixed prompt text in the uniform prompt envelope.
func UserPrompt(description, text string) GetPromptResult {
	return GetPromptResult{
		Description: description,
		Messages: []PromptMessage{
			{Role: "user", Content: Content{Type: "text", Text: text}},
		},
	}
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises which MCP features this server implements.
type Capabilities struct {
	Tools   *struct{} `json:"tools,omitempty"`
	Prompts *struct{} `json:"prompts,omitempty"`
}

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// DecodeMessage deserializes JSON-RPC wire data. It returns either a
// *jsonrpc.Request or *jsonrpc.Response, delegating to the MCP SDK.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}

// EncodeMessage serializes a JSON-RPC message to its wire format.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeRequest decodes wire data and requires it to be a request.
// Notifications decode as requests with a zero ID.
func DecodeRequest(data []byte) (*jsonrpc.Request, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		return nil, fmt.Errorf("expected a JSON-RPC request, got %T", msg)
	}
	return req, nil
}

// ResultResponse builds a success response carrying result, serialized.
func ResultResponse(id jsonrpc.ID, result any) (*jsonrpc.Response, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &jsonrpc.Response{ID: id, Result: payload}, nil
}

// ErrorResponse builds an error response with the given code and message.
func ErrorResponse(id jsonrpc.ID, code int64, message string) *jsonrpc.Response {
	return &jsonrpc.Response{
		ID:    id,
		Error: &jsonrpc.Error{Code: code, Message: message},
	}
}

// ParseParams unmarshals request params into a generic argument map.
// Absent params yield an empty map.
func ParseParams(req *jsonrpc.Request) (map[string]any, error) {
	if len(req.Params) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, fmt.Errorf("malformed params: %w", err)
	}
	return params, nil
}

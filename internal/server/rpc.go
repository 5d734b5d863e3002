// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	apperrors "homefs/internal/errors"
)

const jsonRPCVersion = "2.0"

// JSON-RPC error codes. The -320xx range past -32000 is server defined.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeOperation      = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32029
)

// Methods served besides the operation names themselves.
const (
	methodToolsList = "tools/list"
	methodToolsCall = "tools/call"
	methodPing      = "ping"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

// errorData carries the operation error kind so clients can branch on it
// without parsing messages.
type errorData struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolsListResult struct {
	Tools []openai.Tool `json:"tools"`
}

type pingResult struct {
	OK bool `json:"ok"`
}

// decodeRequest parses one JSON-RPC request. Failures come back as
// ready-to-send errors.
func decodeRequest(body []byte) (*rpcRequest, *rpcError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &rpcError{Code: codeInvalidRequest, Message: "empty request body"}
	}
	if trimmed[0] == '[' {
		return nil, &rpcError{Code: codeInvalidRequest, Message: "batch requests are not supported"}
	}

	var req rpcRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, &rpcError{Code: codeParseError, Message: fmt.Sprintf("parse error: %v", err)}
	}
	if req.JSONRPC != jsonRPCVersion {
		return &req, &rpcError{Code: codeInvalidRequest, Message: `jsonrpc must be "2.0"`}
	}
	if req.Method == "" {
		return &req, &rpcError{Code: codeInvalidRequest, Message: "method is required"}
	}
	return &req, nil
}

// decodeArguments accepts an arguments object, a JSON-encoded arguments
// string, or nothing at all.
func decodeArguments(raw json.RawMessage) (map[string]interface{}, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]interface{}{}, "", nil
	}
	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, "", err
		}
		return nil, encoded, nil
	}
	args := map[string]interface{}{}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, "", err
	}
	return args, "", nil
}

// dispatch routes a decoded request to the registry.
func (s *Server) dispatch(ctx context.Context, req *rpcRequest) (interface{}, string, error) {
	switch req.Method {
	case methodPing:
		return pingResult{OK: true}, "", nil
	case methodToolsList:
		return toolsListResult{Tools: s.registry.OpenAITools()}, "", nil
	case methodToolsCall:
		var params toolCallParams
		if err := json.Unmarshal(nonNull(req.Params), &params); err != nil {
			return nil, "", invalidParams(fmt.Sprintf("invalid tools/call params: %v", err))
		}
		if params.Name == "" {
			return nil, "", invalidParams("tools/call requires a tool name")
		}
		result, err := s.call(ctx, params.Name, params.Arguments)
		return result, params.Name, err
	}

	if !s.registry.Has(req.Method) {
		return nil, "", methodNotFound(req.Method)
	}
	result, err := s.call(ctx, req.Method, req.Params)
	return result, req.Method, err
}

// call executes tool name with raw arguments in either accepted encoding.
func (s *Server) call(ctx context.Context, name string, raw json.RawMessage) (interface{}, error) {
	args, encoded, err := decodeArguments(raw)
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args == nil {
		return s.registry.ExecuteOpenAIToolCall(ctx, openai.ToolCall{
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: encoded},
		})
	}
	return s.registry.Execute(ctx, name, args)
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func invalidParams(message string) *apperrors.Error {
	return apperrors.New(apperrors.CodeInvalidArgument, message)
}

func methodNotFound(method string) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeUnknownTool, "method %q not found", method).With("method", method)
}

// toRPCError maps an operation error onto the JSON-RPC error space.
func toRPCError(err error) *rpcError {
	coded, ok := apperrors.As(err)
	if !ok {
		coded = apperrors.Wrap(apperrors.CodeIOFailure, "internal error", err)
	}

	code := codeOperation
	switch coded.Code {
	case apperrors.CodeInvalidArgument:
		code = codeInvalidParams
	case apperrors.CodeUnknownTool:
		code = codeMethodNotFound
	case apperrors.CodeUnauthorized:
		code = codeUnauthorized
	case apperrors.CodeRateLimited:
		code = codeRateLimited
	}

	message := coded.Message
	if message == "" {
		message = coded.Error()
	}
	return &rpcError{
		Code:    code,
		Message: message,
		Data: &errorData{
			Kind:    string(coded.Code),
			Message: message,
			Context: coded.Context,
		},
	}
}

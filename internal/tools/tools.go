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

package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	apperrors "homefs/internal/errors"
	"homefs/internal/fsops"
)

// Registry holds the available tools and dispatches calls to them.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	env      *fsops.Env
	timeouts TimeoutConfig
}

// NewRegistry creates a registry for env with all built-in operations.
func NewRegistry(env *fsops.Env) *Registry {
	return NewRegistryWithTimeouts(env, DefaultTimeoutConfig())
}

// NewRegistryWithTimeouts creates a registry with custom per-operation timeouts.
func NewRegistryWithTimeouts(env *fsops.Env, timeouts TimeoutConfig) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		env:      env,
		timeouts: timeouts,
	}
	registerBuiltInTools(r)
	return r
}

// RegisterTool adds a tool. Names must be unique.
func (r *Registry) RegisterTool(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// GetToolNames returns the sorted list of tool names.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.getTool(name)
	return ok
}

// OpenAITools returns the registry as OpenAI tool definitions, sorted by name.
func (r *Registry) OpenAITools() []openai.Tool {
	names := r.GetToolNames()
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		tool, _ := r.getTool(name)
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the named tool. Every failure comes back as an
// *errors.Error: unknown names as unknown_tool, uncoded failures and
// panics as io_failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (result interface{}, err error) {
	tool, ok := r.getTool(name)
	if !ok {
		return nil, unknownToolError(name, r.GetToolNames())
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if timeout := r.timeouts.TimeoutForTool(name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger := r.env.Logger.With().Str("tool", name).Bool("mutating", Operation(name).Mutating()).Logger()
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().Interface("panic", recovered).Msg("tool panicked")
			result = nil
			err = apperrors.New(apperrors.CodeIOFailure, "internal error while executing tool").With("tool", name)
		}
		logCall(logger, time.Since(start), err)
	}()

	result, err = tool.Execute(ctx, r.env, args)
	if err != nil {
		return nil, normalizeError(name, err)
	}
	return result, nil
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload whose
// arguments are a JSON-encoded string.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) (interface{}, error) {
	if call.Function.Name == "" {
		return nil, invalidArgumentsError("tool call missing function name")
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return nil, invalidArgumentsError(fmt.Sprintf("invalid tool arguments: %v", err))
	}
	return r.Execute(ctx, call.Function.Name, args)
}

func logCall(logger zerolog.Logger, elapsed time.Duration, err error) {
	if err != nil {
		logger.Warn().
			Str("code", string(apperrors.CodeOf(err))).
			Err(err).
			Dur("elapsed", elapsed).
			Msg("tool call failed")
		return
	}
	logger.Debug().Dur("elapsed", elapsed).Msg("tool call completed")
}

// getTool safely retrieves a tool definition.
func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

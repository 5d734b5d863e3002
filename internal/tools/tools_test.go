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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	apperrors "homefs/internal/errors"
	"homefs/internal/fsops"
)

func newTestRegistry(t testing.TB) (*Registry, *fsops.Env) {
	t.Helper()
	env, err := fsops.NewEnv(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create env: %v", err)
	}
	return NewRegistry(env), env
}

func TestEveryOperationIsRegistered(t *testing.T) {
	registry, _ := newTestRegistry(t)
	for _, op := range AllOperations() {
		if !registry.Has(string(op)) {
			t.Fatalf("operation %q has no registered tool", op)
		}
	}
	if got, want := len(registry.GetToolNames()), len(AllOperations()); got != want {
		t.Fatalf("expected %d tools, got %d", want, got)
	}
}

func TestMutatingOperations(t *testing.T) {
	mutating := map[Operation]bool{OpWrite: true, OpMove: true, OpDelete: true, OpPatch: true}
	for _, op := range AllOperations() {
		if op.Mutating() != mutating[op] {
			t.Fatalf("unexpected Mutating() for %q", op)
		}
	}
}

func TestExecuteListDirectory(t *testing.T) {
	registry, env := newTestRegistry(t)
	if err := os.WriteFile(filepath.Join(env.Home(), "example.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	result, err := registry.Execute(context.Background(), "list", map[string]interface{}{"path": "~"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	listing, ok := result.(*fsops.ListResult)
	if !ok {
		t.Fatalf("expected *fsops.ListResult, got %T", result)
	}
	if listing.Count != 1 || listing.Entries[0].Name != "example.txt" {
		t.Fatalf("expected listing to include created file, got %+v", listing.Entries)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.Execute(context.Background(), "does_not_exist", nil)
	if !apperrors.Is(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected unknown_tool error, got %v", err)
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatal("expected error to wrap ErrToolNotFound")
	}
}

func TestExecuteInvalidArguments(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Execute(ctx, "read", map[string]interface{}{})
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) || !strings.Contains(err.Error(), "'path'") {
		t.Fatalf("expected invalid path argument, got %v", err)
	}

	_, err = registry.Execute(ctx, "write", map[string]interface{}{"path": "x", "content": "y", "mode": "prepend"})
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) || !strings.Contains(err.Error(), "'mode'") {
		t.Fatalf("expected invalid mode argument, got %v", err)
	}

	_, err = registry.Execute(ctx, "patch", map[string]interface{}{
		"path":       "x",
		"operations": []interface{}{map[string]interface{}{"type": "explode"}},
	})
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) || !strings.Contains(err.Error(), "'type'") {
		t.Fatalf("expected invalid operation type, got %v", err)
	}
}

func TestExecuteWriteWithoutContentKeepsFile(t *testing.T) {
	registry, env := newTestRegistry(t)
	ctx := context.Background()
	target := filepath.Join(env.Home(), "notes.txt")
	if err := os.WriteFile(target, []byte("keep me\n"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := registry.Execute(ctx, "write", map[string]interface{}{"path": "notes.txt"})
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) || !strings.Contains(err.Error(), "missing or invalid 'content' parameter") {
		t.Fatalf("expected missing content error, got %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "keep me\n" {
		t.Fatalf("file changed after rejected write: %q", data)
	}

	result, err := registry.Execute(ctx, "write", map[string]interface{}{"path": "notes.txt", "content": ""})
	if err != nil {
		t.Fatalf("explicit empty content should be accepted: %v", err)
	}
	if written := result.(*fsops.WriteResult); written.BytesWritten != 0 {
		t.Fatalf("unexpected result %+v", written)
	}
	if data, _ := os.ReadFile(target); len(data) != 0 {
		t.Fatalf("expected truncated file, got %q", data)
	}
}

func TestExecutePropagatesCodedErrors(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.Execute(context.Background(), "read", map[string]interface{}{"path": "/etc/hostname"})
	if !apperrors.Is(err, apperrors.CodePathEscape) {
		t.Fatalf("expected path_escape, got %v", err)
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	registry, _ := newTestRegistry(t)
	err := registry.RegisterTool(&ToolDefinition{
		NameValue: "boom",
		ExecuteFunc: func(context.Context, *fsops.Env, map[string]interface{}) (interface{}, error) {
			panic("kaboom")
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, err = registry.Execute(context.Background(), "boom", nil)
	if !apperrors.Is(err, apperrors.CodeIOFailure) {
		t.Fatalf("expected io_failure after panic, got %v", err)
	}
}

func TestExecuteWrapsUncodedErrors(t *testing.T) {
	registry, _ := newTestRegistry(t)
	base := errors.New("disk on fire")
	_ = registry.RegisterTool(&ToolDefinition{
		NameValue: "plain",
		ExecuteFunc: func(context.Context, *fsops.Env, map[string]interface{}) (interface{}, error) {
			return nil, base
		},
	})
	_, err := registry.Execute(context.Background(), "plain", nil)
	if !apperrors.Is(err, apperrors.CodeIOFailure) || !errors.Is(err, base) {
		t.Fatalf("expected wrapped io_failure, got %v", err)
	}
}

func TestRegisterToolRejectsDuplicates(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if err := registry.RegisterTool(&ToolDefinition{NameValue: "read"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := registry.RegisterTool(nil); err == nil {
		t.Fatal("expected nil tool to fail")
	}
}

func TestExecuteAppliesTimeout(t *testing.T) {
	env, err := fsops.NewEnv(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create env: %v", err)
	}
	registry := NewRegistryWithTimeouts(env, TimeoutConfig{PerTool: map[string]time.Duration{"slow": time.Millisecond}})
	_ = registry.RegisterTool(&ToolDefinition{
		NameValue: "slow",
		ExecuteFunc: func(ctx context.Context, _ *fsops.Env, _ map[string]interface{}) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	_, err = registry.Execute(context.Background(), "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestOpenAIToolsAreSortedWithSchemas(t *testing.T) {
	registry, _ := newTestRegistry(t)
	defs := registry.OpenAITools()
	if len(defs) != len(AllOperations()) {
		t.Fatalf("expected %d definitions, got %d", len(AllOperations()), len(defs))
	}
	for i, def := range defs {
		if def.Type != openai.ToolTypeFunction || def.Function == nil {
			t.Fatalf("unexpected definition %+v", def)
		}
		if i > 0 && defs[i-1].Function.Name >= def.Function.Name {
			t.Fatalf("definitions not sorted: %s before %s", defs[i-1].Function.Name, def.Function.Name)
		}
		if def.Function.Description == "" {
			t.Fatalf("missing description for %s", def.Function.Name)
		}
	}
}

func TestExecuteOpenAIToolCall(t *testing.T) {
	registry, env := newTestRegistry(t)
	if err := os.WriteFile(filepath.Join(env.Home(), "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "read",
			Arguments: `{"path": "a.txt"}`,
		},
	}
	result, err := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if read := result.(*fsops.ReadResult); read.Content != "hello" {
		t.Fatalf("unexpected content %q", read.Content)
	}
}

func TestExecuteOpenAIToolCallInvalidArgs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "list",
			Arguments: `{"path": `, // invalid JSON
		},
	}
	_, err := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}

	call.Function.Name = ""
	_, err = registry.ExecuteOpenAIToolCall(context.Background(), call)
	if !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument for missing name, got %v", err)
	}
}

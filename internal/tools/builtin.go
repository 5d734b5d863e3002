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

	"homefs/internal/fsops"
)

type builtinTool struct {
	description string
	parameters  func() map[string]interface{}
	execute     ExecutorFunc
}

// registerBuiltInTools registers one tool per Operation. A missing handler
// is a programming error and panics at startup.
func registerBuiltInTools(r *Registry) {
	builtins := map[Operation]builtinTool{
		OpList: {
			description: "List a directory inside home. Entries carry name, type, size and modification time.",
			parameters:  argumentSchema[fsops.ListRequest],
			execute:     bind(fsops.List),
		},
		OpRead: {
			description: "Read a bounded slice of a file. Binary content is replaced by a placeholder.",
			parameters:  argumentSchema[fsops.ReadRequest],
			execute:     bind(fsops.Read),
		},
		OpWrite: {
			description: "Write text to a file by overwriting or appending or creating it. Protected paths are refused.",
			parameters:  argumentSchema[fsops.WriteRequest],
			execute:     bind(fsops.Write),
		},
		OpMove: {
			description: "Rename a file or directory within home using a single atomic rename.",
			parameters:  argumentSchema[fsops.MoveRequest],
			execute:     bind(fsops.Move),
		},
		OpDelete: {
			description: "Delete a file or symlink or directory. Non-empty directories require recursive.",
			parameters:  argumentSchema[fsops.DeleteRequest],
			execute:     bind(fsops.Delete),
		},
		OpTail: {
			description: "Return the last lines of a file without reading it whole.",
			parameters:  argumentSchema[fsops.TailRequest],
			execute:     bind(fsops.Tail),
		},
		OpReadLines: {
			description: "Return a numbered line range of a file with optional surrounding context.",
			parameters:  argumentSchema[fsops.ReadLinesRequest],
			execute:     bind(fsops.ReadLines),
		},
		OpPatch: {
			description: "Apply line-based edits to a text file in order. Supports dry_run previews and .bak backups.",
			parameters:  argumentSchema[fsops.PatchRequest],
			execute:     bind(fsops.Patch),
		},
		OpDiff: {
			description: "Show a unified diff between a file and another file or supplied text.",
			parameters:  argumentSchema[fsops.DiffRequest],
			execute:     bind(fsops.Diff),
		},
		OpSearch: {
			description: "Search text files below a directory for a literal string.",
			parameters:  argumentSchema[fsops.SearchRequest],
			execute:     bind(fsops.Search),
		},
		OpInfo: {
			description: "Report the home, base, apps and logs directories.",
			parameters:  emptyParameters,
			execute: func(ctx context.Context, env *fsops.Env, _ map[string]interface{}) (interface{}, error) {
				info, err := fsops.Info(ctx, env)
				if err != nil {
					return nil, err
				}
				return info, nil
			},
		},
	}

	for _, op := range AllOperations() {
		builtin, ok := builtins[op]
		if !ok {
			panic(fmt.Sprintf("no handler registered for operation %q", op))
		}
		err := r.RegisterTool(&ToolDefinition{
			NameValue:        string(op),
			DescriptionValue: builtin.description,
			ParametersValue:  builtin.parameters(),
			ExecuteFunc:      builtin.execute,
		})
		if err != nil {
			panic(err)
		}
	}
}

// bind adapts a typed operation to an ExecutorFunc by decoding and
// validating its arguments first.
func bind[T any, R any](fn func(context.Context, *fsops.Env, T) (*R, error)) ExecutorFunc {
	return func(ctx context.Context, env *fsops.Env, args map[string]interface{}) (interface{}, error) {
		req, err := unmarshalAndValidate[T](args)
		if err != nil {
			return nil, err
		}
		res, err := fn(ctx, env, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

func emptyParameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

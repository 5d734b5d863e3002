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

package fsops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	apperrors "homefs/internal/errors"
)

// Patch operation types.
const (
	PatchReplace       = "replace"
	PatchInsert        = "insert"
	PatchDelete        = "delete"
	PatchReplaceString = "replace_string"
)

const backupSuffix = ".bak"

// PatchOperation is one edit. Line numbers are 1-based and refer to the
// file as left by the preceding operations.
type PatchOperation struct {
	Type       string `json:"type" jsonschema:"description=replace or insert or delete or replace_string,enum=replace,enum=insert,enum=delete,enum=replace_string" validate:"required,oneof=replace insert delete replace_string"`
	StartLine  int    `json:"start_line,omitempty" jsonschema:"description=First line for replace and delete."`
	EndLine    int    `json:"end_line,omitempty" jsonschema:"description=Last line (inclusive) for replace and delete. Defaults to start_line."`
	BeforeLine int    `json:"before_line,omitempty" jsonschema:"description=Insert before this line. Use line count + 1 to append."`
	Content    string `json:"content,omitempty" jsonschema:"description=New lines for replace and insert."`
	Search     string `json:"search,omitempty" jsonschema:"description=Exact text to find for replace_string."`
	Replace    string `json:"replace,omitempty" jsonschema:"description=Replacement text for replace_string."`
	Count      int    `json:"count,omitempty" jsonschema:"description=Occurrences to replace for replace_string. Defaults to 1 and -1 replaces all."`
}

// PatchRequest applies operations to a file in order.
type PatchRequest struct {
	Path       string           `json:"path" jsonschema:"description=File to patch." validate:"required"`
	Operations []PatchOperation `json:"operations" jsonschema:"description=Edits applied in order." validate:"required,min=1,dive"`
	DryRun     bool             `json:"dry_run,omitempty" jsonschema:"description=Return the diff without writing."`
	Backup     bool             `json:"backup,omitempty" jsonschema:"description=Save the original content next to the file with a .bak suffix."`
}

// PatchResult is returned by Patch.
type PatchResult struct {
	Path         string    `json:"path"`
	AbsolutePath string    `json:"absolute_path"`
	Applied      int       `json:"applied"`
	Changed      bool      `json:"changed"`
	DryRun       bool      `json:"dry_run"`
	BackupPath   string    `json:"backup_path,omitempty"`
	BytesWritten int       `json:"bytes_written"`
	Diff         string    `json:"diff"`
	Stats        DiffStats `json:"stats"`
}

// Patch applies line edits to a text file. The file is read, edited in
// memory and rewritten under a lock, but the read and the rewrite are not
// one atomic step: a concurrent writer between them is overwritten.
func Patch(ctx context.Context, env *Env, req PatchRequest) (*PatchResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	if len(req.Operations) == 0 {
		return nil, invalidArgument("missing or invalid 'operations' parameter")
	}
	target, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}
	if !req.DryRun {
		if err := env.guard(target); err != nil {
			return nil, err
		}
	}

	original, err := readWholeFile(target)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(original, "\n")
	lines, err = ApplyPatch(lines, req.Operations)
	if err != nil {
		return nil, err
	}
	updated := strings.Join(lines, "\n")

	label := env.rel(target)
	diffText, stats, err := unifiedDiff(ctx, label, label, original, updated, DefaultDiffContextLines)
	if err != nil {
		return nil, err
	}
	result := &PatchResult{
		Path:         label,
		AbsolutePath: target,
		Applied:      len(req.Operations),
		Changed:      original != updated,
		DryRun:       req.DryRun,
		Diff:         diffText,
		Stats:        stats,
	}
	if req.DryRun || !result.Changed {
		return result, nil
	}

	if req.Backup {
		backup, err := writeBackup(env, target, original)
		if err != nil {
			return nil, err
		}
		result.BackupPath = env.rel(backup)
	}

	written, err := writeLocked(target, os.O_WRONLY, true, []byte(updated))
	if err != nil {
		return nil, ioFailure("failed to write file", target, err)
	}
	result.BytesWritten = written

	env.Logger.Info().
		Str("path", target).
		Int("operations", len(req.Operations)).
		Bool("backup", req.Backup).
		Msg("file patched")

	return result, nil
}

// ApplyPatch applies ops to lines in order and returns the new lines. A
// failing operation is reported with its index; lines is not modified.
func ApplyPatch(lines []string, ops []PatchOperation) ([]string, error) {
	out := append([]string(nil), lines...)
	for i, op := range ops {
		next, err := applyOperation(out, op)
		if err != nil {
			return nil, err.With("operation_index", i).With("operation_type", op.Type)
		}
		out = next
	}
	return out, nil
}

func applyOperation(lines []string, op PatchOperation) ([]string, *apperrors.Error) {
	switch op.Type {
	case PatchReplace, PatchDelete:
		start, end := op.StartLine, op.EndLine
		if end == 0 {
			end = start
		}
		if start < 1 || end < start || end > len(lines) {
			return nil, invalidArgument(fmt.Sprintf("line range %d-%d is outside 1-%d", start, end, len(lines)))
		}
		var replacement []string
		if op.Type == PatchReplace {
			replacement = contentLines(op.Content)
		}
		out := make([]string, 0, len(lines)-(end-start+1)+len(replacement))
		out = append(out, lines[:start-1]...)
		out = append(out, replacement...)
		return append(out, lines[end:]...), nil

	case PatchInsert:
		before := op.BeforeLine
		if before < 1 || before > len(lines)+1 {
			return nil, invalidArgument(fmt.Sprintf("before_line %d is outside 1-%d", before, len(lines)+1))
		}
		inserted := contentLines(op.Content)
		out := make([]string, 0, len(lines)+len(inserted))
		out = append(out, lines[:before-1]...)
		out = append(out, inserted...)
		return append(out, lines[before-1:]...), nil

	case PatchReplaceString:
		if op.Search == "" {
			return nil, invalidArgument("replace_string requires non-empty 'search'")
		}
		count := op.Count
		switch {
		case count == 0:
			count = 1
		case count < -1:
			return nil, invalidArgument("count must be positive or -1 for all occurrences").With("count", op.Count)
		}
		text := strings.Join(lines, "\n")
		if !strings.Contains(text, op.Search) {
			return nil, invalidArgument("search text not found")
		}
		return strings.Split(strings.Replace(text, op.Search, op.Replace, count), "\n"), nil

	default:
		return nil, invalidArgument(fmt.Sprintf("unknown operation type %q", op.Type))
	}
}

// contentLines splits replacement text into lines. A single trailing
// newline terminates the last line rather than adding an empty one.
func contentLines(content string) []string {
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func writeBackup(env *Env, target, original string) (string, error) {
	backup, err := env.resolve("path", target+backupSuffix)
	if err != nil {
		return "", err
	}
	if err := env.guard(backup); err != nil {
		return "", err
	}
	if info, err := os.Stat(backup); err == nil && info.IsDir() {
		return "", wrongType(backup, EntryFile)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", ioFailure("failed to stat backup", backup, err)
	}
	if _, err := writeLocked(backup, os.O_WRONLY|os.O_CREATE, true, []byte(original)); err != nil {
		return "", ioFailure("failed to write backup", backup, err)
	}
	return backup, nil
}

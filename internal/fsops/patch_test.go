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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "homefs/internal/errors"
)

func TestPatchAppliesOperationsSequentially(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "list.txt", "1\n2\n3\n4\n")

	result, err := Patch(context.Background(), env, PatchRequest{
		Path: "list.txt",
		Operations: []PatchOperation{
			{Type: PatchDelete, StartLine: 2, EndLine: 3},
			{Type: PatchInsert, BeforeLine: 2, Content: "X"},
		},
	})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if got := readTestFile(t, env, "list.txt"); got != "1\nX\n4\n" {
		t.Fatalf("expected 1\\nX\\n4\\n, got %q", got)
	}
	if !result.Changed || result.Applied != 2 || result.Diff == "" {
		t.Fatalf("unexpected patch result: %+v", result)
	}
}

func TestApplyPatchReplace(t *testing.T) {
	lines := []string{"a", "b", "c"}
	got, err := ApplyPatch(lines, []PatchOperation{{Type: PatchReplace, StartLine: 2, Content: "B1\nB2\n"}})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "B1", "B2", "c"}, got); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, lines); diff != "" {
		t.Fatalf("input was modified (-want +got):\n%s", diff)
	}
}

func TestApplyPatchReplaceStringCount(t *testing.T) {
	lines := []string{"foo foo", "foo"}
	tests := []struct {
		count int
		want  []string
	}{
		{0, []string{"bar foo", "foo"}},
		{2, []string{"bar bar", "foo"}},
		{-1, []string{"bar bar", "bar"}},
	}
	for _, tt := range tests {
		got, err := ApplyPatch(lines, []PatchOperation{{Type: PatchReplaceString, Search: "foo", Replace: "bar", Count: tt.count}})
		if err != nil {
			t.Fatalf("count %d: apply failed: %v", tt.count, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("count %d: unexpected lines (-want +got):\n%s", tt.count, diff)
		}
	}
}

func TestApplyPatchReportsFailingOperation(t *testing.T) {
	_, err := ApplyPatch([]string{"a", "b"}, []PatchOperation{
		{Type: PatchReplaceString, Search: "a", Replace: "z"},
		{Type: PatchDelete, StartLine: 5},
	})
	expectCode(t, err, apperrors.CodeInvalidArgument)
	coded, _ := apperrors.As(err)
	if coded.Context["operation_index"] != 1 {
		t.Fatalf("expected operation_index 1, got %v", coded.Context["operation_index"])
	}

	_, err = ApplyPatch([]string{"a"}, []PatchOperation{{Type: PatchReplaceString, Search: "missing"}})
	expectCode(t, err, apperrors.CodeInvalidArgument)

	_, err = ApplyPatch([]string{"a"}, []PatchOperation{{Type: PatchInsert, BeforeLine: 3, Content: "x"}})
	expectCode(t, err, apperrors.CodeInvalidArgument)
}

func TestPatchFailureLeavesFileUntouched(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "keep.txt", "a\nb\n")
	_, err := Patch(context.Background(), env, PatchRequest{
		Path: "keep.txt",
		Operations: []PatchOperation{
			{Type: PatchReplace, StartLine: 1, Content: "changed"},
			{Type: PatchDelete, StartLine: 10},
		},
	})
	expectCode(t, err, apperrors.CodeInvalidArgument)
	if got := readTestFile(t, env, "keep.txt"); got != "a\nb\n" {
		t.Fatalf("file changed after failed patch: %q", got)
	}
}

func TestPatchDryRunAndBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writeTestFile(t, env, "cfg.ini", "name=old\n")
	ops := []PatchOperation{{Type: PatchReplaceString, Search: "old", Replace: "new"}}

	preview, err := Patch(ctx, env, PatchRequest{Path: "cfg.ini", Operations: ops, DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(preview.Diff, "-name=old") || !strings.Contains(preview.Diff, "+name=new") {
		t.Fatalf("unexpected dry run diff:\n%s", preview.Diff)
	}
	if preview.Stats.Changed != 1 {
		t.Fatalf("expected one changed line, got %+v", preview.Stats)
	}
	if got := readTestFile(t, env, "cfg.ini"); got != "name=old\n" {
		t.Fatalf("dry run modified file: %q", got)
	}

	applied, err := Patch(ctx, env, PatchRequest{Path: "cfg.ini", Operations: ops, Backup: true})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if applied.BackupPath != "cfg.ini.bak" {
		t.Fatalf("unexpected backup path %q", applied.BackupPath)
	}
	if got := readTestFile(t, env, "cfg.ini.bak"); got != "name=old\n" {
		t.Fatalf("unexpected backup content %q", got)
	}
	if got := readTestFile(t, env, "cfg.ini"); got != "name=new\n" {
		t.Fatalf("unexpected patched content %q", got)
	}
}

func TestPatchProtected(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, ".profile", "export A=1\n")
	_, err := Patch(context.Background(), env, PatchRequest{
		Path:       ".profile",
		Operations: []PatchOperation{{Type: PatchInsert, BeforeLine: 1, Content: "evil"}},
	})
	expectCode(t, err, apperrors.CodeProtectedPath)
}

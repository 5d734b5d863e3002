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
	"os"
	"path/filepath"
	"testing"

	apperrors "homefs/internal/errors"
)

func TestListDirectory(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "notes.txt", "hello")
	if err := os.Mkdir(filepath.Join(env.Home(), "docs"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	result, err := List(context.Background(), env, ListRequest{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Count != 2 || result.Truncated {
		t.Fatalf("expected 2 entries, got %+v", result)
	}
	byName := map[string]DirectoryEntry{}
	for _, e := range result.Entries {
		byName[e.Name] = e
	}
	notes := byName["notes.txt"]
	if notes.Type != EntryFile || notes.Size != 5 || notes.Path != "notes.txt" {
		t.Fatalf("unexpected file entry: %+v", notes)
	}
	if notes.AbsolutePath != filepath.Join(env.Home(), "notes.txt") {
		t.Fatalf("unexpected absolute path %q", notes.AbsolutePath)
	}
	if notes.SizeHuman == "" || notes.Modified == "" {
		t.Fatalf("expected size_human and modified, got %+v", notes)
	}
	if byName["docs"].Type != EntryDir {
		t.Fatalf("expected docs to be a dir, got %+v", byName["docs"])
	}
}

func TestListRecursiveIsBreadthFirst(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "a/deep/file.txt", "x")
	writeTestFile(t, env, "b.txt", "x")

	result, err := List(context.Background(), env, ListRequest{Recursive: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var order []string
	for _, e := range result.Entries {
		order = append(order, e.Path)
	}
	want := []string{"a", "b.txt", "a/deep", "a/deep/file.txt"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestListTruncatesAtMaxItems(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"1", "2", "3", "4"} {
		writeTestFile(t, env, name, name)
	}
	result, err := List(context.Background(), env, ListRequest{MaxItems: intPtr(3)})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Count != 3 || !result.Truncated {
		t.Fatalf("expected 3 truncated entries, got count=%d truncated=%v", result.Count, result.Truncated)
	}

	exact, err := List(context.Background(), env, ListRequest{MaxItems: intPtr(4)})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if exact.Truncated {
		t.Fatal("did not expect truncation when the limit equals the entry count")
	}
}

func TestListDoesNotFollowSymlinkedDirectories(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "real/inner.txt", "x")
	if err := os.Symlink(filepath.Join(env.Home(), "real"), filepath.Join(env.Home(), "link")); err != nil {
		t.Fatalf("symlink failed: %v", err)
	}
	result, err := List(context.Background(), env, ListRequest{Recursive: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Count != 3 {
		t.Fatalf("expected real, link and real/inner.txt, got %+v", result.Entries)
	}
	for _, e := range result.Entries {
		if e.Name == "link" && e.Type != EntrySymlink {
			t.Fatalf("expected link to be reported as symlink, got %s", e.Type)
		}
	}
}

func TestListErrors(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "file.txt", "x")

	_, err := List(context.Background(), env, ListRequest{Path: "file.txt"})
	expectCode(t, err, apperrors.CodeWrongType)

	_, err = List(context.Background(), env, ListRequest{Path: "missing"})
	expectCode(t, err, apperrors.CodeNotFound)

	_, err = List(context.Background(), env, ListRequest{Path: "../"})
	expectCode(t, err, apperrors.CodePathEscape)
}

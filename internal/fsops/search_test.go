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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	apperrors "homefs/internal/errors"
)

func TestSearchStopsAtResultCap(t *testing.T) {
	env := newTestEnv(t)
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "needle %d\n", i)
	}
	writeTestFile(t, env, "a.txt", sb.String())
	writeTestFile(t, env, "b.txt", sb.String())

	result, err := Search(context.Background(), env, SearchRequest{Query: "needle", MaxResults: intPtr(5)})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.Count != 5 || len(result.Matches) != 5 || !result.Truncated {
		t.Fatalf("expected 5 truncated matches, got %+v", result)
	}
	if result.FilesScanned != 1 {
		t.Fatalf("expected the walk to stop after the first file, scanned %d", result.FilesScanned)
	}
	if result.Matches[0].Path != "a.txt" || result.Matches[0].Line != 1 || result.Matches[0].Snippet != "needle 0" {
		t.Fatalf("unexpected first match %+v", result.Matches[0])
	}
}

func TestSearchFiltersAndSkips(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "src/main.go", "package main // TODO\n")
	writeTestFile(t, env, "src/README.md", "TODO: docs\n")
	writeTestFile(t, env, "src/blob.go", "TODO\x00binary")
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "x.go"), []byte("TODO outside\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(env.Home(), "src", "linked")); err != nil {
		t.Fatalf("symlink failed: %v", err)
	}

	result, err := Search(context.Background(), env, SearchRequest{Query: "TODO", Path: "src", Extensions: []string{".GO"}})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.Count != 1 || result.Matches[0].Path != "src/main.go" {
		t.Fatalf("expected only src/main.go, got %+v", result.Matches)
	}
	if result.Truncated {
		t.Fatal("did not expect truncation")
	}

	all, err := Search(context.Background(), env, SearchRequest{Query: "TODO"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if all.Count != 2 {
		t.Fatalf("expected 2 matches without filter, got %+v", all.Matches)
	}
}

func TestSearchIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env, "a.txt", "Needle\nneedle\n")
	result, err := Search(context.Background(), env, SearchRequest{Query: "needle"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.Count != 1 || result.Matches[0].Line != 2 {
		t.Fatalf("unexpected matches %+v", result.Matches)
	}
}

func TestSearchConcurrentCallsAcrossBufferBoundary(t *testing.T) {
	env := newTestEnv(t)
	filler := strings.Repeat("x", 99) + "\n"
	for i := 0; i < 4; i++ {
		body := strings.Repeat(filler, scanBufferSize/len(filler)+10)
		writeTestFile(t, env, fmt.Sprintf("f%d.txt", i), body+fmt.Sprintf("needle-%d\n", i))
	}
	wantLine := scanBufferSize/len(filler) + 11

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := fmt.Sprintf("needle-%d", i)
			result, err := Search(context.Background(), env, SearchRequest{Query: query})
			if err != nil {
				errs <- err
				return
			}
			if result.Count != 1 || result.Matches[0].Path != fmt.Sprintf("f%d.txt", i) || result.Matches[0].Line != wantLine {
				errs <- fmt.Errorf("query %s: unexpected matches %+v", query, result.Matches)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestSearchErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := Search(ctx, env, SearchRequest{})
	expectCode(t, err, apperrors.CodeInvalidArgument)

	_, err = Search(ctx, env, SearchRequest{Query: "x", Path: "missing"})
	expectCode(t, err, apperrors.CodeNotFound)

	_, err = Search(ctx, env, SearchRequest{Query: "x", Path: "/"})
	expectCode(t, err, apperrors.CodePathEscape)
}

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

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := NewEnv(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create env: %v", err)
	}
	return env
}

func writeTestFile(t *testing.T, env *Env, rel, content string) string {
	t.Helper()
	p := filepath.Join(env.Home(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return p
}

func readTestFile(t *testing.T, env *Env, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(env.Home(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

func expectCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("expected %s error, got %q (%v)", code, got, err)
	}
}

func intPtr(n int) *int {
	return &n
}

func strPtr(s string) *string {
	return &s
}

func TestNewEnvLayout(t *testing.T) {
	env := newTestEnv(t)
	info, err := Info(context.Background(), env)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if info.HomeDir != env.Home() || info.BaseDir != env.Home() {
		t.Fatalf("unexpected home/base: %+v", info)
	}
	if info.AppsDir != env.Home()+"/apps" || info.LogsDir != env.Home()+"/logs" {
		t.Fatalf("unexpected apps/logs: %+v", info)
	}
}

func TestCanceledContextIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := List(ctx, env, ListRequest{})
	expectCode(t, err, apperrors.CodeIOFailure)
}

func TestInvalidPathStringIsInvalidArgument(t *testing.T) {
	env := newTestEnv(t)
	_, err := Read(context.Background(), env, ReadRequest{Path: "bad\x00name"})
	expectCode(t, err, apperrors.CodeInvalidArgument)
}

func TestLimitsNormalization(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"list default", listLimit(nil), 200},
		{"list invalid", listLimit(intPtr(0)), 50},
		{"list capped", listLimit(intPtr(9999)), 5000},
		{"read default", readLimit(nil), 65536},
		{"read invalid", readLimit(intPtr(-1)), 65536},
		{"read capped", readLimit(intPtr(1 << 30)), 1048576},
		{"tail default", tailLimit(nil), 200},
		{"tail capped", tailLimit(intPtr(5000)), 2000},
		{"search default", searchLimit(nil), 50},
		{"search invalid", searchLimit(intPtr(-3)), 10},
		{"search capped", searchLimit(intPtr(501)), 500},
		{"read context default", readContextLines(nil), 0},
		{"read context negative", readContextLines(intPtr(-2)), 0},
		{"read context capped", readContextLines(intPtr(99)), 50},
		{"diff context default", diffContextLines(nil), 3},
		{"diff context capped", diffContextLines(intPtr(21)), 20},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestSanitizeSnippet(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "x"
	}
	if got := sanitizeSnippet("  \x1b[31mred\x1b[0m\tvalue\x07\n"); got != "red value" {
		t.Fatalf("unexpected snippet %q", got)
	}
	if got := sanitizeSnippet(long); len([]rune(got)) != maxSnippetChars {
		t.Fatalf("expected %d chars, got %d", maxSnippetChars, len([]rune(got)))
	}
}

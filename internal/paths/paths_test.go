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

package paths

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "homefs/internal/errors"
)

func TestValidatePathStringRejectsNullByte(t *testing.T) {
	if err := ValidatePathString("bad\x00path", 0); err == nil {
		t.Fatal("expected error for null byte path")
	}
	if err := ValidatePathString("fine/path.txt", 4096); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "."},
		{".", "."},
		{"/", "/"},
		{"//", "/"},
		{"a/b/../c", "a/c"},
		{"/a//b/./c/", "/a/b/c"},
		{`a\b\..\c`, "a/c"},
		{"../../..", "."},
		{"/../../etc", "/etc"},
		{"/home/u/../../..", "/"},
		{"a/./../..", "."},
		{"./x/", "x"},
	}
	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	alphabet := []string{"/", "//", "\\", ".", "..", "a", "b", "~", " ", "x.y"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		var b strings.Builder
		for n := rng.Intn(12); n > 0; n-- {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		in := b.String()
		once := Canonicalize(in)
		if twice := Canonicalize(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestHasPathPrefix(t *testing.T) {
	if !HasPathPrefix("/home/u", "/home/u") {
		t.Fatal("expected exact match to be within")
	}
	if !HasPathPrefix("/home/u/a", "/home/u") {
		t.Fatal("expected child to be within")
	}
	if HasPathPrefix("/home/user", "/home/u") {
		t.Fatal("sibling with shared prefix must not be within")
	}
	if !HasPathPrefix("/anything", "/") {
		t.Fatal("everything absolute is within /")
	}
}

func newTestSandbox(t *testing.T) Sandbox {
	t.Helper()
	sandbox, err := NewSandbox(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to create sandbox: %v", err)
	}
	return sandbox
}

func TestResolveRelativeTildeAndAbsolute(t *testing.T) {
	sb := newTestSandbox(t)
	if err := os.MkdirAll(filepath.Join(sb.Home, "work", "sub"), 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}
	base := sb.Home + "/work"

	tests := []struct {
		in   string
		want string
	}{
		{"", base},
		{".", base},
		{"  sub  ", base + "/sub"},
		{"sub/../new.txt", base + "/new.txt"},
		{"~", sb.Home},
		{"~/work/sub", base + "/sub"},
		{`~\work`, base},
		{sb.Home + "/work/./sub/", base + "/sub"},
		{"../../../../../..", sb.Home},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.in, base, sb.Home)
		if tt.in == "../../../../../.." {
			// Canonicalization pins at "/" which lies outside home.
			if apperrors.CodeOf(err) != apperrors.CodePathEscape {
				t.Errorf("Resolve(%q) expected path_escape, got %q, %v", tt.in, got, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	sb := newTestSandbox(t)
	for _, in := range []string{"/etc/passwd", "../x", "~/../other", "/", filepath.Dir(sb.Home)} {
		_, err := Resolve(in, sb.Home, sb.Home)
		if apperrors.CodeOf(err) != apperrors.CodePathEscape {
			t.Errorf("Resolve(%q) expected path_escape, got %v", in, err)
		}
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(sb.Home, "out")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	for _, in := range []string{"out", "out/secret", "out/not-yet-created", "out/a/b/c"} {
		_, err := sb.Resolve(in)
		if apperrors.CodeOf(err) != apperrors.CodePathEscape {
			t.Errorf("Resolve(%q) expected path_escape, got %v", in, err)
		}
	}
}

func TestResolveSymlinkInsideHome(t *testing.T) {
	sb := newTestSandbox(t)
	target := filepath.Join(sb.Home, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Symlink("real.txt", filepath.Join(sb.Home, "alias")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	got, err := sb.Resolve("alias")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sb.Home+"/real.txt" {
		t.Fatalf("expected symlink to resolve to target, got %s", got)
	}

	link, err := sb.ResolveLink("alias")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != sb.Home+"/alias" {
		t.Fatalf("expected link path itself, got %s", link)
	}
}

func TestResolveBrokenSymlink(t *testing.T) {
	sb := newTestSandbox(t)
	if err := os.Symlink(filepath.Join(sb.Home, "missing"), filepath.Join(sb.Home, "dangling")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	for _, in := range []string{"dangling", "dangling/child.txt"} {
		_, err := sb.Resolve(in)
		if apperrors.CodeOf(err) != apperrors.CodeSymlinkUnresolvable {
			t.Errorf("Resolve(%q) expected symlink_unresolvable, got %v", in, err)
		}
	}
}

func TestResolveMissingPathStaysLexical(t *testing.T) {
	sb := newTestSandbox(t)
	got, err := sb.Resolve("new/dir/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sb.Home+"/new/dir/file.txt" {
		t.Fatalf("unexpected resolution: %s", got)
	}
}

func TestResolveContainmentProperty(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()
	if err := os.MkdirAll(filepath.Join(sb.Home, "a", "b"), 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(sb.Home, "a", "out")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := os.Symlink("b", filepath.Join(sb.Home, "a", "in")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	segments := []string{"..", "../..", ".", "a", "b", "out", "in", "x", "", outside}
	prefixes := []string{"", "~/", "~", "/", sb.Home + "/", "a/"}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 3000; i++ {
		parts := []string{}
		for n := rng.Intn(6); n > 0; n-- {
			parts = append(parts, segments[rng.Intn(len(segments))])
		}
		in := prefixes[rng.Intn(len(prefixes))] + strings.Join(parts, "/")

		got, err := Resolve(in, sb.Home+"/a", sb.Home)
		if err != nil {
			code := apperrors.CodeOf(err)
			if code != apperrors.CodePathEscape && code != apperrors.CodeSymlinkUnresolvable {
				t.Fatalf("Resolve(%q) returned unexpected error kind %q: %v", in, code, err)
			}
			continue
		}
		if got != sb.Home && !strings.HasPrefix(got, sb.Home+"/") {
			t.Fatalf("Resolve(%q) = %q escapes %q", in, got, sb.Home)
		}
		if strings.HasPrefix(got, outside) {
			t.Fatalf("Resolve(%q) = %q followed a symlink out of home", in, got)
		}
	}
}

func TestResolveBaseFailsClosed(t *testing.T) {
	home := "/srv/home"
	tests := []struct {
		base string
		want string
	}{
		{"", home},
		{"projects", home + "/projects"},
		{"~/projects/../docs", home + "/docs"},
		{home + "/apps", home + "/apps"},
		{"/etc", home},
		{"../../..", home},
		{"~/../../root", home},
	}
	for _, tt := range tests {
		if got := ResolveBase(tt.base, home); got != tt.want {
			t.Errorf("ResolveBase(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestNewSandboxRequiresAbsoluteHome(t *testing.T) {
	if _, err := NewSandbox("relative/home", ""); err == nil {
		t.Fatal("expected error for relative home")
	}
	if _, err := NewSandbox("   ", ""); err == nil {
		t.Fatal("expected error for empty home")
	}
	sb, err := NewSandbox("/nonexistent/home/", "/etc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.Home != "/nonexistent/home" || sb.Base != sb.Home {
		t.Fatalf("unexpected sandbox: %+v", sb)
	}
	if sb.Rel("/nonexistent/home/a/b") != "a/b" || sb.Rel(sb.Home) != "." {
		t.Fatal("unexpected relative paths")
	}
}

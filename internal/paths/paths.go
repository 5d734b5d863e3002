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
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "homefs/internal/errors"
)

const separator = "/"

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(p string, maxLen int) error {
	if strings.IndexByte(p, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(p) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range p {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 && len(p) > maxLen {
		return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
	}
	return nil
}

// Canonicalize normalizes a path lexically: backslashes become slashes,
// empty and "." segments are dropped and ".." pops the previous segment.
// A ".." with nothing left to pop is discarded, so the result never climbs
// above the root (or above "." for relative input). Total over all inputs.
func Canonicalize(p string) string {
	p = strings.ReplaceAll(p, `\`, separator)
	absolute := strings.HasPrefix(p, separator)

	stack := make([]string, 0, strings.Count(p, separator)+1)
	for _, segment := range strings.Split(p, separator) {
		switch segment {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, segment)
		}
	}

	joined := strings.Join(stack, separator)
	if absolute {
		return separator + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// HasPathPrefix returns true when p equals base or lies beneath it.
func HasPathPrefix(p, base string) bool {
	if base == separator {
		return strings.HasPrefix(p, separator)
	}
	return p == base || strings.HasPrefix(p, base+separator)
}

// Resolve turns user input into a canonical, symlink-resolved absolute path
// that is guaranteed to equal homeDir or lie beneath it.
//
// Input starting with "~" is taken relative to homeDir, input starting with
// "/" is absolute and anything else is joined onto baseDir. Existing paths
// are resolved through the filesystem; paths that do not exist yet keep
// their lexical form below the deepest existing (resolved) ancestor.
func Resolve(input, baseDir, homeDir string) (string, error) {
	home := Canonicalize(homeDir)
	canonical := Canonicalize(expand(input, baseDir, home))

	resolved, err := realPath(canonical)
	if err != nil {
		return "", err.With("input", input)
	}
	if !HasPathPrefix(resolved, home) {
		return "", escapeError(input, resolved, home)
	}
	return resolved, nil
}

// ResolveLink is like Resolve but does not follow a symlink in the final
// path component, so callers can rename or remove the link itself. Every
// parent directory is still resolved through the filesystem.
func ResolveLink(input, baseDir, homeDir string) (string, error) {
	home := Canonicalize(homeDir)
	canonical := Canonicalize(expand(input, baseDir, home))
	if canonical == home || canonical == separator || canonical == "." {
		return Resolve(input, baseDir, homeDir)
	}

	parent, err := realPath(path.Dir(canonical))
	if err != nil {
		return "", err.With("input", input)
	}
	entry := path.Join(parent, path.Base(canonical))
	if !HasPathPrefix(entry, home) {
		return "", escapeError(input, entry, home)
	}
	return entry, nil
}

// ResolveBase resolves a configured base directory lexically against
// homeDir. Anything that would land outside home snaps back to home; this
// never fails so a bad base_dir cannot switch the sandbox off.
func ResolveBase(baseDir, homeDir string) string {
	home := Canonicalize(homeDir)
	if strings.TrimSpace(baseDir) == "" {
		return home
	}
	candidate := Canonicalize(expand(baseDir, home, home))
	if !HasPathPrefix(candidate, home) {
		return home
	}
	return candidate
}

func expand(input, baseDir, home string) string {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "" || trimmed == ".":
		return baseDir
	case strings.HasPrefix(trimmed, "~"):
		rest := trimmed[1:]
		if strings.HasPrefix(rest, separator) || strings.HasPrefix(rest, `\`) {
			rest = rest[1:]
		}
		return home + separator + rest
	case strings.HasPrefix(trimmed, separator):
		return trimmed
	default:
		return baseDir + separator + trimmed
	}
}

// realPath resolves symlinks in an existing path. For a missing path the
// deepest existing ancestor is resolved instead and the remaining segments
// are appended, so a symlinked parent cannot smuggle a new entry outside.
func realPath(canonical string) (string, *apperrors.Error) {
	info, err := os.Lstat(canonical)
	if err == nil {
		resolved, evalErr := filepath.EvalSymlinks(canonical)
		if evalErr == nil {
			return filepath.ToSlash(resolved), nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", unresolvableError(canonical, evalErr)
		}
	}
	return resolveAncestor(canonical)
}

func resolveAncestor(canonical string) (string, *apperrors.Error) {
	dir := canonical
	var tail []string
	for {
		tail = append(tail, path.Base(dir))
		parent := path.Dir(dir)
		if parent == dir {
			return canonical, nil
		}
		dir = parent

		info, err := os.Lstat(dir)
		if err != nil {
			continue
		}
		resolved, evalErr := filepath.EvalSymlinks(dir)
		if evalErr != nil {
			if info.Mode()&os.ModeSymlink != 0 {
				return "", unresolvableError(dir, evalErr)
			}
			return canonical, nil
		}
		segments := []string{filepath.ToSlash(resolved)}
		for i := len(tail) - 1; i >= 0; i-- {
			segments = append(segments, tail[i])
		}
		return path.Join(segments...), nil
	}
}

func escapeError(input, resolved, home string) error {
	return apperrors.New(apperrors.CodePathEscape, "path escapes home directory").
		With("input", input).
		With("resolved", resolved).
		With("home", home)
}

func unresolvableError(link string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeSymlinkUnresolvable, "failed to resolve symlink", err).
		With("symlink", link)
}

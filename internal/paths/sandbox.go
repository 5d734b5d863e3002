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
	"path/filepath"
	"strings"
)

// Sandbox pairs the home directory with the base directory used for
// relative input. Both are fixed once constructed.
type Sandbox struct {
	Home string
	Base string
}

// NewSandbox canonicalizes homeDir (following symlinks when it exists) and
// resolves baseDir beneath it, falling back to home when baseDir is unusable.
func NewSandbox(homeDir, baseDir string) (Sandbox, error) {
	if strings.TrimSpace(homeDir) == "" {
		return Sandbox{}, fmt.Errorf("home directory cannot be empty")
	}
	home := Canonicalize(homeDir)
	if !strings.HasPrefix(home, separator) {
		return Sandbox{}, fmt.Errorf("home directory must be absolute: %q", homeDir)
	}
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = Canonicalize(filepath.ToSlash(resolved))
	}
	return Sandbox{Home: home, Base: ResolveBase(baseDir, home)}, nil
}

// Resolve resolves input against the sandbox.
func (s Sandbox) Resolve(input string) (string, error) {
	return Resolve(input, s.Base, s.Home)
}

// ResolveLink resolves input without following a final symlink.
func (s Sandbox) ResolveLink(input string) (string, error) {
	return ResolveLink(input, s.Base, s.Home)
}

// Rel returns p relative to home, "." for home itself.
func (s Sandbox) Rel(p string) string {
	if p == s.Home {
		return "."
	}
	if s.Home == separator {
		return strings.TrimPrefix(p, separator)
	}
	return strings.TrimPrefix(p, s.Home+separator)
}

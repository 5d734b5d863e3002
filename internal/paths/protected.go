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
	"path/filepath"
	"strings"
)

// DefaultProtectedEntries lists home-relative shell profiles and credential
// stores that mutation operations must never touch.
var DefaultProtectedEntries = []string{
	".profile",
	".bashrc",
	".bash_profile",
	".bash_login",
	".bash_logout",
	".zshrc",
	".zshenv",
	".zprofile",
	".zlogin",
	".config/fish/config.fish",
	".ssh",
	".gnupg",
	".aws",
	".kube",
	".docker/config.json",
	".netrc",
	".git-credentials",
	".config/gh",
}

// ProtectedSet is a fixed denylist of absolute paths. A path is protected
// when it equals an entry or lies beneath one.
type ProtectedSet struct {
	entries []string
}

// NewProtectedSet builds a set from entries that are absolute or relative
// to homeDir. Entries that exist are also recorded by their real path so a
// symlink alias resolves onto the same denylist entry.
func NewProtectedSet(homeDir string, entries ...string) ProtectedSet {
	home := Canonicalize(homeDir)
	seen := make(map[string]bool, len(entries))
	set := ProtectedSet{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		set.entries = append(set.entries, p)
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		candidate := Canonicalize(expand(entry, home, home))
		add(candidate)
		if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
			add(Canonicalize(filepath.ToSlash(resolved)))
		}
	}
	return set
}

// IsProtected reports whether resolved equals or lies beneath an entry.
func (p ProtectedSet) IsProtected(resolved string) bool {
	for _, entry := range p.entries {
		if HasPathPrefix(resolved, entry) {
			return true
		}
	}
	return false
}

// Shelters reports whether removing or renaming dir would take a protected
// entry with it.
func (p ProtectedSet) Shelters(dir string) bool {
	for _, entry := range p.entries {
		if HasPathPrefix(entry, dir) {
			return true
		}
	}
	return false
}

// Entries returns a copy of the protected entries.
func (p ProtectedSet) Entries() []string {
	return append([]string{}, p.entries...)
}

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
	"path"
	"time"

	"github.com/docker/go-units"
)

// Entry types reported by List.
const (
	EntryFile    = "file"
	EntryDir     = "dir"
	EntrySymlink = "symlink"
)

// ListRequest describes a directory listing.
type ListRequest struct {
	Path      string `json:"path,omitempty" jsonschema:"description=Directory to list. Defaults to the base directory."`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Descend into subdirectories breadth-first. Symlinked directories are not followed."`
	MaxItems  *int   `json:"max_items,omitempty" jsonschema:"description=Maximum number of entries to return (default 200 and max 5000)."`
}

// DirectoryEntry describes one listed entry.
type DirectoryEntry struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Path         string `json:"path"`
	AbsolutePath string `json:"absolute_path"`
	Size         int64  `json:"size"`
	SizeHuman    string `json:"size_human"`
	Modified     string `json:"modified"`
}

// ListResult is returned by List.
type ListResult struct {
	Path         string           `json:"path"`
	AbsolutePath string           `json:"absolute_path"`
	Entries      []DirectoryEntry `json:"entries"`
	Count        int              `json:"count"`
	Truncated    bool             `json:"truncated"`
}

// List enumerates a directory, optionally recursing breadth-first with a
// FIFO queue. Unreadable subdirectories are skipped; an unreadable root is
// an error.
func List(ctx context.Context, env *Env, req ListRequest) (*ListResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	root, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}
	info, err := statExisting(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, wrongType(root, EntryDir)
	}

	limit := listLimit(req.MaxItems)
	result := &ListResult{
		Path:         env.rel(root),
		AbsolutePath: root,
		Entries:      make([]DirectoryEntry, 0, min(limit, 64)),
	}

	queue := []string{root}
walk:
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		if err := ensureContext(ctx); err != nil {
			return nil, err
		}

		children, err := os.ReadDir(dir)
		if err != nil {
			if dir == root {
				return nil, ioFailure("failed to read directory", dir, err)
			}
			env.Logger.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
			continue
		}
		for _, child := range children {
			if len(result.Entries) >= limit {
				result.Truncated = true
				break walk
			}
			childPath := path.Join(dir, child.Name())
			childInfo, err := child.Info()
			if err != nil {
				// Removed between ReadDir and Info.
				continue
			}
			result.Entries = append(result.Entries, newDirectoryEntry(env, childPath, childInfo))
			if req.Recursive && child.IsDir() {
				queue = append(queue, childPath)
			}
		}
	}

	result.Count = len(result.Entries)
	return result, nil
}

func newDirectoryEntry(env *Env, p string, info os.FileInfo) DirectoryEntry {
	return DirectoryEntry{
		Name:         info.Name(),
		Type:         entryType(info),
		Path:         env.rel(p),
		AbsolutePath: p,
		Size:         info.Size(),
		SizeHuman:    units.HumanSize(float64(info.Size())),
		Modified:     info.ModTime().UTC().Format(time.RFC3339),
	}
}

func entryType(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return EntrySymlink
	case info.IsDir():
		return EntryDir
	default:
		return EntryFile
	}
}

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

	apperrors "homefs/internal/errors"
)

// DeleteRequest describes a removal.
type DeleteRequest struct {
	Path      string `json:"path" jsonschema:"description=File or symlink or directory to delete." validate:"required"`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Delete a non-empty directory and everything below it."`
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	Path         string `json:"path"`
	AbsolutePath string `json:"absolute_path"`
	Type         string `json:"type"`
	Deleted      int    `json:"deleted"`
}

// Delete removes a file, a symlink (not its target) or a directory.
// Recursive deletion walks the tree post-order and is not atomic: when a
// removal fails midway the entries already removed stay removed and the
// error reports the failing path and how many entries were deleted.
func Delete(ctx context.Context, env *Env, req DeleteRequest) (*DeleteResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	entry, target, err := env.resolveEntry("path", req.Path)
	if err != nil {
		return nil, err
	}
	if err := env.guard(entry, target); err != nil {
		return nil, err
	}
	if err := env.guardTree(entry); err != nil {
		return nil, err
	}

	info, err := os.Lstat(entry)
	if err != nil {
		return nil, ioFailure("failed to stat path", entry, err)
	}

	result := &DeleteResult{
		Path:         env.rel(entry),
		AbsolutePath: entry,
		Type:         entryType(info),
	}

	if info.IsDir() && !req.Recursive {
		children, err := os.ReadDir(entry)
		if err != nil {
			return nil, ioFailure("failed to read directory", entry, err)
		}
		if len(children) > 0 {
			return nil, invalidArgument("directory is not empty; set recursive to delete it").With("path", entry)
		}
	}

	if info.IsDir() {
		if err := removeTree(ctx, entry, &result.Deleted); err != nil {
			return nil, err
		}
	} else {
		if err := os.Remove(entry); err != nil {
			return nil, ioFailure("failed to delete path", entry, err)
		}
		result.Deleted = 1
	}

	env.Logger.Info().
		Str("path", entry).
		Str("type", result.Type).
		Int("deleted", result.Deleted).
		Msg("path deleted")

	return result, nil
}

// removeTree removes p and everything below it, children first. Symlinks
// are removed, never followed.
func removeTree(ctx context.Context, p string, deleted *int) error {
	if err := ensureContext(ctx); err != nil {
		return partialDelete(p, *deleted, err)
	}
	info, err := os.Lstat(p)
	if err != nil {
		return partialDelete(p, *deleted, err)
	}
	if info.IsDir() {
		children, err := os.ReadDir(p)
		if err != nil {
			return partialDelete(p, *deleted, err)
		}
		for _, child := range children {
			if err := removeTree(ctx, path.Join(p, child.Name()), deleted); err != nil {
				return err
			}
		}
	}
	if err := os.Remove(p); err != nil {
		return partialDelete(p, *deleted, err)
	}
	*deleted++
	return nil
}

func partialDelete(p string, deleted int, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeIOFailure, "recursive delete failed", err).
		With("failed_path", p).
		With("deleted", deleted)
}

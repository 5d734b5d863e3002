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
	"errors"
	"io/fs"
	"os"
)

// MoveRequest describes a rename within home.
type MoveRequest struct {
	Source      string `json:"source" jsonschema:"description=Path to move." validate:"required"`
	Destination string `json:"destination" jsonschema:"description=New path." validate:"required"`
	Overwrite   bool   `json:"overwrite,omitempty" jsonschema:"description=Replace an existing destination."`
	CreateDirs  bool   `json:"create_dirs,omitempty" jsonschema:"description=Create missing parent directories of the destination."`
}

// MoveResult is returned by Move.
type MoveResult struct {
	Source              string `json:"source"`
	Destination         string `json:"destination"`
	AbsoluteSource      string `json:"absolute_source"`
	AbsoluteDestination string `json:"absolute_destination"`
	Type                string `json:"type"`
	Overwritten         bool   `json:"overwritten"`
}

// Move renames source to destination with a single rename call. It never
// falls back to copy and delete, so moves across filesystems fail. A
// symlink source is moved as a link.
func Move(ctx context.Context, env *Env, req MoveRequest) (*MoveResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("source", req.Source); err != nil {
		return nil, err
	}
	if err := requirePath("destination", req.Destination); err != nil {
		return nil, err
	}

	src, srcTarget, err := env.resolveEntry("source", req.Source)
	if err != nil {
		return nil, err
	}
	dst, dstTarget, err := env.resolveEntry("destination", req.Destination)
	if err != nil {
		return nil, err
	}

	if err := env.guard(src, srcTarget, dst, dstTarget); err != nil {
		return nil, err
	}
	if err := env.guardTree(src); err != nil {
		return nil, err
	}

	srcInfo, err := os.Lstat(src)
	if err != nil {
		return nil, ioFailure("failed to stat source", src, err)
	}
	if src == dst {
		return nil, invalidArgument("source and destination are the same path").With("path", src)
	}

	overwritten := false
	switch dstInfo, err := os.Lstat(dst); {
	case err == nil:
		if !req.Overwrite {
			return nil, alreadyExists(dst).With("hint", "set overwrite to replace the destination")
		}
		if dstInfo.IsDir() && !srcInfo.IsDir() {
			return nil, wrongType(dst, EntryFile)
		}
		if dstInfo.IsDir() {
			if err := env.guardTree(dst); err != nil {
				return nil, err
			}
		}
		overwritten = true
	case errors.Is(err, fs.ErrNotExist):
		if err := ensureParent(dst, req.CreateDirs); err != nil {
			return nil, err
		}
	default:
		return nil, ioFailure("failed to stat destination", dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		return nil, ioFailure("failed to move path", src, err).With("destination", dst)
	}

	env.Logger.Info().
		Str("source", src).
		Str("destination", dst).
		Bool("overwritten", overwritten).
		Msg("path moved")

	return &MoveResult{
		Source:              env.rel(src),
		Destination:         env.rel(dst),
		AbsoluteSource:      src,
		AbsoluteDestination: dst,
		Type:                entryType(srcInfo),
		Overwritten:         overwritten,
	}, nil
}

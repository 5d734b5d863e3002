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
	"path"
)

// Write modes.
const (
	WriteOverwrite = "overwrite"
	WriteAppend    = "append"
	WriteCreate    = "create"
)

const (
	fileMode = 0o644
	dirMode  = 0o755
)

// WriteRequest describes a file write.
type WriteRequest struct {
	Path       string  `json:"path" jsonschema:"description=File to write." validate:"required"`
	Content    *string `json:"content" jsonschema:"description=Text to write. An empty string truncates the file." validate:"required"`
	Mode       string  `json:"mode,omitempty" jsonschema:"description=overwrite (default) replaces the file. append adds to the end. create fails if the file exists.,enum=overwrite,enum=append,enum=create" validate:"omitempty,oneof=overwrite append create"`
	CreateDirs bool    `json:"create_dirs,omitempty" jsonschema:"description=Create missing parent directories."`
}

// WriteResult is returned by Write.
type WriteResult struct {
	Path         string `json:"path"`
	AbsolutePath string `json:"absolute_path"`
	Mode         string `json:"mode"`
	BytesWritten int    `json:"bytes_written"`
	Created      bool   `json:"created"`
}

// Write stores content at path while holding an exclusive lock on the file.
func Write(ctx context.Context, env *Env, req WriteRequest) (*WriteResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	if req.Content == nil {
		return nil, invalidArgument("missing or invalid 'content' parameter").With("argument", "content")
	}
	mode := req.Mode
	if mode == "" {
		mode = WriteOverwrite
	}
	flags, err := writeFlags(mode)
	if err != nil {
		return nil, err
	}

	target, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}
	if err := env.guard(target); err != nil {
		return nil, err
	}
	if target == env.Home() {
		return nil, wrongType(target, EntryFile)
	}

	created := false
	switch info, err := os.Stat(target); {
	case err == nil:
		if info.IsDir() {
			return nil, wrongType(target, EntryFile)
		}
		if mode == WriteCreate {
			return nil, alreadyExists(target)
		}
	case errors.Is(err, fs.ErrNotExist):
		created = true
		if err := ensureParent(target, req.CreateDirs); err != nil {
			return nil, err
		}
	default:
		return nil, ioFailure("failed to stat file", target, err)
	}

	written, err := writeLocked(target, flags, mode == WriteOverwrite, []byte(*req.Content))
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, alreadyExists(target)
		}
		return nil, ioFailure("failed to write file", target, err)
	}

	env.Logger.Info().
		Str("path", target).
		Str("mode", mode).
		Int("bytes", written).
		Msg("file written")

	return &WriteResult{
		Path:         env.rel(target),
		AbsolutePath: target,
		Mode:         mode,
		BytesWritten: written,
		Created:      created,
	}, nil
}

func writeFlags(mode string) (int, error) {
	switch mode {
	case WriteOverwrite:
		// Truncation happens under the lock, not at open time.
		return os.O_WRONLY | os.O_CREATE, nil
	case WriteAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case WriteCreate:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL, nil
	default:
		return 0, invalidArgument("mode must be one of overwrite, append or create").With("mode", mode)
	}
}

// writeLocked opens target with flags and writes data under an exclusive
// lock, truncating first when asked.
func writeLocked(target string, flags int, truncate bool, data []byte) (int, error) {
	f, err := os.OpenFile(target, flags, fileMode)
	if err != nil {
		return 0, err
	}
	written := 0
	err = withExclusiveLock(f, func() error {
		if truncate {
			if err := f.Truncate(0); err != nil {
				return err
			}
		}
		n, err := f.Write(data)
		written = n
		return err
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return written, err
}

// ensureParent makes sure the directory holding target exists, creating it
// when createDirs is set.
func ensureParent(target string, createDirs bool) error {
	parent := path.Dir(target)
	info, err := os.Stat(parent)
	switch {
	case err == nil:
		if !info.IsDir() {
			return wrongType(parent, EntryDir)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if !createDirs {
			return notFound(parent).With("hint", "set create_dirs to create missing parent directories")
		}
		if err := os.MkdirAll(parent, dirMode); err != nil {
			return ioFailure("failed to create parent directories", parent, err)
		}
		return nil
	default:
		return ioFailure("failed to stat parent directory", parent, err)
	}
}

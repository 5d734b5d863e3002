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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

const binaryPlaceholder = "[binary content omitted: %d bytes]"

// ReadRequest describes a bounded read of a file.
type ReadRequest struct {
	Path     string `json:"path" jsonschema:"description=File to read." validate:"required"`
	Offset   int64  `json:"offset,omitempty" jsonschema:"description=Byte offset to start reading from (default 0)." validate:"gte=0"`
	MaxBytes *int   `json:"max_bytes,omitempty" jsonschema:"description=Maximum bytes to read (default 65536 and max 1048576)."`
}

// ReadResult is returned by Read.
type ReadResult struct {
	Path         string `json:"path"`
	AbsolutePath string `json:"absolute_path"`
	Size         int64  `json:"size"`
	Offset       int64  `json:"offset"`
	BytesRead    int    `json:"bytes_read"`
	EOF          bool   `json:"eof"`
	Binary       bool   `json:"binary"`
	Content      string `json:"content"`
}

// Read returns up to max_bytes starting at offset. Content containing a NUL
// byte is replaced by a placeholder naming the number of bytes read.
func Read(ctx context.Context, env *Env, req ReadRequest) (*ReadResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, invalidArgument("offset must not be negative").With("offset", req.Offset)
	}
	target, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, ioFailure("failed to open file", target, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ioFailure("failed to stat file", target, err)
	}
	if info.IsDir() {
		return nil, wrongType(target, EntryFile)
	}

	limit := readLimit(req.MaxBytes)
	buf, err := io.ReadAll(io.NewSectionReader(f, req.Offset, int64(limit)))
	if err != nil {
		return nil, ioFailure("failed to read file", target, err)
	}

	result := &ReadResult{
		Path:         env.rel(target),
		AbsolutePath: target,
		Size:         info.Size(),
		Offset:       req.Offset,
		BytesRead:    len(buf),
		EOF:          req.Offset+int64(len(buf)) >= info.Size(),
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		result.Binary = true
		result.Content = fmt.Sprintf(binaryPlaceholder, len(buf))
	} else {
		result.Content = string(buf)
	}
	return result, nil
}

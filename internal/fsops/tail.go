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
	"io"
	"os"
	"strings"
)

const tailChunkSize = 4096

// TailRequest asks for the last lines of a file.
type TailRequest struct {
	Path  string `json:"path" jsonschema:"description=File to read from the end." validate:"required"`
	Lines *int   `json:"lines,omitempty" jsonschema:"description=Number of trailing lines to return (default 200 and max 2000)."`
}

// TailResult is returned by Tail.
type TailResult struct {
	Path         string   `json:"path"`
	AbsolutePath string   `json:"absolute_path"`
	Lines        []string `json:"lines"`
	LineCount    int      `json:"line_count"`
	Content      string   `json:"content"`
	Truncated    bool     `json:"truncated"`
}

// Tail returns the last lines of a file by reading backwards in fixed
// chunks, so large files are never loaded whole.
func Tail(ctx context.Context, env *Env, req TailRequest) (*TailResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
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

	n := tailLimit(req.Lines)
	buf, atStart, err := readTail(f, info.Size(), n)
	if err != nil {
		return nil, ioFailure("failed to read file", target, err)
	}
	lines, truncated := lastLines(buf, n, atStart)

	return &TailResult{
		Path:         env.rel(target),
		AbsolutePath: target,
		Lines:        lines,
		LineCount:    len(lines),
		Content:      strings.Join(lines, "\n"),
		Truncated:    truncated,
	}, nil
}

// readTail reads chunks from the end of r until the buffer holds more than
// n newlines or the start of the file is reached.
func readTail(r io.ReaderAt, size int64, n int) ([]byte, bool, error) {
	var buf []byte
	pos := size
	newlines := 0
	for pos > 0 && newlines <= n {
		chunk := min(int64(tailChunkSize), pos)
		pos -= chunk
		block := make([]byte, chunk)
		if _, err := r.ReadAt(block, pos); err != nil && err != io.EOF {
			return nil, false, err
		}
		newlines += bytes.Count(block, []byte{'\n'})
		buf = append(block, buf...)
	}
	return buf, pos == 0, nil
}

// lastLines splits buf into lines and keeps the last n. One trailing newline
// is not a line of its own. When buf does not begin at the start of the file
// its first segment is partial and dropped.
func lastLines(buf []byte, n int, atStart bool) ([]string, bool) {
	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" && atStart {
		return []string{}, false
	}
	parts := strings.Split(text, "\n")
	if !atStart && len(parts) > 0 {
		parts = parts[1:]
	}
	truncated := !atStart || len(parts) > n
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = strings.TrimSuffix(part, "\r")
	}
	return lines, truncated
}

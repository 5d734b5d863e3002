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
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// ReadLinesRequest asks for a 1-based inclusive line range plus context.
type ReadLinesRequest struct {
	Path         string `json:"path" jsonschema:"description=File to read." validate:"required"`
	StartLine    int    `json:"start_line" jsonschema:"description=First line to return (1-based)."`
	EndLine      *int   `json:"end_line,omitempty" jsonschema:"description=Last line to return (inclusive). Defaults to start_line."`
	ContextLines *int   `json:"context_lines,omitempty" jsonschema:"description=Extra lines of context before and after the range (0 to 50)."`
}

// NumberedLine is one line of a ReadLines result.
type NumberedLine struct {
	Number  int    `json:"number"`
	Text    string `json:"text"`
	Context bool   `json:"context,omitempty"`
}

// ReadLinesResult is returned by ReadLines.
type ReadLinesResult struct {
	Path         string         `json:"path"`
	AbsolutePath string         `json:"absolute_path"`
	StartLine    int            `json:"start_line"`
	EndLine      int            `json:"end_line"`
	ContextLines int            `json:"context_lines"`
	TotalLines   int            `json:"total_lines"`
	Lines        []NumberedLine `json:"lines"`
}

// ReadLines streams a file and returns the lines within
// [start-context, end+context], flagging those outside [start, end].
func ReadLines(ctx context.Context, env *Env, req ReadLinesRequest) (*ReadLinesResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	if req.StartLine < 1 {
		return nil, invalidArgument("start_line must be at least 1").With("start_line", req.StartLine)
	}
	end := req.StartLine
	if req.EndLine != nil {
		end = *req.EndLine
	}
	if end < req.StartLine {
		return nil, invalidArgument("end_line must not be before start_line").
			With("start_line", req.StartLine).
			With("end_line", end)
	}
	contextLines := readContextLines(req.ContextLines)

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

	first := max(1, req.StartLine-contextLines)
	last := end + contextLines
	result := &ReadLinesResult{
		Path:         env.rel(target),
		AbsolutePath: target,
		StartLine:    req.StartLine,
		EndLine:      end,
		ContextLines: contextLines,
		Lines:        []NumberedLine{},
	}

	reader := bufio.NewReader(f)
	number := 0
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			number++
			if number >= first && number <= last {
				result.Lines = append(result.Lines, NumberedLine{
					Number:  number,
					Text:    strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"),
					Context: number < req.StartLine || number > end,
				})
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ioFailure("failed to read file", target, err)
		}
	}
	result.TotalLines = number
	return result, nil
}

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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
)

const binarySniffBytes = 8 * 1024

// scanBufferSize must stay above binarySniffBytes so a Peek of the sniff
// window fits in one buffer.
const scanBufferSize = 4 * binarySniffBytes

// SearchRequest describes a literal text search below a directory.
type SearchRequest struct {
	Query      string   `json:"query" jsonschema:"description=Literal text to find (case-sensitive)." validate:"required"`
	Path       string   `json:"path,omitempty" jsonschema:"description=Directory or file to search. Defaults to the base directory."`
	Extensions []string `json:"extensions,omitempty" jsonschema:"description=Only search files with these extensions (for example go or .md)."`
	MaxResults *int     `json:"max_results,omitempty" jsonschema:"description=Maximum matches to return (default 50 and max 500)."`
}

// SearchMatch is one matching line.
type SearchMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// SearchResult is returned by Search.
type SearchResult struct {
	Path         string        `json:"path"`
	Query        string        `json:"query"`
	Matches      []SearchMatch `json:"matches"`
	Count        int           `json:"count"`
	Truncated    bool          `json:"truncated"`
	FilesScanned int           `json:"files_scanned"`
}

// Search walks the tree depth-first with an explicit stack and reports
// lines containing query. Symlinks are never followed and binary files are
// skipped. The walk stops as soon as the result cap is reached or ctx is
// done.
func Search(ctx context.Context, env *Env, req SearchRequest) (*SearchResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, invalidArgument("missing or invalid 'query' parameter").With("argument", "query")
	}
	if strings.IndexByte(req.Query, '\n') >= 0 {
		return nil, invalidArgument("query must be a single line")
	}
	root, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}
	if _, err := statExisting(root); err != nil {
		return nil, err
	}

	s := &searcher{
		env:        env,
		query:      req.Query,
		extensions: normalizeExtensions(req.Extensions),
		limit:      searchLimit(req.MaxResults),
		result: &SearchResult{
			Path:    env.rel(root),
			Query:   req.Query,
			Matches: []SearchMatch{},
		},
	}

	stack := []string{root}
	for len(stack) > 0 && !s.full() {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		info, err := os.Lstat(current)
		if err != nil {
			continue
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			continue
		case info.IsDir():
			if err := ensureContext(ctx); err != nil {
				return nil, err
			}
			children, err := os.ReadDir(current)
			if err != nil {
				env.Logger.Debug().Err(err).Str("dir", current).Msg("skipping unreadable directory")
				continue
			}
			// Reverse push keeps lexical order when popping.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, path.Join(current, children[i].Name()))
			}
		case info.Mode().IsRegular():
			if !s.wants(current) {
				continue
			}
			if err := s.scanFile(current); err != nil {
				env.Logger.Debug().Err(err).Str("file", current).Msg("skipping unreadable file")
			}
		}
	}

	s.result.Count = len(s.result.Matches)
	s.result.Truncated = s.full()
	return s.result, nil
}

type searcher struct {
	env        *Env
	query      string
	extensions map[string]bool
	limit      int
	result     *SearchResult
}

func (s *searcher) full() bool {
	return len(s.result.Matches) >= s.limit
}

func (s *searcher) wants(p string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	return s.extensions[ext]
}

func (s *searcher) scanFile(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, scanBufferSize)
	head, err := reader.Peek(binarySniffBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil
	}
	s.result.FilesScanned++

	number := 0
	for !s.full() {
		line, err := reader.ReadString('\n')
		if line != "" {
			number++
			if strings.Contains(line, s.query) {
				s.result.Matches = append(s.result.Matches, SearchMatch{
					Path:    s.env.rel(p),
					Line:    number,
					Snippet: sanitizeSnippet(line),
				})
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func normalizeExtensions(extensions []string) map[string]bool {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = true
		}
	}
	return set
}

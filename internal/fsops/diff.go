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
	"fmt"
	"io"
	"os"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// lookaheadWindow bounds how far the diff engine searches for the next
// matching line pair after a divergence.
const lookaheadWindow = 200

// DiffRequest compares a file against another file or against text.
// Exactly one of OtherPath and Content must be set.
type DiffRequest struct {
	Path         string  `json:"path" jsonschema:"description=Original file." validate:"required"`
	OtherPath    string  `json:"other_path,omitempty" jsonschema:"description=File to compare against."`
	Content      *string `json:"content,omitempty" jsonschema:"description=Text to compare against instead of a file."`
	ContextLines *int    `json:"context_lines,omitempty" jsonschema:"description=Unchanged lines around each change (default 3 and max 20)."`
}

// DiffStats summarizes a unified diff.
type DiffStats struct {
	Hunks   int `json:"hunks"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
	Changed int `json:"changed"`
}

// DiffResult is returned by Diff.
type DiffResult struct {
	Path      string    `json:"path"`
	Other     string    `json:"other"`
	Identical bool      `json:"identical"`
	Diff      string    `json:"diff"`
	Stats     DiffStats `json:"stats"`
}

// Diff produces a unified diff between path and other_path or content.
func Diff(ctx context.Context, env *Env, req DiffRequest) (*DiffResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if err := requirePath("path", req.Path); err != nil {
		return nil, err
	}
	if (req.OtherPath == "") == (req.Content == nil) {
		return nil, invalidArgument("exactly one of 'other_path' or 'content' is required")
	}
	contextLines := diffContextLines(req.ContextLines)

	target, err := env.resolve("path", req.Path)
	if err != nil {
		return nil, err
	}
	original, err := readWholeFile(target)
	if err != nil {
		return nil, err
	}

	var updated, otherLabel string
	if req.Content != nil {
		updated = *req.Content
		otherLabel = "(content)"
	} else {
		other, err := env.resolve("other_path", req.OtherPath)
		if err != nil {
			return nil, err
		}
		if updated, err = readWholeFile(other); err != nil {
			return nil, err
		}
		otherLabel = env.rel(other)
	}

	label := env.rel(target)
	text, stats, err := unifiedDiff(ctx, label, otherLabel, original, updated, contextLines)
	if err != nil {
		return nil, err
	}
	return &DiffResult{
		Path:      label,
		Other:     otherLabel,
		Identical: original == updated,
		Diff:      text,
		Stats:     stats,
	}, nil
}

// readWholeFile loads a regular file of bounded size as text.
func readWholeFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", ioFailure("failed to open file", p, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", ioFailure("failed to stat file", p, err)
	}
	if info.IsDir() {
		return "", wrongType(p, EntryFile)
	}
	if info.Size() > maxWholeFileBytes {
		return "", invalidArgument(fmt.Sprintf("file exceeds %d bytes", maxWholeFileBytes)).
			With("path", p).
			With("size", info.Size())
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", ioFailure("failed to read file", p, err)
	}
	return string(data), nil
}

type editKind int

const (
	editEqual editKind = iota
	editDelete
	editInsert
)

// Diff engine limits. Once realignBudget line comparisons are spent the
// remaining mismatches are emitted as plain changes, which keeps the cost
// linear on inputs with little in common.
const (
	realignBudget     = 20_000_000
	cancelCheckEvery  = 1024
	noNewlineAtEOFTag = `\ No newline at end of file`
)

// line is one line of input. eol is false only for a final line that is
// not terminated by a newline, so "b" and "b\n" never compare equal.
type line struct {
	text string
	eol  bool
}

// edit is one line of the edit script. aPos and bPos are the indices in
// the old and new line slices at which the edit applies.
type edit struct {
	kind editKind
	line line
	aPos int
	bPos int
}

func splitLines(s string) []line {
	if s == "" {
		return nil
	}
	eol := strings.HasSuffix(s, "\n")
	parts := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	lines := make([]line, len(parts))
	for i, p := range parts {
		lines[i] = line{text: p, eol: true}
	}
	lines[len(lines)-1].eol = eol
	return lines
}

// differ builds a line edit script. On a mismatch it looks ahead up to
// lookaheadWindow lines on each side for the nearest realignment; if none
// is found the two current lines are treated as a change. This is a
// heuristic and does not always produce a minimal diff.
type differ struct {
	ctx    context.Context
	a, b   []line
	budget int
}

func computeEdits(ctx context.Context, a, b []line) ([]edit, error) {
	d := &differ{ctx: ctx, a: a, b: b, budget: realignBudget}
	return d.run()
}

func (d *differ) run() ([]edit, error) {
	a, b := d.a, d.b
	edits := make([]edit, 0, max(len(a), len(b)))
	i, j := 0, 0
	emit := func(kind editKind, l line) {
		edits = append(edits, edit{kind: kind, line: l, aPos: i, bPos: j})
	}
	for step := 0; i < len(a) || j < len(b); step++ {
		if step%cancelCheckEvery == 0 {
			if err := ensureContext(d.ctx); err != nil {
				return nil, err
			}
		}
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			emit(editEqual, a[i])
			i++
			j++
		case i == len(a):
			emit(editInsert, b[j])
			j++
		case j == len(b):
			emit(editDelete, a[i])
			i++
		default:
			// A realignment can scan the whole window, so the deadline is
			// checked before each one as well.
			if d.budget > 0 {
				if err := ensureContext(d.ctx); err != nil {
					return nil, err
				}
			}
			di, dj, ok := d.realign(i, j)
			if !ok {
				di, dj = 1, 1
			}
			for k := 0; k < di; k++ {
				emit(editDelete, a[i])
				i++
			}
			for k := 0; k < dj; k++ {
				emit(editInsert, b[j])
				j++
			}
		}
	}
	return edits, nil
}

// realign returns the smallest skip (di, dj) after which a and b match
// again, charging every comparison against the budget.
func (d *differ) realign(i, j int) (int, int, bool) {
	for dist := 1; dist <= 2*lookaheadWindow; dist++ {
		for di := max(0, dist-lookaheadWindow); di <= min(dist, lookaheadWindow); di++ {
			dj := dist - di
			if i+di >= len(d.a) || j+dj >= len(d.b) {
				continue
			}
			if d.budget <= 0 {
				return 0, 0, false
			}
			d.budget--
			if d.a[i+di] == d.b[j+dj] {
				return di, dj, true
			}
		}
	}
	return 0, 0, false
}

// hunkRanges groups changed edits into [start, end) ranges including up to
// contextLines of surrounding equal lines. A run of more than 2*contextLines
// equal lines splits two hunks.
func hunkRanges(edits []edit, contextLines int) [][2]int {
	var ranges [][2]int
	i := 0
	for i < len(edits) {
		if edits[i].kind == editEqual {
			i++
			continue
		}
		last := i
		j := i + 1
		for j < len(edits) {
			if edits[j].kind != editEqual {
				last = j
				j++
				continue
			}
			k := j
			for k < len(edits) && edits[k].kind == editEqual {
				k++
			}
			if k == len(edits) || k-j > 2*contextLines {
				break
			}
			j = k
		}
		ranges = append(ranges, [2]int{max(0, i-contextLines), min(len(edits), last+1+contextLines)})
		i = last + 1
	}
	return ranges
}

// unifiedDiff renders old and new as a unified diff and derives its stats
// by parsing the rendered text back. A final line without a newline is
// followed by the "\ No newline at end of file" marker.
func unifiedDiff(ctx context.Context, oldLabel, newLabel, oldText, newText string, contextLines int) (string, DiffStats, error) {
	edits, err := computeEdits(ctx, splitLines(oldText), splitLines(newText))
	if err != nil {
		return "", DiffStats{}, err
	}
	ranges := hunkRanges(edits, contextLines)
	if len(ranges) == 0 {
		return "", DiffStats{}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", oldLabel, newLabel)
	for _, r := range ranges {
		hunk := edits[r[0]:r[1]]
		aCount, bCount := 0, 0
		for _, e := range hunk {
			if e.kind != editInsert {
				aCount++
			}
			if e.kind != editDelete {
				bCount++
			}
		}
		aStart, bStart := hunk[0].aPos, hunk[0].bPos
		if aCount > 0 {
			aStart++
		}
		if bCount > 0 {
			bStart++
		}
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", aStart, aCount, bStart, bCount)
		for _, e := range hunk {
			switch e.kind {
			case editEqual:
				sb.WriteByte(' ')
			case editDelete:
				sb.WriteByte('-')
			case editInsert:
				sb.WriteByte('+')
			}
			sb.WriteString(e.line.text)
			sb.WriteByte('\n')
			if !e.line.eol {
				sb.WriteString(noNewlineAtEOFTag)
				sb.WriteByte('\n')
			}
		}
	}

	text := sb.String()
	stats, err := diffStats(text)
	if err != nil {
		stats = countStats(edits, len(ranges))
	}
	return text, stats, nil
}

func diffStats(text string) (DiffStats, error) {
	fileDiff, err := godiff.ParseFileDiff([]byte(text))
	if err != nil {
		return DiffStats{}, err
	}
	stat := fileDiff.Stat()
	return DiffStats{
		Hunks:   len(fileDiff.Hunks),
		Added:   int(stat.Added),
		Deleted: int(stat.Deleted),
		Changed: int(stat.Changed),
	}, nil
}

// countStats derives stats from the edit script, pairing a deletion with an
// adjacent insertion as one changed line the same way the parser does.
func countStats(edits []edit, hunks int) DiffStats {
	stats := DiffStats{Hunks: hunks}
	var last editKind = editEqual
	for _, e := range edits {
		switch e.kind {
		case editDelete:
			if last == editInsert {
				stats.Added--
				stats.Changed++
				last = editEqual
				continue
			}
			stats.Deleted++
		case editInsert:
			if last == editDelete {
				stats.Deleted--
				stats.Changed++
				last = editEqual
				continue
			}
			stats.Added++
		}
		last = e.kind
	}
	return stats
}

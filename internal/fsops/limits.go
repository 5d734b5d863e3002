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

// Numeric policy for operation arguments. Absent values take the default,
// non-positive values take the invalid fallback and large values are capped.
const (
	DefaultListItems = 200
	MaxListItems     = 5000
	invalidListItems = 50

	DefaultReadBytes = 64 * 1024
	MaxReadBytes     = 1024 * 1024

	DefaultTailLines = 200
	MaxTailLines     = 2000

	DefaultSearchResults = 50
	MaxSearchResults     = 500
	invalidSearchResults = 10

	MaxReadContextLines = 50

	DefaultDiffContextLines = 3
	MaxDiffContextLines     = 20

	// maxWholeFileBytes bounds operations that load an entire file.
	maxWholeFileBytes int64 = 10 * 1024 * 1024
)

func normalizeCount(value *int, def, invalid, max int) int {
	if value == nil {
		return def
	}
	n := *value
	if n <= 0 {
		return invalid
	}
	if n > max {
		return max
	}
	return n
}

func clampRange(value *int, def, min, max int) int {
	if value == nil {
		return def
	}
	n := *value
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func listLimit(value *int) int {
	return normalizeCount(value, DefaultListItems, invalidListItems, MaxListItems)
}

func readLimit(value *int) int {
	return normalizeCount(value, DefaultReadBytes, DefaultReadBytes, MaxReadBytes)
}

func tailLimit(value *int) int {
	return normalizeCount(value, DefaultTailLines, DefaultTailLines, MaxTailLines)
}

func searchLimit(value *int) int {
	return normalizeCount(value, DefaultSearchResults, invalidSearchResults, MaxSearchResults)
}

func readContextLines(value *int) int {
	return clampRange(value, 0, 0, MaxReadContextLines)
}

func diffContextLines(value *int) int {
	return clampRange(value, DefaultDiffContextLines, 0, MaxDiffContextLines)
}

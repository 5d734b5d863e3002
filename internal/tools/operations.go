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

package tools

// Operation names a filesystem tool. The set is closed: every Operation has
// exactly one registered handler.
type Operation string

const (
	OpList      Operation = "list"
	OpRead      Operation = "read"
	OpWrite     Operation = "write"
	OpMove      Operation = "move"
	OpDelete    Operation = "delete"
	OpTail      Operation = "tail"
	OpReadLines Operation = "read_lines"
	OpPatch     Operation = "patch"
	OpDiff      Operation = "diff"
	OpSearch    Operation = "search"
	OpInfo      Operation = "info"
)

// AllOperations returns every operation in registration order.
func AllOperations() []Operation {
	return []Operation{
		OpList,
		OpRead,
		OpWrite,
		OpMove,
		OpDelete,
		OpTail,
		OpReadLines,
		OpPatch,
		OpDiff,
		OpSearch,
		OpInfo,
	}
}

// Mutating reports whether the operation can change the filesystem.
func (o Operation) Mutating() bool {
	switch o {
	case OpWrite, OpMove, OpDelete, OpPatch:
		return true
	default:
		return false
	}
}

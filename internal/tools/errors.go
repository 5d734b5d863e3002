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

import (
	"errors"
	"fmt"

	apperrors "homefs/internal/errors"
)

// Common tool errors, wrapped inside coded errors.
var (
	// ErrToolNotFound indicates the requested tool doesn't exist in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

func unknownToolError(name string, available []string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUnknownTool, fmt.Sprintf("unknown tool %q", name), ErrToolNotFound).
		With("tool", name).
		With("available", available)
}

func invalidArgumentsError(message string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeInvalidArgument, message, ErrInvalidArguments)
}

// NewToolExecutionError wraps an uncoded tool failure as io_failure.
func NewToolExecutionError(toolName string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeIOFailure, fmt.Sprintf("tool %s failed", toolName), err).With("tool", toolName)
}

func normalizeError(toolName string, err error) error {
	if coded, ok := apperrors.As(err); ok {
		return coded
	}
	return NewToolExecutionError(toolName, err)
}

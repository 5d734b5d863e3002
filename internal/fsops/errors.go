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
	"errors"
	"fmt"
	"io/fs"

	apperrors "homefs/internal/errors"
)

func invalidArgument(message string) *apperrors.Error {
	return apperrors.New(apperrors.CodeInvalidArgument, message)
}

func protectedError(p string) *apperrors.Error {
	return apperrors.New(apperrors.CodeProtectedPath, "refusing to modify protected path").With("path", p)
}

func notFound(p string) *apperrors.Error {
	return apperrors.New(apperrors.CodeNotFound, "path not found").With("path", p)
}

func wrongType(p, want string) *apperrors.Error {
	return apperrors.New(apperrors.CodeWrongType, fmt.Sprintf("path is not a %s", want)).
		With("path", p).
		With("expected", want)
}

func alreadyExists(p string) *apperrors.Error {
	return apperrors.New(apperrors.CodeAlreadyExists, "path already exists").With("path", p)
}

// ioFailure maps a failed system call onto the error taxonomy, keeping the
// resolved path for diagnosis.
func ioFailure(message, p string, err error) *apperrors.Error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(apperrors.CodeNotFound, message, err).With("path", p)
	}
	return apperrors.Wrap(apperrors.CodeIOFailure, message, err).With("path", p)
}

// annotate tags a resolver error with the argument it came from.
func annotate(err error, arg string) error {
	if coded, ok := apperrors.As(err); ok {
		return coded.With("argument", arg)
	}
	return apperrors.Wrap(apperrors.CodeIOFailure, "failed to resolve path", err).With("argument", arg)
}

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
	"os"
)

// withExclusiveLock holds an advisory exclusive lock on f while fn runs.
// Readers are not blocked; concurrent writers through homefs are serialized.
func withExclusiveLock(f *os.File, fn func() error) (retErr error) {
	if err := lockFile(f); err != nil {
		return err
	}
	defer func() {
		if err := unlockFile(f); err != nil {
			retErr = errors.Join(retErr, err)
		}
	}()
	return fn()
}

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

import "context"

// InfoResult reports the directories the server operates on.
type InfoResult struct {
	HomeDir string `json:"home_dir"`
	BaseDir string `json:"base_dir"`
	AppsDir string `json:"apps_dir"`
	LogsDir string `json:"logs_dir"`
}

// Info returns the sandbox layout. It never touches the filesystem.
func Info(ctx context.Context, env *Env) (*InfoResult, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	return &InfoResult{
		HomeDir: env.Sandbox.Home,
		BaseDir: env.Sandbox.Base,
		AppsDir: env.AppsDir,
		LogsDir: env.LogsDir,
	}, nil
}

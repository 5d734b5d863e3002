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

// Package fsops implements the filesystem operations exposed by homefs.
// Every operation resolves its path arguments through the sandbox before
// touching the filesystem and returns either a result struct or an
// *errors.Error describing what went wrong.
package fsops

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/rs/zerolog"

	apperrors "homefs/internal/errors"
	"homefs/internal/paths"
)

const maxPathLength = 4096

// Env is the immutable per-process context every operation runs against.
type Env struct {
	Sandbox   paths.Sandbox
	Protected paths.ProtectedSet
	AppsDir   string
	LogsDir   string
	Logger    zerolog.Logger
}

// NewEnv builds an Env for homeDir and baseDir with the default protected
// entries plus any extras.
func NewEnv(homeDir, baseDir string, extraProtected ...string) (*Env, error) {
	sandbox, err := paths.NewSandbox(homeDir, baseDir)
	if err != nil {
		return nil, err
	}
	entries := append(append([]string{}, paths.DefaultProtectedEntries...), extraProtected...)
	return &Env{
		Sandbox:   sandbox,
		Protected: paths.NewProtectedSet(sandbox.Home, entries...),
		AppsDir:   path.Join(sandbox.Home, "apps"),
		LogsDir:   path.Join(sandbox.Home, "logs"),
		Logger:    zerolog.Nop(),
	}, nil
}

// Home returns the sandbox root.
func (e *Env) Home() string {
	return e.Sandbox.Home
}

func (e *Env) resolve(arg, input string) (string, error) {
	if err := paths.ValidatePathString(input, maxPathLength); err != nil {
		return "", invalidArgument(err.Error()).With("argument", arg)
	}
	resolved, err := e.Sandbox.Resolve(input)
	if err != nil {
		return "", annotate(err, arg)
	}
	return resolved, nil
}

func (e *Env) resolveLink(arg, input string) (string, error) {
	if err := paths.ValidatePathString(input, maxPathLength); err != nil {
		return "", invalidArgument(err.Error()).With("argument", arg)
	}
	resolved, err := e.Sandbox.ResolveLink(input)
	if err != nil {
		return "", annotate(err, arg)
	}
	return resolved, nil
}

// guard refuses mutation of protected paths.
func (e *Env) guard(resolved ...string) error {
	for _, p := range resolved {
		if p != "" && e.Protected.IsProtected(p) {
			return protectedError(p)
		}
	}
	return nil
}

// guardTree additionally refuses removing or renaming home itself or any
// directory that contains a protected entry.
func (e *Env) guardTree(resolved string) error {
	if resolved == e.Sandbox.Home || e.Protected.Shelters(resolved) {
		return protectedError(resolved)
	}
	return nil
}

func (e *Env) rel(p string) string {
	return e.Sandbox.Rel(p)
}

func requirePath(arg, value string) error {
	if value == "" {
		return invalidArgument(fmt.Sprintf("missing or invalid '%s' parameter", arg)).With("argument", arg)
	}
	return nil
}

func statExisting(p string) (os.FileInfo, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, ioFailure("failed to stat path", p, err)
	}
	return info, nil
}

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.CodeIOFailure, "request canceled", ctx.Err())
	default:
		return nil
	}
}

// resolveEntry resolves input for operations that act on a directory entry
// itself. entry keeps a final symlink unresolved; target follows it and is
// empty when the entry is a symlink whose target is dangling or outside
// home, since removing or renaming the link never touches that target.
func (e *Env) resolveEntry(arg, input string) (entry, target string, err error) {
	entry, err = e.resolveLink(arg, input)
	if err != nil {
		return "", "", err
	}
	target, err = e.resolve(arg, input)
	if err == nil {
		return entry, target, nil
	}
	if info, statErr := os.Lstat(entry); statErr == nil && info.Mode()&os.ModeSymlink != 0 {
		return entry, "", nil
	}
	return "", "", err
}

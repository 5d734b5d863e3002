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

package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"homefs/internal/config"
	"homefs/internal/server"
	"homefs/internal/tools"
)

// serve builds the runtime from cfg and runs the server until ctx ends.
// Home, base and the protected set are fixed here; a config reload only
// swaps the token and rate limits.
func serve(ctx context.Context, cfg *config.Config, configPath string, logger zerolog.Logger) error {
	env, err := cfg.Runtime(configPath, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Str("home", env.Home()).
		Str("base", env.Sandbox.Base).
		Int("protected", len(env.Protected.Entries())).
		Msg("homefs starting")

	registry := tools.NewRegistryWithTimeouts(env, cfg.ToolTimeoutsConfig())
	srv := server.New(registry, serverOptions(cfg), logger)

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go func() {
		err := config.Watch(watchCtx, configPath, logger, func(next *config.Config) {
			if next.HomeDir != cfg.HomeDir || next.BaseDir != cfg.BaseDir {
				logger.Warn().Msg("home_dir and base_dir changes need a restart")
			}
			srv.Reload(next.Token, rateLimit(next))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	return srv.ListenAndServe(ctx, cfg.Listen)
}

func serverOptions(cfg *config.Config) server.Options {
	return server.Options{
		Endpoint:        cfg.Endpoint,
		Token:           cfg.Token,
		MaxRequestBytes: cfg.MaxRequestBytes,
		RequestTimeout:  cfg.RequestTimeout(),
		RateLimit:       rateLimit(cfg),
	}
}

func rateLimit(cfg *config.Config) server.RateLimitConfig {
	return server.RateLimitConfig{PerMinute: cfg.RateLimit.PerMinute, Burst: cfg.RateLimit.Burst}
}

// tgxp-bridge - A bridge between Telegram-style chat groups and XMPP-style
// federated rooms.
// Copyright (C) 2026 tgxp-bridge contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Command tgxp-bridge is the bridge's entrypoint: it loads the INI config,
// opens the database, and runs the bridge until it's signalled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/bridge"
	"github.com/nettlebridge/tgxp/internal/config"
)

func main() {
	configPath := flag.String("config", "config.ini", "path to the bridge's INI configuration file")
	dbPath := flag.String("db", "bridge.db", "path to the bridge's sqlite database file")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := bridge.New(ctx, cfg, *dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize bridge")
	}

	log.Info().Str("db", *dbPath).Msg("tgxp-bridge starting")
	if err := runner.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bridge exited with error")
	}
}

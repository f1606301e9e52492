// Windy Tile
// Copyright (c) 2025 The Windy Tile Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Windy Tile.
//
// Windy Tile is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Windy Tile is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Windy Tile.  If not, see <http://www.gnu.org/licenses/>.

// windyd drives a WiFi co-processor over a serial link to keep a weather
// tile display updated with rendered images from a local server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MYBLtd/746Disco-Windy/pkg/config"
	"github.com/MYBLtd/746Disco-Windy/pkg/display"
	"github.com/MYBLtd/746Disco-Windy/pkg/framebuffer"
	"github.com/MYBLtd/746Disco-Windy/pkg/helpers"
	"github.com/MYBLtd/746Disco-Windy/pkg/modem"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String(
		"config",
		defaultConfigDir(),
		"directory holding windy.toml",
	)
	daemonMode := flag.Bool(
		"daemon",
		false,
		"run in foreground, logging to stderr",
	)
	debug := flag.Bool(
		"debug",
		false,
		"enable debug logging",
	)
	flag.Parse()

	cfg, err := config.NewConfig(*configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}
	err = helpers.InitLogging(*configDir, *debug || cfg.DebugLogging(), logWriters)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	serialCfg := cfg.Serial()
	port, err := modem.DefaultPortFactory(serialCfg.Device, serialCfg.Baud)
	if err != nil {
		// No display updates are possible without the transport.
		return fmt.Errorf("open modem port: %w", err)
	}

	clock := clockwork.NewRealClock()
	session := modem.NewSession(port, clock)
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close modem session")
		}
	}()

	buffers := framebuffer.NewBufferSet()
	loadSnapshot(cfg, buffers)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	scan := framebuffer.NewScanOut(buffers, clock, 0)
	go scan.Run(ctx)

	orch := display.New(session, buffers, cfg, clock, nil, display.LogWeather{})

	log.Info().Msg("windyd starting")
	err = orch.Run(ctx)
	if err != nil && ctx.Err() != nil {
		log.Info().Msg("windyd stopping")
		return nil
	}
	return err
}

// loadSnapshot fills the boot region with the built-in image, when one is
// configured. A missing or short file just leaves the region dark.
func loadSnapshot(cfg *config.Instance, buffers *framebuffer.BufferSet) {
	path := cfg.SnapshotPath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		log.Warn().Err(err).Msg("snapshot image not loaded")
		return
	}
	copy(buffers.Region(framebuffer.RegionSnapshot), data)
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir + "/windy"
}

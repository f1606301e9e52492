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

// Package config loads and persists the TOML configuration file that
// supplies WiFi credentials, server endpoints and display timing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MYBLtd/746Disco-Windy/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgFile       = "windy.toml"
)

type Values struct {
	Network      Network `toml:"network"`
	Server       Server  `toml:"server"`
	API          API     `toml:"api,omitempty"`
	Serial       Serial  `toml:"serial"`
	Display      Display `toml:"display"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

// Network holds the WiFi credentials passed to the co-processor. Both
// values are embedded in the join command after escaping.
type Network struct {
	SSID     string `toml:"ssid"`
	Password string `toml:"password"`
}

// Server is the image server that renders and serves the raw RGB565 tiles.
type Server struct {
	Host         string `toml:"host"`
	TempPath     string `toml:"temp_path"`
	HumidityPath string `toml:"humidity_path"`
	Port         int    `toml:"port"`
}

// API is the weather endpoint queried for the status panel numbers.
type API struct {
	Host string `toml:"host,omitempty"`
	Path string `toml:"path,omitempty"`
}

type Serial struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

type Display struct {
	SnapshotPath string `toml:"snapshot_path,omitempty"`
	RefreshSecs  int    `toml:"refresh_secs"`
	FlipSecs     int    `toml:"flip_secs"`
	BackoffSecs  int    `toml:"backoff_secs"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Server: Server{
		Port:         8080,
		TempPath:     "/windy_temp.bin",
		HumidityPath: "/windy_hum.bin",
	},
	API: API{
		Host: "api.open-meteo.com",
		Path: "/v1/forecast?latitude=56.460&longitude=13.592" +
			"&current=temperature_2m,relative_humidity_2m,wind_speed_10m" +
			",wind_direction_10m,weather_code&wind_speed_unit=ms",
	},
	Serial: Serial{
		Device: "/dev/ttyUSB0",
		Baud:   115200,
	},
	Display: Display{
		RefreshSecs: 600,
		FlipSecs:    10,
		BackoffSecs: 30,
	},
}

type Instance struct {
	cfgPath string
	vals    Values
	mu      syncutil.RWMutex
}

// NewConfig reads the config file from configDir, creating it with defaults
// on first run.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfg := Instance{
		cfgPath: filepath.Join(configDir, CfgFile),
		vals:    defaults,
	}

	err := cfg.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		log.Info().Msg("no config file found, creating default")
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("error creating default config: %w", err)
		}
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Warn().Msgf(
			"config schema mismatch: file %d, expected %d",
			newVals.ConfigSchema, SchemaVersion,
		)
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.cfgPath), 0o750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := toml.Marshal(c.vals)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func (c *Instance) Network() Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Network
}

func (c *Instance) SetNetwork(n Network) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Network = n
}

func (c *Instance) Server() Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server
}

func (c *Instance) API() API {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API
}

func (c *Instance) Serial() Serial {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial
}

func (c *Instance) SnapshotPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.SnapshotPath
}

func (c *Instance) RefreshInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Display.RefreshSecs) * time.Second
}

func (c *Instance) FlipInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Display.FlipSecs) * time.Second
}

func (c *Instance) RetryBackoff() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Display.BackoffSecs) * time.Second
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigCreatesDefaultFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server().Port)
	assert.Equal(t, "/windy_temp.bin", cfg.Server().TempPath)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial().Device)
	assert.Equal(t, 115200, cfg.Serial().Baud)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 10*time.Second, cfg.FlipInterval())
	assert.Equal(t, 30*time.Second, cfg.RetryBackoff())
	assert.False(t, cfg.DebugLogging())
}

func TestNewConfigLoadsExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := `config_schema = 1
debug_logging = true

[network]
ssid = "TestNet"
password = "hunter2"

[server]
host = "10.0.0.5"
temp_path = "/a.bin"
humidity_path = "/b.bin"
port = 9000

[serial]
device = "/dev/ttyACM1"
baud = 230400

[display]
refresh_secs = 120
flip_secs = 5
backoff_secs = 15
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(data), 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, Network{SSID: "TestNet", Password: "hunter2"}, cfg.Network())
	assert.Equal(t, "10.0.0.5", cfg.Server().Host)
	assert.Equal(t, 9000, cfg.Server().Port)
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial().Device)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 5*time.Second, cfg.FlipInterval())
	assert.Equal(t, 15*time.Second, cfg.RetryBackoff())
	assert.True(t, cfg.DebugLogging())
}

func TestNewConfigRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, CfgFile), []byte("not [valid toml"), 0o600,
	))

	_, err := NewConfig(dir, BaseDefaults)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetNetwork(Network{SSID: `Caf"e`, Password: `p,ss\word`})
	cfg.SetDebugLogging(true)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, Values{})
	require.NoError(t, err)
	// Credentials survive verbatim; escaping is the link layer's business.
	assert.Equal(t, Network{SSID: `Caf"e`, Password: `p,ss\word`}, reloaded.Network())
	assert.True(t, reloaded.DebugLogging())
}

func TestLoadToleratesSchemaMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := "config_schema = 99\n\n[display]\nrefresh_secs = 60\nflip_secs = 1\nbackoff_secs = 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(data), 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.RefreshInterval())
}

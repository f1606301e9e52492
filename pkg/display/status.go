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

package display

import (
	"github.com/MYBLtd/746Disco-Windy/pkg/weather"
	"github.com/rs/zerolog/log"
)

// LogStatus writes status messages to the log instead of the panel. Used
// when no rasterizer-backed writer is wired in.
type LogStatus struct{}

func (LogStatus) Status(msg string) {
	log.Info().Msgf("status: %s", msg)
}

// LogWeather logs the parsed conditions instead of drawing them.
type LogWeather struct{}

func (LogWeather) UpdateWeather(d weather.Data) {
	log.Info().
		Float64("temp_c", d.Temperature).
		Int("humidity", d.Humidity).
		Int("beaufort", weather.Beaufort(d.WindSpeed)).
		Int("wind_dir", d.WindDir).
		Str("conditions", weather.CodeString(d.WeatherCode)).
		Msg("weather updated")
}

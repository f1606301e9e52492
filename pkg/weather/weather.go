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

// Package weather extracts the current-conditions numbers from an
// Open-Meteo forecast response. The input can be a truncated JSON tail
// cut out of a bounded reply buffer, so a full-document decoder is not
// usable here: individual fields are located by key and parsed in place.
package weather

import (
	"errors"
	"strconv"
	"strings"
)

// Data holds the current-conditions block of a forecast response.
type Data struct {
	Temperature float64 // °C, temperature_2m
	WindSpeed   float64 // m/s, wind_speed_10m
	WindDir     int     // degrees, wind_direction_10m
	Humidity    int     // percent, relative_humidity_2m
	WeatherCode int     // WMO code, weather_code
}

var ErrMissingField = errors.New("missing weather field")

// Parse extracts the current-conditions fields from a forecast response.
// All five fields must be present.
func Parse(body []byte) (Data, error) {
	s := currentBlock(string(body))

	var d Data
	var ok [5]bool
	d.Temperature, ok[0] = findFloat(s, `"temperature_2m"`)
	d.WindSpeed, ok[1] = findFloat(s, `"wind_speed_10m"`)
	d.WindDir, ok[2] = findInt(s, `"wind_direction_10m"`)
	d.Humidity, ok[3] = findInt(s, `"relative_humidity_2m"`)
	d.WeatherCode, ok[4] = findInt(s, `"weather_code"`)

	for _, found := range ok {
		if !found {
			return Data{}, ErrMissingField
		}
	}
	return d, nil
}

// currentBlock narrows the search to the "current" object, skipping the
// "current_units" object that carries the same keys with string values.
func currentBlock(s string) string {
	rest := s
	for {
		i := strings.Index(rest, `"current":`)
		if i < 0 {
			return s
		}
		after := strings.TrimLeft(rest[i+len(`"current":`):], " ")
		if strings.HasPrefix(after, "{") {
			return after
		}
		rest = rest[i+1:]
	}
}

func findNumber(s, key string) (string, bool) {
	i := strings.Index(s, key)
	if i < 0 {
		return "", false
	}
	p := strings.TrimLeft(s[i+len(key):], " :")
	end := 0
	for end < len(p) {
		c := p[end]
		if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return "", false
	}
	return p[:end], true
}

func findFloat(s, key string) (float64, bool) {
	num, ok := findNumber(s, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func findInt(s, key string) (int, bool) {
	num, ok := findNumber(s, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.SplitN(num, ".", 2)[0])
	if err != nil {
		return 0, false
	}
	return v, true
}

// CodeString returns a short description for a WMO weather code.
func CodeString(code int) string {
	switch code {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45, 48:
		return "Foggy"
	case 51, 53, 55:
		return "Drizzle"
	case 61, 63, 65:
		return "Rain"
	case 71, 73, 75:
		return "Snow"
	case 80, 81, 82:
		return "Showers"
	case 95:
		return "Thunderstorm"
	case 96, 99:
		return "Thunder+hail"
	default:
		return "Unknown"
	}
}

var beaufortThresholds = []float64{
	0.3, 1.6, 3.4, 5.5, 8.0, 10.8,
	13.9, 17.2, 20.8, 24.5, 28.5, 32.7,
}

// Beaufort converts a wind speed in m/s to its Beaufort number.
func Beaufort(ms float64) int {
	for i, thr := range beaufortThresholds {
		if ms < thr {
			return i
		}
	}
	return 12
}

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

package testutils

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// AutoClock is a fake clock whose Sleep advances fake time immediately
// instead of blocking. Single-goroutine session tests can then walk
// through retry delays and guard silences without an advancing goroutine.
type AutoClock struct {
	*clockwork.FakeClock
}

// NewAutoClock creates an AutoClock.
func NewAutoClock() *AutoClock {
	return &AutoClock{FakeClock: clockwork.NewFakeClock()}
}

// Sleep advances fake time by d and returns.
func (c *AutoClock) Sleep(d time.Duration) {
	if d > 0 {
		c.Advance(d)
	}
}

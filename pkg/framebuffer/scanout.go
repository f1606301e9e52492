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

package framebuffer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultVSyncInterval approximates the panel refresh rate (~60 Hz).
const DefaultVSyncInterval = 17 * time.Millisecond

// ScanOut stands in for the autonomous display engine: once started it
// needs no further attention and commits the requested front region at
// every vertical refresh. It is the only consumer of FrameBytes.
type ScanOut struct {
	buffers  *BufferSet
	clock    clockwork.Clock
	interval time.Duration
}

// NewScanOut creates a scan-out pump over the buffer set. A nil clock
// selects the real clock; a zero interval selects DefaultVSyncInterval.
func NewScanOut(buffers *BufferSet, clock clockwork.Clock, interval time.Duration) *ScanOut {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultVSyncInterval
	}
	return &ScanOut{
		buffers:  buffers,
		clock:    clock,
		interval: interval,
	}
}

// Run commits at every refresh boundary until the context is cancelled.
func (s *ScanOut) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.buffers.Commit()
		}
	}
}

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

// Package framebuffer owns the fixed pool of image regions shared between
// the streaming fetcher (writer) and the display scan-out (reader), and
// the vsync-synchronized switch of which region is visible.
package framebuffer

import (
	"github.com/MYBLtd/746Disco-Windy/pkg/helpers/syncutil"
)

// Geometry of one region: a full-screen RGB565 image.
const (
	Width         = 480
	Height        = 272
	BytesPerPixel = 2
	RegionSize    = Width * Height * BytesPerPixel
	RegionCount   = 3
)

// RegionID names one region of the pool. Regions are indexed by tag, not
// by address, so region ownership is explicit and writes cannot overlap.
type RegionID int

const (
	// RegionSnapshot holds the built-in boot image.
	RegionSnapshot RegionID = iota
	// RegionTemp holds the temperature view.
	RegionTemp
	// RegionHumidity holds the humidity view.
	RegionHumidity
)

func (id RegionID) String() string {
	switch id {
	case RegionSnapshot:
		return "snapshot"
	case RegionTemp:
		return "temp"
	case RegionHumidity:
		return "humidity"
	default:
		return "unknown"
	}
}

// BufferSet is a fixed pool of equal-size regions carved from one backing
// allocation, with one active designator. Exactly one region is active at
// any instant. SetActive only records the request; the scan-out side
// observes it at the next Commit, which models the vertical refresh
// boundary, so a switch never lands mid-frame.
//
// Regions live for the process lifetime and are never reallocated.
type BufferSet struct {
	backing []byte
	mu      syncutil.RWMutex

	active   RegionID // requested front region
	scanning RegionID // committed at the last vsync
	cursor   RegionID // round-robin position for Back
}

// NewBufferSet allocates the pool. All regions start zeroed; the snapshot
// region is active.
func NewBufferSet() *BufferSet {
	return &BufferSet{
		backing: make([]byte, RegionCount*RegionSize),
	}
}

// Region returns the memory of one region. The slice has a fixed length
// and capacity of RegionSize and cannot grow into a neighbour.
func (b *BufferSet) Region(id RegionID) []byte {
	off := int(id) * RegionSize
	return b.backing[off : off+RegionSize : off+RegionSize]
}

// Active returns the requested front region.
func (b *BufferSet) Active() RegionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// SetActive requests id as the front region. The change is observed by
// the scan-out at the next Commit.
func (b *BufferSet) SetActive(id RegionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = id
}

// Back returns a region that is not currently active, rotating through
// the non-active regions on successive calls. It is safe to overwrite.
func (b *BufferSet) Back() RegionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < RegionCount; i++ {
		b.cursor = (b.cursor + 1) % RegionCount
		if b.cursor != b.active {
			return b.cursor
		}
	}
	// unreachable with more than one region
	return b.active
}

// Swap toggles the active designator between the two view regions.
// Legacy two-buffer mode; meaningful only while one of the two views is
// active.
func (b *BufferSet) Swap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == RegionTemp {
		b.active = RegionHumidity
	} else {
		b.active = RegionTemp
	}
}

// Commit applies the requested front region, making it visible to the
// scan-out. Called at the vertical refresh boundary.
func (b *BufferSet) Commit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanning = b.active
}

// Scanning returns the region the scan-out is reading.
func (b *BufferSet) Scanning() RegionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scanning
}

// FrameBytes returns the memory of the region being scanned out.
func (b *BufferSet) FrameBytes() []byte {
	return b.Region(b.Scanning())
}

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
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScanOutCommitsOnRefresh(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	b := NewBufferSet()
	s := NewScanOut(b, clock, DefaultVSyncInterval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	b.SetActive(RegionTemp)
	assert.Equal(t, RegionSnapshot, b.Scanning())

	clock.Advance(DefaultVSyncInterval)
	require.Eventually(t, func() bool {
		return b.Scanning() == RegionTemp
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestScanOutStopsOnCancel(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	b := NewBufferSet()
	s := NewScanOut(b, clock, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scan-out did not stop on cancel")
	}
}

func TestNewScanOutDefaults(t *testing.T) {
	t.Parallel()

	s := NewScanOut(NewBufferSet(), nil, -1)
	assert.Equal(t, DefaultVSyncInterval, s.interval)
	assert.NotNil(t, s.clock)
}

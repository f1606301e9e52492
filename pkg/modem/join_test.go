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

package modem

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinNetworkReusesAssociation(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		switch string(p) {
		case "AT":
			port.EnqueueString("OK\r\n")
		case "AT+CWJAP?":
			port.EnqueueString("+CWJAP:\"HomeNet\"\r\nOK\r\n")
		}
	}

	err := s.JoinNetwork("HomeNet", "secret")
	require.NoError(t, err)

	// Already associated from persisted state: no reset, no join.
	assert.NotContains(t, port.Writes(), "AT+RST")
	assert.NotContains(t, port.Writes(), "AT+CWJAP=")
}

func TestJoinNetworkProbeWarmsUp(t *testing.T) {
	t.Parallel()

	s, port, clock := newTestSession()
	probes := 0
	port.OnWrite = func(p []byte) {
		switch string(p) {
		case "AT":
			probes++
			// The link is cold: the first two probes get nothing back.
			if probes >= 3 {
				port.EnqueueString("OK\r\n")
			}
		case "AT+CWJAP?":
			port.EnqueueString("+CWJAP:\"HomeNet\"\r\nOK\r\n")
		}
	}

	start := clock.Now()
	err := s.JoinNetwork("HomeNet", "secret")
	require.NoError(t, err)
	assert.Equal(t, 3, probes)

	// Two full probe deadlines, two inter-attempt delays, plus the initial
	// settle before probing. The third probe and the reuse query answer
	// immediately.
	want := 100*time.Millisecond + 2*probeTimeout + 2*retryDelay
	assert.InDelta(t, float64(want), float64(clock.Since(start)), float64(100*time.Millisecond))
}

func TestJoinNetworkFullSequence(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		w := string(p)
		switch {
		case w == "AT":
			port.EnqueueString("OK\r\n")
		case w == "AT+CWJAP?":
			port.EnqueueString("No AP\r\nOK\r\n")
		case w == "AT+CWMODE=1":
			port.EnqueueString("OK\r\n")
		case strings.HasPrefix(w, "AT+CWJAP="):
			port.EnqueueString("WIFI CONNECTED\r\nWIFI GOT IP\r\n\r\nOK\r\n")
		}
	}

	err := s.JoinNetwork(`My"Net`, `p,w\x`)
	require.NoError(t, err)

	writes := port.Writes()
	assert.Contains(t, writes, "AT+RST\r\n")
	assert.Contains(t, writes, "AT+CWMODE=1")
	// Credentials are escaped before being embedded in the join command.
	assert.Contains(t, writes, `AT+CWJAP="My\"Net","p\,w\\x"`)
}

func TestJoinNetworkProbeFailure(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession()

	err := s.JoinNetwork("HomeNet", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestJoinNetworkJoinFailure(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		w := string(p)
		switch {
		case w == "AT":
			port.EnqueueString("OK\r\n")
		case w == "AT+CWMODE=1":
			port.EnqueueString("OK\r\n")
		case strings.HasPrefix(w, "AT+CWJAP="):
			port.EnqueueString("+CWJAP:3\r\nFAIL\r\n")
		}
	}

	err := s.JoinNetwork("HomeNet", "wrongpass")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJoinFailed)
}

func TestJoinNetworkModeSetFailure(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		switch string(p) {
		case "AT":
			port.EnqueueString("OK\r\n")
		case "AT+CWMODE=1":
			port.EnqueueString("ERROR\r\n")
		}
	}

	err := s.JoinNetwork("HomeNet", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModeSetFailed)
}

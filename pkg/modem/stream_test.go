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

	"github.com/MYBLtd/746Disco-Windy/pkg/modem/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptStream wires the standard passthrough command replies onto the
// port. The reply to the GET request itself is left to each test.
func scriptStream(port *testutils.MockPort, onGet func()) func([]byte) {
	return func(p []byte) {
		w := string(p)
		switch {
		case w == "AT+CIPMUX=0":
			port.EnqueueString("OK\r\n")
		case w == "AT+CIPMODE=1":
			port.EnqueueString("OK\r\n")
		case strings.HasPrefix(w, "AT+CIPSTART="):
			port.EnqueueString("CONNECT\r\n\r\nOK\r\n")
		case w == "AT+CIPSEND":
			port.EnqueueString("OK\r\n> ")
		case strings.HasPrefix(w, "GET "):
			if onGet != nil {
				onGet()
			}
		case w == "AT+CIPMODE=0":
			port.EnqueueString("OK\r\n")
		case w == "AT+CIPCLOSE":
			port.EnqueueString("OK\r\n")
		}
	}
}

func TestGetStreamSuccess(t *testing.T) {
	t.Parallel()

	s, port, clock := newTestSession()
	payload := []byte("RGB565 pixel data!")
	// The header terminator straddles a read boundary on purpose.
	port.OnWrite = scriptStream(port, func() {
		port.Enqueue(
			[]byte("HTTP/1.0 200 OK\r\nContent-Type: application/octet-stream\r\n\r"),
			[]byte("\n"),
			payload,
		)
	})

	dst := make([]byte, len(payload))
	start := clock.Now()
	n, err := s.GetStream("192.168.1.10", 8080, "/windy_temp.bin", dst)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, dst)

	writes := port.Writes()
	assert.Contains(t, writes, "AT+CIPMUX=0")
	assert.Contains(t, writes, "AT+CIPMODE=1")
	assert.Contains(t, writes, `AT+CIPSTART="TCP","192.168.1.10",8080`)
	assert.Contains(t, writes, "GET /windy_temp.bin HTTP/1.0\r\nHost: 192.168.1.10\r\n")
	// Command mode is restored through the escape sequence.
	assert.Contains(t, writes, "+++")
	assert.Contains(t, writes, "AT+CIPMODE=0")
	assert.Contains(t, writes, "AT+CIPCLOSE")
	// Both guard silences around the escape sequence were honored.
	assert.GreaterOrEqual(t, clock.Since(start), 2*guardSilence)
}

func TestGetStreamPartialBody(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	s.streamDeadline = 200 * time.Millisecond
	port.OnWrite = scriptStream(port, func() {
		port.EnqueueString("HTTP/1.0 200 OK\r\n\r\nSHORT")
	})

	dst := make([]byte, 32)
	n, err := s.GetStream("192.168.1.10", 8080, "/windy_temp.bin", dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStreamIncomplete)

	// What did arrive stays in place; the rest of dst is untouched.
	assert.Equal(t, 5, n)
	assert.Equal(t, "SHORT", string(dst[:n]))
	assert.Equal(t, byte(0), dst[n])

	// The link still gets restored to command mode.
	assert.Contains(t, port.Writes(), "+++")
	assert.Contains(t, port.Writes(), "AT+CIPMODE=0")
}

func TestGetStreamPassthroughEntryFailure(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	// Silence on every command: CIPMODE=1 cannot be confirmed, so no
	// connection may be attempted.
	dst := make([]byte, 8)
	_, err := s.GetStream("192.168.1.10", 8080, "/x.bin", dst)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectFailure)
	assert.NotContains(t, port.Writes(), "AT+CIPSTART=")
}

func TestGetStreamConnectFailureRestoresMode(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		switch string(p) {
		case "AT+CIPMUX=0", "AT+CIPMODE=1", "AT+CIPMODE=0":
			port.EnqueueString("OK\r\n")
		}
		// CIPSTART gets no reply.
	}

	dst := make([]byte, 8)
	_, err := s.GetStream("192.168.1.10", 8080, "/x.bin", dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailure)
	assert.Contains(t, port.Writes(), "AT+CIPMODE=0")
}

func TestGetStreamPromptFailureClosesAndRestores(t *testing.T) {
	t.Parallel()

	s, port, _ := newTestSession()
	port.OnWrite = func(p []byte) {
		w := string(p)
		switch {
		case w == "AT+CIPMUX=0", w == "AT+CIPMODE=1", w == "AT+CIPMODE=0",
			w == "AT+CIPCLOSE":
			port.EnqueueString("OK\r\n")
		case strings.HasPrefix(w, "AT+CIPSTART="):
			port.EnqueueString("CONNECT\r\n\r\nOK\r\n")
		}
		// The send prompt never arrives.
	}

	dst := make([]byte, 8)
	_, err := s.GetStream("192.168.1.10", 8080, "/x.bin", dst)
	require.Error(t, err)
	assert.Contains(t, port.Writes(), "AT+CIPCLOSE")
	assert.Contains(t, port.Writes(), "AT+CIPMODE=0")
}

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
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// streamReadTimeout is the per-byte idle timeout in the body loop:
	// short enough to exit quickly once the remote side closes, long
	// enough not to spin-burn the CPU.
	streamReadTimeout = 2 * time.Millisecond

	// streamDeadline is the hard limit on one whole streaming fetch.
	streamDeadline = 90 * time.Second

	// guardSilence is the quiet period on either side of the escape
	// sequence that returns the link to command mode. The firmware
	// requires strictly more than one second.
	guardSilence = 1020 * time.Millisecond
)

var headerEnd = [4]byte{'\r', '\n', '\r', '\n'}

// GetStream switches the link into raw passthrough, performs an HTTP/1.0
// GET and writes the response body straight into dst. The expected byte
// count is len(dst); the server is expected to close the connection after
// a fixed-size payload, so no length or chunk parsing happens.
//
// In passthrough mode the co-processor forwards raw TCP bytes with no
// framing, so the header/body boundary is found with a 4-byte rolling
// window over the stream. The link has no flow control: while the body
// loop runs, nothing else may touch a peripheral, including the log
// channel. A blocking write there is long enough to lose bytes at this
// baud rate.
//
// On return the link is back in command mode. The written count is always
// reported; a partial body stays in dst and is not rolled back.
func (s *Session) GetStream(host string, port int, path string, dst []byte) (int, error) {
	// Single-connection mode first; result deliberately ignored, the
	// firmware rejects it with ERROR when already set.
	_ = s.Run(Command{Payload: "AT+CIPMUX=0", Expect: "OK", Timeout: 2 * time.Second})

	err := s.Run(Command{Payload: "AT+CIPMODE=1", Expect: "OK", Timeout: 2 * time.Second})
	if err != nil {
		return 0, fmt.Errorf("enter passthrough: %w", err)
	}

	err = s.Run(Command{
		Payload: fmt.Sprintf("AT+CIPSTART=\"TCP\",\"%s\",%d", host, port),
		Expect:  "CONNECT",
		Timeout: connectTimeout,
	})
	if err != nil {
		_ = s.Run(Command{Payload: "AT+CIPMODE=0", Expect: "OK", Timeout: 2 * time.Second})
		return 0, fmt.Errorf("%w: %s:%d: %w", ErrConnectFailure, host, port, err)
	}

	// Length-less send request: the firmware answers with the prompt and
	// then forwards everything raw. From here on replies are no longer
	// tokenized.
	err = s.Run(Command{Payload: "AT+CIPSEND", Expect: ">", Timeout: promptTimeout})
	if err != nil {
		_ = s.Run(Command{Payload: "AT+CIPCLOSE", Timeout: 2 * time.Second})
		_ = s.Run(Command{Payload: "AT+CIPMODE=0", Expect: "OK", Timeout: 2 * time.Second})
		return 0, fmt.Errorf("send prompt: %w", err)
	}

	request := fmt.Sprintf(
		"GET %s HTTP/1.0\r\nHost: %s\r\nConnection: close\r\n\r\n",
		path, host,
	)
	if err := s.send([]byte(request)); err != nil {
		s.exitPassthrough()
		return 0, err
	}
	log.Debug().Msgf("GET %s sent, streaming response", path)

	written, readErr := s.streamBody(dst)

	log.Debug().Msgf("stream loop exit: %d/%d body bytes", written, len(dst))
	s.exitPassthrough()

	if readErr != nil {
		return written, fmt.Errorf("%w: %d of %d bytes: %w",
			ErrStreamIncomplete, written, len(dst), readErr)
	}
	if written < len(dst) {
		return written, fmt.Errorf("%w: %d of %d bytes",
			ErrStreamIncomplete, written, len(dst))
	}
	return written, nil
}

// streamBody scans for the end of the HTTP header, then writes every
// following byte into dst until it is full or the deadline passes.
// No logging in here: see the flow-control note on GetStream.
func (s *Session) streamBody(dst []byte) (int, error) {
	if err := s.port.SetReadTimeout(streamReadTimeout); err != nil {
		return 0, fmt.Errorf("failed to set read timeout: %w", err)
	}

	deadline := s.clock.Now().Add(s.streamDeadline)
	written := 0
	headerDone := false
	var tail [4]byte
	var b [1]byte

	for written < len(dst) && s.clock.Now().Before(deadline) {
		n, err := s.port.Read(b[:])
		if err != nil {
			return written, err
		}
		if n == 0 {
			continue
		}

		if !headerDone {
			tail[0], tail[1], tail[2], tail[3] = tail[1], tail[2], tail[3], b[0]
			if tail == headerEnd {
				headerDone = true
			}
			continue
		}

		dst[written] = b[0]
		written++
	}

	return written, nil
}

// exitPassthrough requests the firmware back to command mode without
// severing the physical link: one second of silence, the escape
// sequence, one second of silence. If the connection already closed, the
// firmware may have left passthrough on its own and the mode restore and
// close commands are harmless no-ops.
func (s *Session) exitPassthrough() {
	s.clock.Sleep(s.guardSilence)
	_ = s.send([]byte("+++"))
	s.clock.Sleep(s.guardSilence)
	_ = s.Run(Command{Payload: "AT+CIPMODE=0", Expect: "OK", Timeout: 3 * time.Second})
	_ = s.Run(Command{Payload: "AT+CIPCLOSE", Expect: "OK", Timeout: time.Second})
}

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
	"bytes"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	connectTimeout  = 10 * time.Second
	promptTimeout   = 5 * time.Second
	responseTimeout = 15 * time.Second
	closeMarker     = "\r\nCLOSED"
)

// GetText performs a text-mode HTTP GET on port 80 and returns the JSON
// body, at most maxLen bytes. The connection stays in normal command mode
// throughout; replies arrive interleaved with link status tokens, so the
// body is cut out of the accumulated response afterwards.
func (s *Session) GetText(host, path string, maxLen int) ([]byte, error) {
	request := fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n",
		path, host,
	)

	log.Debug().Msgf("tcp connect -> %s:80", host)
	err := s.Run(Command{
		Payload: fmt.Sprintf("AT+CIPSTART=\"TCP\",\"%s\",%d", host, 80),
		Expect:  "CONNECT",
		Timeout: connectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailure, err)
	}

	err = s.Run(Command{
		Payload: fmt.Sprintf("AT+CIPSEND=%d", len(request)),
		Expect:  ">",
		Timeout: promptTimeout,
	})
	if err != nil {
		_ = s.Run(Command{Payload: "AT+CIPCLOSE", Timeout: 2 * time.Second})
		return nil, fmt.Errorf("send prompt: %w", err)
	}

	if err := s.send([]byte(request)); err != nil {
		_ = s.Run(Command{Payload: "AT+CIPCLOSE", Timeout: 2 * time.Second})
		return nil, err
	}

	// The first reply tokens arrive quickly but the server body can take
	// several seconds, so never give up on idle alone: only on a close or
	// error indicator, or the deadline.
	s.n = 0
	s.dropped = 0
	if err := s.port.SetReadTimeout(readPollTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	deadline := s.clock.Now().Add(responseTimeout)
	var b [1]byte
	for s.clock.Now().Before(deadline) {
		n, err := s.port.Read(b[:])
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			continue
		}
		s.append(b[0])
		if bytes.Contains(s.acc[:s.n], []byte("CLOSED")) ||
			bytes.Contains(s.acc[:s.n], []byte("ERROR")) {
			break
		}
	}
	log.Debug().Msgf("received %d bytes total", s.n)

	body := extractBody(s.acc[:s.n], maxLen)
	if len(body) == 0 {
		return nil, ErrNoBody
	}
	log.Debug().Msgf("body: %s...", preview(body))
	return body, nil
}

// extractBody locates the payload inside a raw response: skip past the
// header blank line, advance to the first structural open brace to drop
// leading link noise, then copy up to the close marker.
func extractBody(resp []byte, maxLen int) []byte {
	var body []byte
	if i := bytes.Index(resp, []byte("\r\n\r\n")); i >= 0 {
		body = resp[i+4:]
	} else if i := bytes.Index(resp, []byte("\n\n")); i >= 0 {
		body = resp[i+2:]
	} else {
		return nil
	}

	if i := bytes.IndexByte(body, '{'); i >= 0 {
		body = body[i:]
	}

	if i := bytes.Index(body, []byte(closeMarker)); i >= 0 {
		body = body[:i]
	}
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out
}

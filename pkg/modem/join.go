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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Negotiation step errors. Each step of JoinNetwork fails with its own
// sentinel so logs show where the workflow broke. None of them is fatal
// to the caller: the display keeps running on cached images without WiFi.
var (
	ErrProbeFailed   = errors.New("no response to probe")
	ErrResetFailed   = errors.New("reset failed")
	ErrModeSetFailed = errors.New("station mode set failed")
	ErrJoinFailed    = errors.New("network join failed")
)

const (
	probeTimeout  = 2 * time.Second
	probeAttempts = 3
	resetSettle   = 3 * time.Second
	joinTimeout   = 20 * time.Second
)

// JoinNetwork runs the join workflow: probe the co-processor, reuse an
// existing association if its persisted state still holds one, otherwise
// hard-reset, set station mode and join the access point with escaped
// credentials.
func (s *Session) JoinNetwork(ssid, pass string) error {
	// A bare CRLF first flushes any partial command sitting in the
	// co-processor's own UART buffer, which would make the first real
	// command return ERROR.
	_ = s.send([]byte("\r\n"))
	s.clock.Sleep(100 * time.Millisecond)
	s.flush()

	// The first probe can legitimately fail right after power-up.
	log.Debug().Msg("probing co-processor")
	err := s.Run(Command{
		Payload: "AT",
		Expect:  "OK",
		Timeout: probeTimeout,
		Retries: probeAttempts,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	// The co-processor auto-reconnects from persisted credentials. If it
	// already holds an association, skip the reset and join entirely.
	err = s.Run(Command{
		Payload: "AT+CWJAP?",
		Expect:  "+CWJAP:",
		Timeout: probeTimeout,
	})
	if err == nil {
		log.Info().Msg("already associated, reusing persisted connection")
		return nil
	}

	log.Debug().Msg("resetting co-processor")
	if err := s.send([]byte("AT+RST\r\n")); err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}
	s.clock.Sleep(resetSettle)
	s.flush()
	err = s.Run(Command{Payload: "AT", Expect: "OK", Timeout: 3 * time.Second})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	err = s.Run(Command{Payload: "AT+CWMODE=1", Expect: "OK", Timeout: 3 * time.Second})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModeSetFailed, err)
	}

	log.Info().Msgf("joining %q", ssid)
	join := fmt.Sprintf("AT+CWJAP=\"%s\",\"%s\"",
		EscapeJoinArg(ssid), EscapeJoinArg(pass))
	err = s.Run(Command{
		Payload: join,
		Expect:  "WIFI GOT IP",
		Timeout: joinTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}

	log.Info().Msg("network joined, got address")
	return nil
}

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

// Package modem drives the AT command protocol of a WiFi co-processor
// over a byte-oriented serial link and turns it into a network transport:
// joining an access point, text-mode HTTP GET, and raw passthrough
// streaming of fixed-size binary payloads.
package modem

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// accumulatorSize caps the reply buffer. Once full, further bytes are
	// dropped and matching continues on the truncated data. See the note
	// on Session.
	accumulatorSize = 2048

	// readPollTimeout is the per-read idle timeout while waiting for a
	// command reply.
	readPollTimeout = 10 * time.Millisecond

	// flushReadTimeout is used when draining stale input before a command.
	flushReadTimeout = time.Millisecond

	// retryDelay separates whole-exchange retry attempts.
	retryDelay = 300 * time.Millisecond
)

// Session owns the serial port and the reply accumulator for one
// co-processor link. It is not safe for concurrent use; the protocol is
// strictly request/response on a single link.
//
// Known limitation: when a reply
// exceeds the fixed accumulator capacity before the expected token is
// found, the overflow bytes are dropped silently and matching continues
// on the truncated data. A token that would only appear past the cap is
// never matched.
type Session struct {
	port  Port
	clock clockwork.Clock

	acc     [accumulatorSize]byte
	n       int
	dropped int

	retryDelay     time.Duration
	streamDeadline time.Duration
	guardSilence   time.Duration
}

// NewSession wraps an open port. A nil clock selects the real clock.
func NewSession(port Port, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		port:           port,
		clock:          clock,
		retryDelay:     retryDelay,
		streamDeadline: streamDeadline,
		guardSilence:   guardSilence,
	}
}

// Response returns the bytes accumulated since the last command was
// issued. The slice aliases the session buffer and is only valid until
// the next exchange.
func (s *Session) Response() []byte {
	return s.acc[:s.n]
}

// Dropped reports how many reply bytes were discarded because the
// accumulator was full during the last exchange.
func (s *Session) Dropped() int {
	return s.dropped
}

// Close closes the underlying port.
func (s *Session) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Run sends cmd and waits for its expected token, retrying the whole
// exchange up to cmd.Retries times with a short delay between attempts.
func (s *Session) Run(cmd Command) error {
	attempts := cmd.Retries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.clock.Sleep(s.retryDelay)
		}
		err = s.exchange(cmd)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("command %q: %w", cmd.Payload, err)
}

// exchange performs one attempt: flush stale input, send the payload,
// then read byte-by-byte until the token matches or the deadline passes.
func (s *Session) exchange(cmd Command) error {
	s.flush()
	s.n = 0
	s.dropped = 0

	if cmd.Payload != "" {
		log.Debug().Msgf("[AT>] %s", cmd.Payload)
		if err := s.send([]byte(cmd.Payload)); err != nil {
			return err
		}
		if err := s.send([]byte("\r\n")); err != nil {
			return err
		}
	}

	if err := s.port.SetReadTimeout(readPollTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	deadline := s.clock.Now().Add(cmd.Timeout)
	expect := []byte(cmd.Expect)
	var b [1]byte

	for s.clock.Now().Before(deadline) {
		n, err := s.port.Read(b[:])
		if err != nil {
			return fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			// Idle this round; keep polling until the deadline. Replies
			// can arrive in bursts seconds apart.
			continue
		}

		s.append(b[0])

		// Search the whole accumulator, not just the new byte: the token
		// may span two reads.
		if len(expect) > 0 && bytes.Contains(s.acc[:s.n], expect) {
			log.Debug().Msgf("[AT<] ok (%q found)", cmd.Expect)
			return nil
		}
	}

	if cmd.Expect == "" {
		return nil
	}
	if s.n == 0 {
		return fmt.Errorf("waiting for %q: %w", cmd.Expect, ErrCommandTimeout)
	}
	log.Debug().Msgf("[AT!] waiting for %q, got: %s", cmd.Expect, preview(s.acc[:s.n]))
	return fmt.Errorf("waiting for %q: %w", cmd.Expect, ErrUnexpectedResponse)
}

// flush discards bytes already pending on the link, left over from a
// previous exchange.
func (s *Session) flush() {
	if err := s.port.SetReadTimeout(flushReadTimeout); err != nil {
		return
	}
	var b [1]byte
	for i := 0; i < accumulatorSize*4; i++ {
		n, err := s.port.Read(b[:])
		if err != nil || n == 0 {
			return
		}
	}
}

func (s *Session) send(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

func (s *Session) append(b byte) {
	if s.n < accumulatorSize {
		s.acc[s.n] = b
		s.n++
		return
	}
	s.dropped++
}

// preview renders up to 80 bytes of a reply with control characters
// replaced, for log output.
func preview(p []byte) string {
	if len(p) > 80 {
		p = p[:80]
	}
	out := make([]byte, len(p))
	for i, b := range p {
		if b < 0x20 && b != '\r' && b != '\n' {
			out[i] = '.'
		} else {
			out[i] = b
		}
	}
	return string(out)
}

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
	"time"
)

// Command is one text exchange with the co-processor. The payload is sent
// followed by CRLF, then the reply is accumulated until Expect appears as
// a substring or Timeout elapses.
type Command struct {
	// Payload is sent verbatim, without the trailing CRLF. Empty means
	// listen only (used to drain replies after a raw send).
	Payload string
	// Expect is the success token. Empty means no matching is performed
	// and the exchange reports success at the deadline.
	Expect string
	// Timeout bounds a single exchange attempt.
	Timeout time.Duration
	// Retries is the total number of attempts. Zero behaves as one.
	Retries int
}

var (
	// ErrCommandTimeout means nothing at all arrived before the deadline.
	ErrCommandTimeout = errors.New("command timeout")
	// ErrUnexpectedResponse means a reply arrived but the expected token
	// never appeared in it.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrConnectFailure means the TCP connection could not be opened.
	ErrConnectFailure = errors.New("connect failed")
	// ErrStreamIncomplete means fewer body bytes than expected arrived
	// before the stream deadline. The destination holds the partial data.
	ErrStreamIncomplete = errors.New("stream incomplete")
	// ErrNoBody means no response body could be located after the headers.
	ErrNoBody = errors.New("no response body")
)

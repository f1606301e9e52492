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

// Package testutils provides a scripted serial port and a non-blocking
// fake clock for driving the modem session in tests.
package testutils

import (
	"bytes"
	"errors"
	"time"

	"github.com/MYBLtd/746Disco-Windy/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
)

// MockPort is a scripted serial port. Read data is queued as chunks so
// tests control exactly where low-level read boundaries fall; an empty
// queue behaves like an idle link, returning (0, nil) after the
// configured read timeout. When built with a fake clock, idle reads
// advance it by the read timeout instead of sleeping, which makes
// deadline behavior fully deterministic.
type MockPort struct {
	clock *clockwork.FakeClock

	// OnWrite observes every write; tests use it to queue scripted
	// replies keyed off the command just sent.
	OnWrite func(p []byte)

	ReadErr    error
	CloseErr   error
	TimeoutErr error

	mu          syncutil.RWMutex
	chunks      [][]byte
	writes      bytes.Buffer
	readTimeout time.Duration
	closed      bool
}

// NewMockPort creates a mock port. A nil clock makes idle reads sleep for
// real, matching a hardware port's blocking timeout.
func NewMockPort(clock *clockwork.FakeClock) *MockPort {
	return &MockPort{
		clock:       clock,
		readTimeout: time.Millisecond,
	}
}

// Enqueue appends read data. Each argument is delivered as its own chunk.
func (m *MockPort) Enqueue(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		buf := make([]byte, len(c))
		copy(buf, c)
		m.chunks = append(m.chunks, buf)
	}
}

// EnqueueString appends one chunk of read data.
func (m *MockPort) EnqueueString(s string) {
	m.Enqueue([]byte(s))
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if m.ReadErr != nil {
		err := m.ReadErr
		m.mu.Unlock()
		return 0, err
	}

	if len(m.chunks) > 0 {
		n := copy(p, m.chunks[0])
		if n == len(m.chunks[0]) {
			m.chunks = m.chunks[1:]
		} else {
			m.chunks[0] = m.chunks[0][n:]
		}
		m.mu.Unlock()
		return n, nil
	}

	timeout := m.readTimeout
	m.mu.Unlock()

	// Idle link: block for the read timeout, then report no data.
	if m.clock != nil {
		m.clock.Advance(timeout)
	} else {
		time.Sleep(timeout)
	}
	return 0, nil
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.New("port closed")
	}
	m.writes.Write(p)
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseErr
}

func (m *MockPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TimeoutErr != nil {
		return m.TimeoutErr
	}
	m.readTimeout = t
	return nil
}

// Writes returns everything written to the port so far.
func (m *MockPort) Writes() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes.String()
}

// Pending reports how many queued read bytes remain undelivered.
func (m *MockPort) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.chunks {
		n += len(c)
	}
	return n
}

// IsClosed reports whether Close has been called.
func (m *MockPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

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

// Package display sequences downloads and buffer switches so the panel
// always shows a fully written image: fetch into a non-visible region,
// publish on success, alternate views on a timer, tolerate failure.
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/MYBLtd/746Disco-Windy/pkg/config"
	"github.com/MYBLtd/746Disco-Windy/pkg/framebuffer"
	"github.com/MYBLtd/746Disco-Windy/pkg/weather"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Fetcher is the network transport the orchestrator drives. Implemented
// by modem.Session.
type Fetcher interface {
	JoinNetwork(ssid, pass string) error
	GetStream(host string, port int, path string, dst []byte) (int, error)
	GetText(host, path string, maxLen int) ([]byte, error)
}

// StatusWriter shows a short status message on the visible surface. The
// glyph rasterizer behind it is not part of this package.
type StatusWriter interface {
	Status(msg string)
}

// WeatherSink receives the parsed current conditions for the side panel.
type WeatherSink interface {
	UpdateWeather(d weather.Data)
}

const (
	defaultTickInterval = 500 * time.Millisecond
	weatherBodyMax      = 1600
)

// Orchestrator runs the boot sequence and the alternation/refresh loop on
// a single goroutine. All waiting is deadline-based; there is no external
// cancel besides the context.
type Orchestrator struct {
	fetch   Fetcher
	buffers *framebuffer.BufferSet
	cfg     *config.Instance
	clock   clockwork.Clock
	status  StatusWriter
	sink    WeatherSink

	tickInterval time.Duration
	// populated marks view regions holding a complete image. A region is
	// unmarked before it is overwritten and re-marked only on success, so
	// a partial download can never be published.
	populated map[framebuffer.RegionID]bool
}

// New creates an orchestrator. A nil clock selects the real clock; nil
// status and sink fall back to log-only implementations.
func New(
	fetch Fetcher,
	buffers *framebuffer.BufferSet,
	cfg *config.Instance,
	clock clockwork.Clock,
	status StatusWriter,
	sink WeatherSink,
) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if status == nil {
		status = LogStatus{}
	}
	return &Orchestrator{
		fetch:        fetch,
		buffers:      buffers,
		cfg:          cfg,
		clock:        clock,
		status:       status,
		sink:         sink,
		tickInterval: defaultTickInterval,
		populated:    make(map[framebuffer.RegionID]bool),
	}
}

// Run boots the display and then alternates and refreshes until the
// context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.boot()

	flip := o.cfg.FlipInterval()
	refresh := o.cfg.RefreshInterval()
	nextFlip := o.clock.Now().Add(flip)
	nextFetch := o.clock.Now().Add(refresh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.clock.After(o.tickInterval):
		}

		now := o.clock.Now()

		if !now.Before(nextFlip) {
			o.alternate()
			nextFlip = now.Add(flip)
		}

		if !now.Before(nextFetch) {
			if o.refreshViews() {
				nextFetch = o.clock.Now().Add(refresh)
				nextFlip = o.clock.Now().Add(flip)
			} else {
				// Keep whatever is on screen and try again after the
				// back-off.
				nextFetch = o.clock.Now().Add(o.cfg.RetryBackoff())
			}
		}
	}
}

// boot shows the built-in snapshot, joins the network and downloads both
// views. Network failure is tolerated: the snapshot stays up.
func (o *Orchestrator) boot() {
	o.buffers.SetActive(framebuffer.RegionSnapshot)

	net := o.cfg.Network()
	o.status.Status("Connecting WiFi...")
	if err := o.fetch.JoinNetwork(net.SSID, net.Password); err != nil {
		log.Warn().Err(err).Msg("network join failed, continuing offline")
		o.status.Status("WiFi failed")
	}

	o.status.Status("DL temp...")
	if o.download(framebuffer.RegionTemp) == nil {
		o.buffers.SetActive(framebuffer.RegionTemp)
	}

	o.status.Status("DL hum...")
	_ = o.download(framebuffer.RegionHumidity)

	o.refreshWeather()

	if o.populated[framebuffer.RegionTemp] {
		o.buffers.SetActive(framebuffer.RegionTemp)
		o.status.Status("OK")
	}
}

// alternate switches to the other populated view. No I/O happens here.
func (o *Orchestrator) alternate() {
	var other framebuffer.RegionID
	switch o.buffers.Active() {
	case framebuffer.RegionTemp:
		other = framebuffer.RegionHumidity
	case framebuffer.RegionHumidity:
		other = framebuffer.RegionTemp
	default:
		other = framebuffer.RegionTemp
	}
	if o.populated[other] {
		o.buffers.SetActive(other)
	}
}

// refreshViews re-downloads both views, each into a region that is not
// visible at the time, and reports whether both succeeded.
func (o *Orchestrator) refreshViews() bool {
	o.showOther(framebuffer.RegionTemp)
	o.status.Status("DL temp...")
	errTemp := o.download(framebuffer.RegionTemp)

	o.showOther(framebuffer.RegionHumidity)
	o.status.Status("DL hum...")
	errHum := o.download(framebuffer.RegionHumidity)

	o.refreshWeather()

	if errTemp != nil || errHum != nil {
		o.status.Status("Fetch failed")
		// Leave the best populated view up rather than the snapshot the
		// failed download hid behind.
		if o.populated[framebuffer.RegionTemp] {
			o.buffers.SetActive(framebuffer.RegionTemp)
		} else if o.populated[framebuffer.RegionHumidity] {
			o.buffers.SetActive(framebuffer.RegionHumidity)
		}
		return false
	}

	o.buffers.SetActive(framebuffer.RegionTemp)
	o.status.Status("OK")
	return true
}

// showOther makes a region other than target visible before target is
// overwritten. The panel must never scan a buffer being written, so when
// the opposite view holds no complete image the built-in snapshot goes up
// instead.
func (o *Orchestrator) showOther(target framebuffer.RegionID) {
	other := framebuffer.RegionTemp
	if target == framebuffer.RegionTemp {
		other = framebuffer.RegionHumidity
	}
	if o.populated[other] {
		o.buffers.SetActive(other)
		return
	}
	o.buffers.SetActive(framebuffer.RegionSnapshot)
}

// download streams one view into its region. The region loses its
// populated mark for the duration of the write.
func (o *Orchestrator) download(id framebuffer.RegionID) error {
	srv := o.cfg.Server()
	path := srv.TempPath
	if id == framebuffer.RegionHumidity {
		path = srv.HumidityPath
	}

	o.populated[id] = false
	log.Info().Msgf("downloading %s -> %s", path, id)
	written, err := o.fetch.GetStream(srv.Host, srv.Port, path, o.buffers.Region(id))
	if err != nil {
		log.Error().Err(err).Msgf("download %s failed after %d bytes", path, written)
		return fmt.Errorf("download %s: %w", path, err)
	}

	o.populated[id] = true
	return nil
}

// refreshWeather updates the side panel numbers; entirely optional.
func (o *Orchestrator) refreshWeather() {
	api := o.cfg.API()
	if o.sink == nil || api.Host == "" {
		return
	}

	body, err := o.fetch.GetText(api.Host, api.Path, weatherBodyMax)
	if err != nil {
		log.Warn().Err(err).Msg("weather fetch failed")
		return
	}
	d, err := weather.Parse(body)
	if err != nil {
		log.Warn().Err(err).Msg("weather response unusable")
		return
	}
	o.sink.UpdateWeather(d)
}

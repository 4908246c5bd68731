// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Limit switch monitors.

package plotter

import (
	"log"
	"sync"
	"time"
)

// Boundary identifies which end of the travel a switch marks.
type Boundary int

const (
	Origin   Boundary = iota // Position 0
	FarLimit                 // Position == width
)

func (b Boundary) String() string {
	if b == Origin {
		return "origin"
	}
	return "limit"
}

// LimitEvent records a limit switch being pressed.
type LimitEvent struct {
	Boundary Boundary
	Time     time.Time
	Position int // Position after the event was processed
}

// handoff counts switch presses whose bookkeeping has not yet run,
// so that a finished move can wait for the position updates
// caused by the switch that ended it.
type handoff struct {
	mu   sync.Mutex
	n    int
	idle *sync.Cond
}

func newHandoff() *handoff {
	h := new(handoff)
	h.idle = sync.NewCond(&h.mu)
	return h
}

func (h *handoff) begin() {
	h.mu.Lock()
	h.n++
	h.mu.Unlock()
}

func (h *handoff) end() {
	h.mu.Lock()
	h.n--
	if h.n == 0 {
		h.idle.Broadcast()
	}
	h.mu.Unlock()
}

func (h *handoff) wait() {
	h.mu.Lock()
	for h.n > 0 {
		h.idle.Wait()
	}
	h.mu.Unlock()
}

// Monitor watches one limit switch.
// The edge handler runs in the switch's interrupt context and only
// aborts the move and hands off to the monitor goroutine, which
// applies the position and width bookkeeping for the switch.
type Monitor struct {
	Name     string
	boundary Boundary
	sw       Switch
	other    Switch
	led      Pin
	flash    time.Duration
	exec     *Executor
	flags    *Flags
	edges    *signal       // Notified on every edge of either switch
	sem      chan struct{} // Binary hand-off from the edge handler
	stop     chan struct{}
	mu       sync.Mutex // Guards last, presses, stopped and hand-offs to the driver
	last     LimitEvent
	presses  int
	stopped  bool
}

func newMonitor(b Boundary, sw, other Switch, led Pin, p *Plotter) *Monitor {
	m := new(Monitor)
	m.Name = b.String()
	m.boundary = b
	m.sw = sw
	m.other = other
	m.led = led
	m.flash = p.settings.Flash
	m.exec = p.exec
	m.flags = p.flags
	m.edges = p.edges
	m.sem = make(chan struct{}, 1)
	m.stop = p.stop
	go m.driver()
	sw.OnEdge(m.edge)
	return m
}

// edge is the switch edge handler. It must not block.
func (m *Monitor) edge(pressed bool) {
	m.edges.notify()
	if !pressed {
		return
	}
	if m.other.Read() {
		// Both ends pressed at once cannot happen on a healthy rig.
		m.flags.Set(Fault)
		m.flags.Clear(Go)
		m.exec.Abort()
		log.Printf("%s: both limit switches pressed, motion halted", m.Name)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.exec.Abort()
		return
	}
	m.exec.handoff.begin()
	m.exec.Abort()
	select {
	case m.sem <- struct{}{}:
	default:
		// A hand-off is already pending and will cover this press.
		m.exec.handoff.end()
	}
}

// driver is the monitor goroutine.
func (m *Monitor) driver() {
	for {
		select {
		case <-m.stop:
			m.shutdown()
			return
		case <-m.sem:
		}
		m.flags.Clear(Go)
		m.update()
		m.exec.handoff.end()
		m.indicate()
	}
}

// shutdown stops further hand-offs and releases any still pending,
// so moves after Close are not left waiting on bookkeeping.
func (m *Monitor) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	select {
	case <-m.sem:
		m.exec.handoff.end()
	default:
	}
}

// update applies the bookkeeping for a press of this switch.
func (m *Monitor) update() {
	bits := m.flags.Get()
	widthKnown := bits&MaxWidthFound != 0
	posKnown := bits&PositionFound != 0
	switch {
	case !widthKnown && m.boundary == Origin && bits&Calibrating != 0 && !posKnown:
		m.exec.SetPosition(0)
		m.flags.Set(PositionFound)
		log.Printf("%s: position found", m.Name)
	case !widthKnown && m.boundary == FarLimit && bits&(Calibrating|PositionFound) != 0:
		w := m.exec.setWidthFromPosition()
		m.flags.Set(MaxWidthFound)
		// The far end does not locate the origin again.
		m.flags.Clear(PositionFound)
		log.Printf("%s: width found (%d steps)", m.Name, w)
	case widthKnown && !posKnown:
		pos := 0
		if m.boundary == FarLimit {
			pos = m.exec.Width()
		}
		m.exec.SetPosition(pos)
		m.flags.Set(PositionFound)
		log.Printf("%s: position reset to %d", m.Name, pos)
	}
	m.mu.Lock()
	m.last = LimitEvent{Boundary: m.boundary, Time: time.Now(), Position: m.exec.Position()}
	m.presses++
	m.mu.Unlock()
}

// indicate flashes the indicator pin without blocking the monitor.
func (m *Monitor) indicate() {
	if m.led == nil || m.flash <= 0 {
		return
	}
	m.led.Write(true)
	time.AfterFunc(m.flash, func() {
		m.led.Write(false)
	})
}

// Last returns the most recent event and the number of presses seen.
func (m *Monitor) Last() (LimitEvent, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.presses
}

// Pressed returns the current switch state.
func (m *Monitor) Pressed() bool {
	return m.sw.Read()
}

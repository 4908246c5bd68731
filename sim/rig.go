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

// Package sim simulates a plotter carriage on a rail between two limit
// switches, driven by a stepper motor that loses steps when driven
// too fast.
package sim

import (
	"sync"
)

// Distance the carriage can travel past a switch before hitting
// the end of the rail.
const hardStop = 5

// Rig is a simulated rail. The origin switch is pressed when the
// carriage is at or before 0, and the limit switch when it is at or
// past the span. The step pin moves the carriage on its rising edge,
// towards the origin when the direction pin is high.
type Rig struct {
	Timer     *Timer
	Step      *Pin
	Dir       *Pin
	Origin    *Switch
	Limit     *Switch
	OriginLED *Pin
	LimitLED  *Pin

	mu       sync.Mutex
	x        int     // Carriage location
	span     int     // Location of the limit switch
	stall    float64 // Steps are lost above this rate
	lost     int
	moved    int
	glitches int // Direction changes while the timer is running
}

// New creates a rig with the limit switch span steps from the origin
// switch, and the carriage at start. Steps are lost when the
// step rate exceeds stall; 0 disables stalling.
func New(span, start int, stall float64) *Rig {
	r := &Rig{x: start, span: span, stall: stall}
	r.Timer = NewTimer()
	r.Step = &Pin{onWrite: r.step}
	r.Dir = &Pin{onWrite: r.direction}
	r.Origin = &Switch{name: "origin"}
	r.Limit = &Switch{name: "limit"}
	r.OriginLED = new(Pin)
	r.LimitLED = new(Pin)
	r.Origin.state = r.x <= 0
	r.Limit.state = r.x >= r.span
	return r
}

// Location returns the true carriage location.
func (r *Rig) Location() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x
}

// Place moves the carriage directly, firing any switch edges.
func (r *Rig) Place(x int) {
	r.mu.Lock()
	r.x = x
	r.mu.Unlock()
	r.update()
}

// Span returns the distance between the switches.
func (r *Rig) Span() int {
	return r.span
}

// Lost returns the number of steps lost to stalling.
func (r *Rig) Lost() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost
}

// Moved returns the number of steps that moved the carriage.
func (r *Rig) Moved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moved
}

// Glitches returns the number of times the direction pin changed
// while the timer was running.
func (r *Rig) Glitches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.glitches
}

func (r *Rig) direction(old, v bool) {
	if old != v && r.Timer.Running() {
		r.mu.Lock()
		r.glitches++
		r.mu.Unlock()
	}
}

// step is called on each write of the step pin.
func (r *Rig) step(old, v bool) {
	if old || !v {
		return
	}
	rate := r.Timer.Rate()
	r.mu.Lock()
	if r.stall > 0 && rate > r.stall {
		r.lost++
		r.mu.Unlock()
		return
	}
	if r.Dir.Read() {
		if r.x > -hardStop {
			r.x--
			r.moved++
		}
	} else if r.x < r.span+hardStop {
		r.x++
		r.moved++
	}
	r.mu.Unlock()
	r.update()
}

// update fires the edge handlers of any switch that changed.
func (r *Rig) update() {
	r.mu.Lock()
	o, l := r.x <= 0, r.x >= r.span
	r.mu.Unlock()
	r.Origin.set(o, false)
	r.Limit.set(l, false)
}

// Pin is a simulated digital pin.
type Pin struct {
	mu      sync.Mutex
	v       bool
	writes  int
	onWrite func(old, v bool)
}

func (p *Pin) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v
}

func (p *Pin) Write(v bool) {
	p.mu.Lock()
	old := p.v
	p.v = v
	p.writes++
	f := p.onWrite
	p.mu.Unlock()
	if f != nil {
		f(old, v)
	}
}

func (p *Pin) Toggle() bool {
	p.mu.Lock()
	v := !p.v
	p.mu.Unlock()
	p.Write(v)
	return v
}

// Writes returns the number of times the pin has been written.
func (p *Pin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Switch is a simulated limit switch.
type Switch struct {
	name    string
	mu      sync.Mutex
	state   bool // Position derived state
	forced  bool
	force   bool // Forced state
	handler func(bool)
}

// Read returns true if the switch is pressed.
func (s *Switch) Read() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

// OnEdge registers the handler called when the switch changes state.
// The handler is called from the goroutine that caused the change.
func (s *Switch) OnEdge(f func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = f
}

// Force holds the switch in the given state, as if a foreign
// object pressed it or the wiring failed.
func (s *Switch) Force(pressed bool) {
	s.set(pressed, true)
}

// Release removes any forced state.
func (s *Switch) Release() {
	s.mu.Lock()
	before := s.current()
	s.forced = false
	after := s.current()
	f := s.handler
	s.mu.Unlock()
	if before != after && f != nil {
		f(after)
	}
}

func (s *Switch) current() bool {
	if s.forced {
		return s.force
	}
	return s.state
}

func (s *Switch) set(v, force bool) {
	s.mu.Lock()
	before := s.current()
	if force {
		s.forced = true
		s.force = v
	} else {
		s.state = v
	}
	after := s.current()
	f := s.handler
	s.mu.Unlock()
	if before != after && f != nil {
		f(after)
	}
}

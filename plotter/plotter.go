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

// Package plotter drives a single axis pen plotter carriage using a
// stepper motor between two limit switches.
package plotter

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Mode is the overall operating mode derived from the flags.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeCalibrating
	ModeReady
	ModePlotting
	ModeFaulted
)

var modeNames = []string{"uninitialized", "calibrating", "ready", "plotting", "faulted"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Plotter ties together the executor, the limit switch monitors,
// calibration and the request queue.
type Plotter struct {
	settings *Settings
	hw       Hardware
	flags    *Flags
	exec     *Executor
	origin   *Monitor
	limit    *Monitor
	edges    *signal // Notified on every switch edge
	queue    chan Request
	stop     chan struct{}
	ready    chan struct{} // Closed when calibration completes
	mu       sync.Mutex
	stats    *Stats
	retired  int
	closed   bool
}

// NewPlotter creates a plotter using the hardware provided.
// The monitors are started immediately, but no motion takes place
// until Run or Calibrate is called.
func NewPlotter(hw Hardware, s *Settings) *Plotter {
	p := new(Plotter)
	p.settings = s
	p.hw = hw
	p.flags = NewFlags()
	p.exec = NewExecutor(hw, p.flags, s)
	p.edges = newSignal()
	p.queue = make(chan Request, QueueSize)
	p.stop = make(chan struct{})
	p.ready = make(chan struct{})
	p.origin = newMonitor(Origin, hw.Origin, hw.Limit, hw.OriginLED, p)
	p.limit = newMonitor(FarLimit, hw.Limit, hw.Origin, hw.LimitLED, p)
	return p
}

// Run waits for the switches to be released, calibrates, and then
// executes queued requests until the context is cancelled.
func (p *Plotter) Run(ctx context.Context) error {
	if err := p.WaitClear(ctx); err != nil {
		return err
	}
	if _, err := p.Calibrate(ctx); err != nil {
		return err
	}
	if p.settings.Resume {
		p.Resume()
	}
	return p.Dispatch(ctx)
}

// WaitClear blocks until neither limit switch is pressed.
func (p *Plotter) WaitClear(ctx context.Context) error {
	logged := false
	for {
		ch := p.edges.wait()
		if !p.hw.Origin.Read() && !p.hw.Limit.Read() {
			return nil
		}
		if !logged {
			log.Printf("plotter: waiting for limit switches to be released")
			logged = true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Calibrate finds the origin and the width, optionally measures the
// maximum speed, and leaves the carriage in the centre.
func (p *Plotter) Calibrate(ctx context.Context) (*Stats, error) {
	c := &calibrator{p: p}
	st, err := c.run(ctx)
	if err != nil {
		log.Printf("plotter: calibration failed: %v", err)
		return nil, err
	}
	p.mu.Lock()
	first := p.stats == nil
	p.stats = st
	p.mu.Unlock()
	if first {
		close(p.ready)
	}
	return st, nil
}

// Ready blocks until the first calibration has completed.
func (p *Plotter) Ready(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ready:
		return nil
	}
}

// Width blocks until the width has been measured and returns it.
func (p *Plotter) Width(ctx context.Context) (int, error) {
	if _, err := p.flags.Wait(ctx, MaxWidthFound, false, true); err != nil {
		return 0, err
	}
	return p.exec.Width(), nil
}

// Pause stops the dispatcher after the current request.
func (p *Plotter) Pause() {
	p.flags.Clear(Go)
}

// Resume lets the dispatcher continue.
func (p *Plotter) Resume() {
	p.flags.Set(Go)
}

// Flags returns the current flag bits.
func (p *Plotter) Flags() Flag {
	return p.flags.Get()
}

// State returns a snapshot of the motion state.
func (p *Plotter) State() State {
	return p.exec.Snapshot()
}

// Executor returns the move executor.
func (p *Plotter) Executor() *Executor {
	return p.exec
}

// Stats returns the results of the last calibration, or nil.
func (p *Plotter) Stats() *Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Switches returns the current state of the origin and limit switches.
func (p *Plotter) Switches() (origin, limit bool) {
	return p.origin.Pressed(), p.limit.Pressed()
}

// Events returns the last event from each switch monitor.
func (p *Plotter) Events() (origin, limit LimitEvent) {
	origin, _ = p.origin.Last()
	limit, _ = p.limit.Last()
	return origin, limit
}

// Mode returns the operating mode.
func (p *Plotter) Mode() Mode {
	f := p.flags.Get()
	switch {
	case f&Fault != 0:
		return ModeFaulted
	case f&Calibrating != 0:
		return ModeCalibrating
	case f&Plotting != 0:
		return ModePlotting
	case f&MaxWidthFound != 0 && p.Stats() != nil:
		return ModeReady
	}
	return ModeUninitialized
}

// Close stops the monitors and aborts any move in progress.
func (p *Plotter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.stop)
	p.exec.Abort()
}

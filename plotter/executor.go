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

// Move execution and step generation

package plotter

import (
	"errors"
	"sync"
	"time"
)

// Fraction of the journey at each end used for ramping speed up and down.
const rampZone = 0.1

// ErrFault is returned when motion is refused or halted because both
// limit switches are pressed.
var ErrFault = errors.New("limit switch fault")

// Direction of travel. Clockwise drives the direction pin high and
// moves the carriage towards the origin switch.
type Direction int

const (
	CounterClockwise Direction = iota // Towards the far limit, position increases
	Clockwise                         // Towards the origin, position decreases
)

func (d Direction) String() string {
	if d == Clockwise {
		return "cw"
	}
	return "ccw"
}

// State is the motion state of the plotter.
// Speeds are in pulses per second, distances in steps.
type State struct {
	Position     int       `json:"position"`
	Width        int       `json:"width"`
	MaxSpeed     float64   `json:"max_speed"`
	TargetSpeed  float64   `json:"target_speed"`
	CurrentSpeed float64   `json:"current_speed"`
	RampRate     float64   `json:"ramp_rate"`
	Remaining    int       `json:"remaining"`
	Journey      int       `json:"journey"`
	Direction    Direction `json:"direction"`
}

// Result describes how a move ended.
type Result struct {
	Requested int  // Steps requested
	Travelled int  // Steps taken
	Remaining int  // Steps not taken
	Aborted   bool // True if a limit switch ended the move early
}

// Executor owns the motion state and the single in-flight move.
// Moves block the caller until the last step is taken or a limit
// switch aborts the move. Tick is the timer handler that generates
// the steps.
type Executor struct {
	hw        Hardware
	flags     *Flags
	handoff   *handoff
	settle    time.Duration
	initial   float64       // Speed at the start of each move
	done      chan struct{} // Move completion
	moveMu    sync.Mutex    // Serializes moves
	mu        sync.Mutex    // Guards st, active and floor
	st        State
	active    bool
	floor     float64 // Minimum speed for the current move
	stepCount int64   // Total steps generated
}

// NewExecutor creates an Executor and registers its tick handler
// with the timer.
func NewExecutor(hw Hardware, flags *Flags, s *Settings) *Executor {
	e := new(Executor)
	e.hw = hw
	e.flags = flags
	e.handoff = newHandoff()
	e.settle = s.Settle
	e.initial = s.Speed
	e.done = make(chan struct{}, 1)
	e.st.MaxSpeed = s.MaxSpeed
	e.st.TargetSpeed = s.Speed
	hw.Timer.OnTick(e.Tick)
	return e
}

// MoveRelative moves the carriage by offset steps, negative offsets
// moving clockwise. It returns when the move has ended.
func (e *Executor) MoveRelative(offset int) (Result, error) {
	e.moveMu.Lock()
	defer e.moveMu.Unlock()
	return e.move(offset)
}

// MoveAbsolute moves the carriage to the target position.
// The position is read once any move in flight has ended.
func (e *Executor) MoveAbsolute(target int) (Result, error) {
	e.moveMu.Lock()
	defer e.moveMu.Unlock()
	return e.move(target - e.Position())
}

// move runs one move. Must hold e.moveMu.
func (e *Executor) move(offset int) (Result, error) {
	steps := offset
	dir := CounterClockwise
	if offset < 0 {
		steps = -offset
		dir = Clockwise
	}
	if e.flags.Has(Fault) {
		return Result{Requested: steps, Remaining: steps}, ErrFault
	}
	if steps == 0 {
		return Result{}, nil
	}
	e.flags.Set(Plotting)
	e.mu.Lock()
	e.st.Direction = dir
	e.st.Journey = steps
	e.st.Remaining = steps
	start := e.initial
	if start > e.st.MaxSpeed {
		start = e.st.MaxSpeed
	}
	ramp := (e.st.TargetSpeed - start) / (rampZone * float64(steps))
	if ramp > e.st.MaxSpeed {
		ramp = e.st.MaxSpeed
	} else if ramp < 0 {
		ramp = 0
	}
	e.st.RampRate = ramp
	e.st.CurrentSpeed = start
	e.floor = start
	e.active = true
	e.hw.Dir.Write(dir == Clockwise)
	e.hw.Timer.Start(start)
	e.mu.Unlock()

	<-e.done
	e.flags.Clear(Plotting)
	// Let the switches settle; the motor is stopped so this is safe.
	if e.settle > 0 {
		time.Sleep(e.settle)
	}
	e.handoff.wait()

	e.mu.Lock()
	r := Result{Requested: steps, Remaining: e.st.Remaining}
	e.st.CurrentSpeed = 0
	e.mu.Unlock()
	r.Travelled = steps - r.Remaining
	r.Aborted = r.Remaining > 0
	if e.flags.Has(Calibrating) && r.Remaining == 0 && !e.hw.Origin.Read() && !e.hw.Limit.Read() {
		e.flags.Set(MaxPPSFound)
	}
	if e.flags.Has(Fault) {
		return r, ErrFault
	}
	return r, nil
}

// Tick is called by the timer once per step period.
// It emits a step, tracks the position and applies the speed ramp.
func (e *Executor) Tick() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.hw.Step.Write(false)
	if e.st.Direction == Clockwise {
		e.st.Position--
	} else {
		e.st.Position++
	}
	e.st.Remaining--
	e.stepCount++
	finished := false
	j := float64(e.st.Journey)
	r := float64(e.st.Remaining)
	switch {
	case e.st.Remaining == 0:
		e.terminate()
		finished = true
	case r >= (1-rampZone)*j:
		e.setSpeed(e.st.CurrentSpeed + e.st.RampRate)
	case r <= rampZone*j:
		e.setSpeed(e.st.CurrentSpeed - e.st.RampRate)
	}
	e.mu.Unlock()
	// Raising the step pin completes the pulse. Completion is signalled
	// after the pulse, so an edge caused by this step is seen first.
	e.hw.Step.Write(true)
	if finished {
		e.complete()
	}
}

// Abort ends the in-flight move, if there is one.
// It is safe to call from an edge handler.
func (e *Executor) Abort() bool {
	e.mu.Lock()
	was := e.active
	if was {
		e.terminate()
	}
	e.mu.Unlock()
	if was {
		e.complete()
	}
	return was
}

// setSpeed clamps and applies a new step rate. Must hold e.mu.
func (e *Executor) setSpeed(pps float64) {
	if pps < e.floor {
		pps = e.floor
	}
	if pps > e.st.MaxSpeed {
		pps = e.st.MaxSpeed
	}
	e.st.CurrentSpeed = pps
	e.hw.Timer.Start(pps)
}

// terminate stops stepping. Must hold e.mu.
func (e *Executor) terminate() {
	e.active = false
	e.hw.Timer.Stop()
}

// complete wakes the blocked mover.
func (e *Executor) complete() {
	select {
	case e.done <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the motion state.
func (e *Executor) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Steps returns the total number of steps generated.
func (e *Executor) Steps() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepCount
}

// Position returns the current position in steps.
func (e *Executor) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Position
}

// SetPosition resets the current position.
func (e *Executor) SetPosition(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Position = pos
}

// Width returns the width in steps (0 until found).
func (e *Executor) Width() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Width
}

// setWidthFromPosition takes the current position as the width.
func (e *Executor) setWidthFromPosition() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Width = e.st.Position
	return e.st.Width
}

// TargetSpeed returns the cruise speed used for the next move.
func (e *Executor) TargetSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.TargetSpeed
}

// SetTargetSpeed sets the cruise speed used from the next move on.
func (e *Executor) SetTargetSpeed(pps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.TargetSpeed = pps
}

// MaxSpeed returns the maximum step rate.
func (e *Executor) MaxSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.MaxSpeed
}

// SetMaxSpeed sets the maximum step rate.
func (e *Executor) SetMaxSpeed(pps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.MaxSpeed = pps
}

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

// Calibrate the plotter travel and speed

package plotter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Number of times a phase is repeated before calibration gives up.
const maxRetries = 3

// ErrSweepBound is reported when the speed sweep reaches its limits
// before the motor stalls.
var ErrSweepBound = errors.New("speed sweep bound reached")

// Phase is a calibration phase.
type Phase int

const (
	SeekOrigin Phase = iota
	SeekFarLimit
	SweepSpeed
	ReseekOrigin
	ReturnToCenter
	Done
	Faulted
)

var phaseNames = []string{"SeekOrigin", "SeekFarLimit", "SweepSpeed", "ReseekOrigin", "ReturnToCenter", "Done", "Faulted"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Stats are the results of a calibration.
type Stats struct {
	Width    int           `json:"width"`     // Steps between the switches
	MaxSpeed float64       `json:"max_speed"` // Maximum reliable speed (PPS)
	RPM      float64       `json:"rpm"`       // MaxSpeed as revolutions per minute
	Traverse time.Duration `json:"traverse"`  // Time between the last origin and limit events
	Passes   int           `json:"passes"`    // Speed sweep passes made
	Elapsed  time.Duration `json:"elapsed"`   // Total calibration time
}

// transition returns the phase that follows p, given the flags
// observed after p's move. sweep enables the speed sweep, and
// bound is true once the sweep has reached its speed or pass limit.
func transition(p Phase, f Flag, sweep, bound bool) Phase {
	if f&Fault != 0 {
		return Faulted
	}
	switch p {
	case SeekOrigin:
		if f&PositionFound != 0 {
			return SeekFarLimit
		}
	case SeekFarLimit:
		if f&MaxWidthFound != 0 {
			if sweep {
				return SweepSpeed
			}
			return ReturnToCenter
		}
	case SweepSpeed:
		if f&MaxPPSFound != 0 || bound {
			return ReseekOrigin
		}
	case ReseekOrigin:
		if f&PositionFound != 0 {
			return ReturnToCenter
		}
	case ReturnToCenter:
		return Done
	}
	return p
}

// calibrator runs the calibration phases against the plotter.
type calibrator struct {
	p       *Plotter
	phase   Phase
	passes  int  // Sweep passes made
	bound   bool // Sweep stopped by its limits
	retries int
}

// run executes the calibration until it is done or faulted.
// Cancelling the context stops calibration between moves.
func (c *calibrator) run(ctx context.Context) (*Stats, error) {
	p := c.p
	start := time.Now()
	p.flags.Clear(PositionFound | MaxWidthFound | MaxPPSFound)
	p.flags.Set(Calibrating)
	c.phase = SeekOrigin
	log.Printf("plotter: calibration starting")
	for c.phase != Done && c.phase != Faulted {
		if err := ctx.Err(); err != nil {
			p.flags.Clear(Calibrating)
			return nil, err
		}
		c.act()
		next := transition(c.phase, p.flags.Get(), p.settings.Sweep, c.bound)
		if next == c.phase {
			if c.phase != SweepSpeed {
				c.retries++
				if c.retries >= maxRetries {
					p.flags.Clear(Calibrating)
					return nil, fmt.Errorf("calibration: %s did not complete", c.phase)
				}
				log.Printf("plotter: retrying %s", c.phase)
			}
			continue
		}
		c.enter(next)
	}
	p.flags.Clear(Calibrating)
	if c.phase == Faulted {
		return nil, ErrFault
	}
	st := c.stats()
	st.Elapsed = time.Since(start)
	log.Printf("plotter: calibration complete, width %d steps, maximum %.0f PPS (%.0f RPM), fastest traverse %s, %d passes",
		st.Width, st.MaxSpeed, st.RPM, st.Traverse, st.Passes)
	return st, nil
}

// act performs the move for the current phase.
func (c *calibrator) act() {
	p := c.p
	e := p.exec
	var err error
	switch c.phase {
	case SeekOrigin, ReseekOrigin:
		_, err = e.MoveRelative(-p.settings.Overrun)
	case SeekFarLimit:
		_, err = e.MoveRelative(p.settings.Overrun)
	case SweepSpeed:
		target := e.TargetSpeed() + p.settings.Delta
		if c.passes >= p.settings.SweepPasses || target > p.settings.SweepLimit {
			c.bound = true
			return
		}
		// Reverse and cross the full width at the next speed.
		w := e.Width()
		if e.Snapshot().Direction == CounterClockwise {
			w = -w
		}
		e.SetTargetSpeed(target)
		c.passes++
		var r Result
		r, err = e.MoveRelative(w)
		log.Printf("plotter: sweep pass %d at %.0f PPS, %d of %d steps", c.passes, target, r.Travelled, r.Requested)
	case ReturnToCenter:
		_, err = e.MoveAbsolute(e.Width() / 2)
	}
	if err != nil {
		log.Printf("plotter: %s: %v", c.phase, err)
	}
}

// enter moves to the next phase, applying the entry actions.
func (c *calibrator) enter(next Phase) {
	p := c.p
	e := p.exec
	log.Printf("plotter: calibration %s -> %s", c.phase, next)
	switch next {
	case SweepSpeed:
		p.flags.Clear(MaxPPSFound)
		c.passes = 0
		c.bound = false
	case ReseekOrigin:
		if c.phase == SweepSpeed {
			target := e.TargetSpeed()
			if p.flags.Has(MaxPPSFound) {
				// The last pass failed, so the one before was the fastest good pass.
				target -= p.settings.Delta
			} else {
				log.Printf("plotter: %v at %.0f PPS after %d passes", ErrSweepBound, target, c.passes)
			}
			e.SetMaxSpeed(target)
			e.SetTargetSpeed(p.settings.Speed)
		}
		// The sweep leaves the position stale.
		p.flags.Clear(PositionFound)
	case Faulted:
		log.Printf("plotter: calibration halted in %s", c.phase)
	}
	c.phase = next
	c.retries = 0
}

func (c *calibrator) stats() *Stats {
	p := c.p
	st := &Stats{
		Width:    p.exec.Width(),
		MaxSpeed: p.exec.MaxSpeed(),
		Passes:   c.passes,
	}
	if p.settings.StepsPerRev > 0 {
		st.RPM = st.MaxSpeed * 60 / float64(p.settings.StepsPerRev)
	}
	o, _ := p.origin.Last()
	l, _ := p.limit.Last()
	if !o.Time.IsZero() && !l.Time.IsZero() {
		st.Traverse = o.Time.Sub(l.Time)
		if st.Traverse < 0 {
			st.Traverse = -st.Traverse
		}
	}
	return st
}

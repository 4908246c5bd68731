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

package io

import (
	"sync"
)

// Setter sets an output to 0 or 1.
type Setter interface {
	Set(int) error
}

// HalfStepper drives a 4 wire unipolar stepper motor (such as a 28BYJ-48
// through a ULN2003 driver) in half steps, presenting step and
// direction lines so it can stand in for a step/dir driver board.
// Each rising edge of the step line moves the motor one half step,
// backwards through the sequence when the direction line is high.
type HalfStepper struct {
	pin1, pin2, pin3, pin4 Setter // Pins for controlling outputs
	mu                     sync.Mutex
	index                  int   // Index to step sequence
	on                     bool  // true if motor drivers on
	current                int64 // Current step number as an absolute number
	step, dir              bool  // Line states
}

// Half step sequence of outputs.
var sequence = [][]int{
	[]int{1, 0, 0, 0},
	[]int{1, 1, 0, 0},
	[]int{0, 1, 0, 0},
	[]int{0, 1, 1, 0},
	[]int{0, 0, 1, 0},
	[]int{0, 0, 1, 1},
	[]int{0, 0, 0, 1},
	[]int{1, 0, 0, 1},
}

// NewHalfStepper creates a HalfStepper controlled by 4 GPIO pins.
func NewHalfStepper(pin1, pin2, pin3, pin4 Setter) *HalfStepper {
	s := new(HalfStepper)
	s.pin1 = pin1
	s.pin2 = pin2
	s.pin3 = pin3
	s.pin4 = pin4
	return s
}

// GetStep returns the current step number, which is an accumulative
// signed value representing the steps moved, with 0 as the starting location.
func (s *HalfStepper) GetStep() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Off turns off the GPIOs to remove the power from the motor.
func (s *HalfStepper) Off() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on {
		s.pin1.Set(0)
		s.pin2.Set(0)
		s.pin3.Set(0)
		s.pin4.Set(0)
		s.on = false
	}
}

// StepLine returns the step input.
func (s *HalfStepper) StepLine() *Line {
	return &Line{s: s, step: true}
}

// DirLine returns the direction input.
func (s *HalfStepper) DirLine() *Line {
	return &Line{s: s}
}

// Line is one of the control inputs of a HalfStepper.
type Line struct {
	s    *HalfStepper
	step bool
}

func (l *Line) Read() bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.step {
		return l.s.step
	}
	return l.s.dir
}

func (l *Line) Write(v bool) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !l.step {
		s.dir = v
		return
	}
	rising := v && !s.step
	s.step = v
	if !rising {
		return
	}
	inc := 1
	if s.dir {
		inc = -1
	}
	s.index = (s.index + inc) & 7
	s.current += int64(inc)
	s.output()
	s.on = true
}

func (l *Line) Toggle() bool {
	v := !l.Read()
	l.Write(v)
	return v
}

// Set the GPIO outputs according to the current sequence index.
func (s *HalfStepper) output() {
	seq := sequence[s.index]
	s.pin1.Set(seq[0])
	s.pin2.Set(seq[1])
	s.pin3.Set(seq[2])
	s.pin4.Set(seq[3])
}

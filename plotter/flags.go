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

// Motion event flags

package plotter

import (
	"context"
	"strings"
	"sync"
)

// Flag is a set of motion flags shared between the executor, the
// limit switch monitors, the calibration sequencer and the dispatcher.
type Flag uint32

const (
	Go            Flag = 1 << iota // Dispatcher may run requests
	Calibrating                    // Calibration in progress
	Plotting                       // A move is in flight
	PositionFound                  // Position is referenced to a switch
	MaxWidthFound                  // Width between switches is known
	MaxPPSFound                    // Speed sweep found a failing pass
	Fault                          // Both switches pressed, motion halted
)

var flagNames = []string{"Go", "Calibrating", "Plotting", "PositionFound", "MaxWidthFound", "MaxPPSFound", "Fault"}

func (f Flag) String() string {
	var names []string
	for i, n := range flagNames {
		if f&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// signal is a broadcast notification. Each call to notify wakes
// every goroutine waiting on a channel obtained before the call.
type signal struct {
	mu sync.Mutex
	c  chan struct{}
}

func newSignal() *signal {
	return &signal{c: make(chan struct{})}
}

// wait returns a channel that is closed on the next notify.
func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

func (s *signal) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.c)
	s.c = make(chan struct{})
}

// Flags is an event flag group. All operations are atomic with respect
// to each other, and Wait may be abandoned through its context.
type Flags struct {
	mu      sync.Mutex
	bits    Flag
	changed *signal
}

// NewFlags returns an empty flag group.
func NewFlags() *Flags {
	return &Flags{changed: newSignal()}
}

// Set sets the bits and wakes any waiters.
func (f *Flags) Set(b Flag) {
	f.mu.Lock()
	f.bits |= b
	f.mu.Unlock()
	f.changed.notify()
}

// Clear clears the bits.
func (f *Flags) Clear(b Flag) {
	f.mu.Lock()
	f.bits &^= b
	f.mu.Unlock()
	f.changed.notify()
}

// Get returns the current bits.
func (f *Flags) Get() Flag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits
}

// Has returns true if all of the bits are set.
func (f *Flags) Has(b Flag) bool {
	return f.Get()&b == b
}

// Wait blocks until any (or with all, every one) of the bits are set.
// The bits observed are returned; if clear is true the waited-for bits
// are cleared before returning, as part of the same atomic check.
func (f *Flags) Wait(ctx context.Context, b Flag, clear, all bool) (Flag, error) {
	for {
		ch := f.changed.wait()
		f.mu.Lock()
		got := f.bits
		if (all && got&b == b) || (!all && got&b != 0) {
			if clear {
				f.bits &^= b
			}
			f.mu.Unlock()
			if clear {
				f.changed.notify()
			}
			return got, nil
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return f.Get(), ctx.Err()
		case <-ch:
		}
	}
}

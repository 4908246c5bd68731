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

package sim

import (
	"sync"
	"time"
)

// Timer delivers ticks as fast as the handler goroutine can run them,
// advancing a virtual clock by one period per tick.
type Timer struct {
	mu      sync.Mutex
	tick    func()
	rate    float64
	running bool
	now     time.Duration // Virtual time
	ticks   int64
	max     float64 // Highest rate programmed while running
	min     float64 // Lowest rate programmed while running
	delay   time.Duration
	wake    chan struct{}
	stop    chan struct{}
}

// NewTimer creates a stopped timer and starts its handler goroutine.
func NewTimer() *Timer {
	t := new(Timer)
	t.wake = make(chan struct{}, 1)
	t.stop = make(chan struct{})
	go t.handler()
	return t
}

// OnTick registers the tick handler.
func (t *Timer) OnTick(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick = f
}

// Start sets the rate and starts the timer if it is stopped.
func (t *Timer) Start(pps float64) {
	if pps <= 0 {
		t.Stop()
		return
	}
	t.mu.Lock()
	t.rate = pps
	if pps > t.max {
		t.max = pps
	}
	if t.min == 0 || pps < t.min {
		t.min = pps
	}
	started := !t.running
	t.running = true
	t.mu.Unlock()
	if started {
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// SetDelay sets a real time delay between ticks, so that moves
// take long enough to be observed.
func (t *Timer) SetDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// Running returns true if the timer is running.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Rate returns the programmed rate.
func (t *Timer) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

// Range returns the lowest and highest rates programmed.
func (t *Timer) Range() (float64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min, t.max
}

// ResetRange clears the recorded rates.
func (t *Timer) ResetRange() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.min, t.max = 0, 0
}

// Now returns the virtual time.
func (t *Timer) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Ticks returns the number of ticks delivered.
func (t *Timer) Ticks() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Close terminates the handler goroutine.
func (t *Timer) Close() {
	t.Stop()
	close(t.stop)
}

func (t *Timer) handler() {
	for {
		select {
		case <-t.stop:
			return
		case <-t.wake:
		}
		for {
			t.mu.Lock()
			if !t.running {
				t.mu.Unlock()
				break
			}
			t.now += time.Duration(float64(time.Second) / t.rate)
			t.ticks++
			f := t.tick
			d := t.delay
			t.mu.Unlock()
			if d > 0 {
				time.Sleep(d)
			}
			if f != nil {
				f()
			}
		}
	}
}

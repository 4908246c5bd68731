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
	"sync/atomic"
	"time"
)

// Shortest period the timer will run at. Faster requests are clamped.
const minPeriod = 20 * time.Microsecond

// StepTimer calls a registered tick handler once per period from a
// background goroutine, standing in for a hardware timer interrupt.
// The rate can be reprogrammed or the timer stopped from within the
// tick handler itself; neither call blocks.
type StepTimer struct {
	mu      sync.Mutex
	tick    func()
	period  time.Duration
	running bool
	wake    chan struct{}
	stop    chan struct{}
	ticks   int64 // Total ticks delivered
}

// NewStepTimer creates a stopped timer and starts its handler goroutine.
func NewStepTimer() *StepTimer {
	t := new(StepTimer)
	t.wake = make(chan struct{}, 1)
	t.stop = make(chan struct{})
	go t.handler()
	return t
}

// OnTick registers the handler called on each period.
func (t *StepTimer) OnTick(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick = f
}

// Start (re)programs the timer to tick at pps times per second.
func (t *StepTimer) Start(pps float64) {
	if pps <= 0 {
		t.Stop()
		return
	}
	p := time.Duration(float64(time.Second) / pps)
	if p < minPeriod {
		p = minPeriod
	}
	t.mu.Lock()
	t.period = p
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

// Stop halts the timer. A tick already in progress completes.
func (t *StepTimer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Ticks returns the number of ticks delivered since creation.
func (t *StepTimer) Ticks() int64 {
	return atomic.LoadInt64(&t.ticks)
}

// Close stops the timer and terminates the handler goroutine.
func (t *StepTimer) Close() {
	t.Stop()
	close(t.stop)
}

// goroutine handler
// Waits to be started, then delivers ticks until stopped.
func (t *StepTimer) handler() {
	for {
		select {
		case <-t.stop:
			return
		case <-t.wake:
		}
		next := time.Now()
		for {
			p, tick, ok := t.state()
			if !ok {
				break
			}
			next = next.Add(p)
			if d := time.Until(next); d > 0 {
				time.Sleep(d)
			} else {
				// Running late, so restart the schedule from now.
				next = time.Now()
			}
			// Stop may have been called while sleeping.
			if _, _, ok = t.state(); !ok {
				break
			}
			atomic.AddInt64(&t.ticks, 1)
			if tick != nil {
				tick()
			}
		}
	}
}

func (t *StepTimer) state() (time.Duration, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period, t.tick, t.running
}

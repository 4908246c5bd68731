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

package plotter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// QueueSize is the number of requests that can be pending.
const QueueSize = 7

// ErrQueueFull is returned when a request cannot be queued in time.
var ErrQueueFull = errors.New("request queue full")

// Command is a motion request type.
type Command int

const (
	MoveLeft  Command = iota // Clockwise, towards the origin
	MoveRight                // Counter-clockwise, towards the far limit
	SetSpeed                 // Set the cruise speed for later moves
)

var commandNames = []string{"left", "right", "speed"}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandNames[c]
}

// Request is a queued motion request. Value is a step count for
// moves, and a speed in PPS for SetSpeed.
type Request struct {
	Command Command
	Value   int
}

func (r Request) String() string {
	return fmt.Sprintf("%s %d", r.Command, r.Value)
}

// Enqueue adds a request to the queue, waiting up to the configured
// queue timeout for space.
func (p *Plotter) Enqueue(r Request) error {
	switch r.Command {
	case MoveLeft, MoveRight:
		if r.Value < 0 {
			return fmt.Errorf("%s: invalid step count", r)
		}
	case SetSpeed:
		if r.Value <= 0 {
			return fmt.Errorf("%s: invalid speed", r)
		}
	default:
		return fmt.Errorf("%s: unknown command", r)
	}
	if p.settings.QueueTimeout <= 0 {
		select {
		case p.queue <- r:
			return nil
		default:
			return ErrQueueFull
		}
	}
	t := time.NewTimer(p.settings.QueueTimeout)
	defer t.Stop()
	select {
	case p.queue <- r:
		return nil
	case <-t.C:
		return ErrQueueFull
	}
}

// EnqueueMove queues a move of steps in the given direction.
func (p *Plotter) EnqueueMove(d Direction, steps int) error {
	c := MoveRight
	if d == Clockwise {
		c = MoveLeft
	}
	return p.Enqueue(Request{Command: c, Value: steps})
}

// EnqueueSetSpeed queues a change of cruise speed.
func (p *Plotter) EnqueueSetSpeed(pps int) error {
	return p.Enqueue(Request{Command: SetSpeed, Value: pps})
}

// Pending returns the number of queued requests.
func (p *Plotter) Pending() int {
	return len(p.queue)
}

// Retired returns the number of requests that have been executed.
func (p *Plotter) Retired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retired
}

// Dispatch executes queued requests in order, one at a time.
// Before each request it waits for the Go flag, so a paused
// dispatcher holds the request it has taken until resumed.
func (p *Plotter) Dispatch(ctx context.Context) error {
	for {
		var r Request
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-p.queue:
		}
		if _, err := p.flags.Wait(ctx, Go, false, true); err != nil {
			return err
		}
		p.execute(r)
		p.mu.Lock()
		p.retired++
		p.mu.Unlock()
	}
}

func (p *Plotter) execute(r Request) {
	var res Result
	var err error
	switch r.Command {
	case MoveLeft:
		res, err = p.exec.MoveRelative(-r.Value)
	case MoveRight:
		res, err = p.exec.MoveRelative(r.Value)
	case SetSpeed:
		p.exec.SetTargetSpeed(float64(r.Value))
		return
	}
	if err != nil {
		log.Printf("plotter: %s: %v", r, err)
		return
	}
	if res.Aborted {
		log.Printf("plotter: %s: stopped by limit switch after %d steps", r, res.Travelled)
	}
}

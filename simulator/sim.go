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

// Simulator plotter program

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/aamcrae/plotter/plotter"
	"github.com/aamcrae/plotter/sim"
)

var port = flag.Int("port", 8080, "Web server port number")
var span = flag.Int("span", 4000, "Steps between the limit switches")
var start = flag.Int("start", 1234, "Starting carriage location")
var stall = flag.Float64("stall", 3000, "Step rate above which steps are lost")
var delay = flag.Duration("delay", 50*time.Microsecond, "Real time delay per step")
var moves = flag.Int("moves", 20, "Number of random moves after calibration")

func main() {
	flag.Parse()
	rig := sim.New(*span, *start, *stall)
	rig.Timer.SetDelay(*delay)
	defer rig.Timer.Close()
	s := plotter.DefaultSettings()
	s.Flash = 100 * time.Millisecond
	hw := plotter.Hardware{
		Timer:     rig.Timer,
		Step:      rig.Step,
		Dir:       rig.Dir,
		Origin:    rig.Origin,
		Limit:     rig.Limit,
		OriginLED: rig.OriginLED,
		LimitLED:  rig.LimitLED,
	}
	p := plotter.NewPlotter(hw, s)
	defer p.Close()
	if *port > 0 {
		go func() {
			log.Fatal(plotter.NewServer(p).ListenAndServe(*port))
		}()
	}
	ctx := context.Background()
	go func() {
		if err := p.Run(ctx); err != nil {
			log.Fatalf("Plotter: %v", err)
		}
	}()
	if err := p.Ready(ctx); err != nil {
		log.Fatalf("Plotter: %v", err)
	}
	st := p.Stats()
	fmt.Printf("Calibration complete: width %d (actual %d), %.0f PPS, %d steps lost, virtual time %s\n",
		st.Width, rig.Span(), st.MaxSpeed, rig.Lost(), rig.Timer.Now())
	for i := 0; i < *moves; i++ {
		n := rand.Intn(st.Width / 2)
		d := plotter.Clockwise
		if rand.Intn(2) == 0 {
			d = plotter.CounterClockwise
		}
		for {
			err := p.EnqueueMove(d, n)
			if err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	for p.Pending() > 0 || p.Mode() == plotter.ModePlotting {
		if p.Flags()&plotter.Go == 0 {
			// A limit switch paused the queue.
			fmt.Printf("Resuming at position %d\n", p.State().Position)
			p.Resume()
		}
		time.Sleep(100 * time.Millisecond)
	}
	pos := p.State().Position
	if pos != rig.Location() {
		fmt.Printf("Position %d - actual location is %d\n", pos, rig.Location())
	} else {
		fmt.Printf("Position %d matches the carriage\n", pos)
	}
	if *port > 0 {
		select {}
	}
}

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

// Program to demonstrate driving a step/dir motor driver from the step timer.

package main

import (
	"flag"
	"log"
	"sync/atomic"
	"time"

	"github.com/aamcrae/plotter/io"
)

var stepPin = flag.Int("step", 24, "GPIO pin for step pulses")
var dirPin = flag.Int("dir", 25, "GPIO pin for direction")
var pps = flag.Float64("pps", 500, "Steps per second")
var steps = flag.Int("steps", 400, "Steps")
var passes = flag.Int("passes", 4, "Number of passes, alternating direction")

func main() {
	flag.Parse()
	step, err := io.OutputPin(*stepPin)
	if err != nil {
		log.Fatalf("Pin %d: %v", *stepPin, err)
	}
	defer step.Close()
	dir, err := io.OutputPin(*dirPin)
	if err != nil {
		log.Fatalf("Pin %d: %v", *dirPin, err)
	}
	defer dir.Close()
	timer := io.NewStepTimer()
	defer timer.Close()
	var remaining int32
	done := make(chan struct{}, 1)
	timer.OnTick(func() {
		step.Write(false)
		step.Write(true)
		if atomic.AddInt32(&remaining, -1) == 0 {
			timer.Stop()
			done <- struct{}{}
		}
	})
	now := time.Now()
	for i := 0; i < *passes; i++ {
		dir.Write(i%2 == 1)
		atomic.StoreInt32(&remaining, int32(*steps))
		timer.Start(*pps)
		<-done
	}
	log.Printf("Elapsed = %s, ticks = %d\n", time.Now().Sub(now), timer.Ticks())
}

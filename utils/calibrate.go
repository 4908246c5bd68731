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

// Calibration utility

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aamcrae/config"
	"github.com/aamcrae/plotter/plotter"
)

var configFile = flag.String("config", "plotter.conf", "Configuration file")
var sweep = flag.Bool("sweep", true, "Measure the maximum speed")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	s, err := plotter.Config(conf)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	s.Sweep = *sweep
	dev, err := plotter.NewDevice(s)
	if err != nil {
		log.Fatalf("Device: %v", err)
	}
	defer dev.Close()
	p := plotter.NewPlotter(dev.Hardware, s)
	defer p.Close()
	ctx := context.Background()
	if err := p.WaitClear(ctx); err != nil {
		log.Fatalf("%v", err)
	}
	st, err := p.Calibrate(ctx)
	if err != nil {
		log.Fatalf("Calibrate: %v", err)
	}
	fmt.Printf("Width %d steps, maximum speed %.0f PPS (%.0f RPM), traverse %s, took %s\n",
		st.Width, st.MaxSpeed, st.RPM, st.Traverse, st.Elapsed)
	e := p.Executor()
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("Position %d (width %d) - speed %.0f\n", e.Position(), e.Width(), e.TargetSpeed())
		if dev.Stepper != nil {
			fmt.Printf("Motor at half step %d\n", dev.Stepper.GetStep())
		}
		fmt.Print("Enter steps or command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		var v int
		switch {
		case text == "help":
			fmt.Println("  help - print help")
			fmt.Println("  [-]NNN move steps")
			fmt.Println("  s NNN - set speed in PPS")
			fmt.Println("  o - move to origin")
			fmt.Println("  c - move to centre")
			fmt.Println("  r - recalibrate")
			fmt.Println("  q - quit")
		case text == "q":
			return
		case text == "o":
			move(e.MoveAbsolute(0))
		case text == "c":
			move(e.MoveAbsolute(e.Width() / 2))
		case text == "r":
			if st, err = p.Calibrate(ctx); err != nil {
				fmt.Printf("Calibration failed: %v\n", err)
			}
		case strings.HasPrefix(text, "s "):
			if n, err := fmt.Sscanf(text, "s %d", &v); err != nil || n != 1 || v <= 0 {
				fmt.Printf("Unrecognised speed\n")
			} else {
				e.SetTargetSpeed(float64(v))
			}
		default:
			n, err := fmt.Sscanf(text, "%d", &v)
			if err != nil || n != 1 {
				fmt.Printf("Unrecognised input\n")
			} else {
				fmt.Printf("Moving %d steps\n", v)
				move(e.MoveRelative(v))
			}
		}
	}
}

func move(r plotter.Result, err error) {
	if err != nil {
		fmt.Printf("Move failed: %v\n", err)
	} else if r.Aborted {
		fmt.Printf("Stopped by limit switch after %d of %d steps\n", r.Travelled, r.Requested)
	}
}

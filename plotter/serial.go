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

// Line command interface, normally on a serial port.

package plotter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tarm/serial"
)

// ServeSerial opens the serial device and runs the command interface
// on it until the context is cancelled or the port fails.
func (p *Plotter) ServeSerial(ctx context.Context, dev string, baud int) error {
	port, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baud})
	if err != nil {
		return fmt.Errorf("%s: %v", dev, err)
	}
	defer port.Close()
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	return p.Commands(ctx, port)
}

// Commands reads commands from rw, one per line, and writes a reply
// line to rw for each one. It returns at end of input.
//  L n  - queue a move of n steps left
//  R n  - queue a move of n steps right
//  S v  - queue a change of speed to v PPS
//  G    - resume
//  P    - pause
//  W    - wait for the width and report it
//  ?    - report the status
func (p *Plotter) Commands(ctx context.Context, rw io.ReadWriter) error {
	scan := bufio.NewScanner(rw)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		reply := p.command(ctx, line)
		if _, err := fmt.Fprintln(rw, reply); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return scan.Err()
}

func (p *Plotter) command(ctx context.Context, line string) string {
	f := strings.Fields(line)
	cmd := strings.ToUpper(f[0])
	var arg int
	switch cmd {
	case "L", "R", "S":
		if len(f) != 2 {
			return fmt.Sprintf("error: %s needs one argument", cmd)
		}
		var err error
		if arg, err = strconv.Atoi(f[1]); err != nil {
			return fmt.Sprintf("error: %s: %v", cmd, err)
		}
	}
	var err error
	switch cmd {
	case "L":
		err = p.EnqueueMove(Clockwise, arg)
	case "R":
		err = p.EnqueueMove(CounterClockwise, arg)
	case "S":
		err = p.EnqueueSetSpeed(arg)
	case "G":
		p.Resume()
	case "P":
		p.Pause()
	case "W":
		w, err := p.Width(ctx)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return fmt.Sprintf("width %d", w)
	case "?":
		st := p.State()
		return fmt.Sprintf("%s position %d width %d speed %.0f max %.0f flags %s",
			p.Mode(), st.Position, st.Width, st.TargetSpeed, st.MaxSpeed, p.Flags())
	default:
		return fmt.Sprintf("error: unknown command %q", f[0])
	}
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

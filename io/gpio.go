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

// Package io manages GPIO pins and step timing for the plotter.

package io

import (
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

const (
	gpioDir          = "/sys/class/gpio/"
	gpioExportFile   = gpioDir + "export"
	gpioUnexportFile = gpioDir + "unexport"
	valueFile        = "/value"
)

// Gpio represents one GPIO pin.
// An inverted pin reports and accepts logical values, so that an
// active-low limit switch reads true when pressed.
type Gpio struct {
	Invert    bool // Invert logical value
	number    int
	value     *os.File
	mu        sync.Mutex // Guards buf and value access
	buf       []byte
	direction int
	edge      int
	pollfd    []unix.PollFd
	closed    chan struct{}
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
func OutputPin(gpio int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	err = g.Direction(OUT)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// InputPin opens a GPIO pin as an input with edge detection on both edges,
// ready for OnEdge.
func InputPin(gpio int, invert bool) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	g.Invert = invert
	err = g.Edge(BOTH)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(gpio int) (*Gpio, error) {
	g := new(Gpio)
	g.number = gpio
	g.buf = make([]byte, 1)
	g.closed = make(chan struct{})

	err := export(g.file(valueFile), gpioExportFile, gpio)
	if err != nil {
		return nil, err
	}
	err = g.Direction(IN)
	if err != nil {
		unexport(gpioUnexportFile, gpio)
		return nil, err
	}
	err = g.Edge(NONE)
	if err != nil {
		unexport(gpioUnexportFile, gpio)
		return nil, err
	}
	g.value, err = os.OpenFile(g.file(valueFile), os.O_RDWR, 0600)
	if err != nil {
		unexport(gpioUnexportFile, gpio)
		return nil, err
	}
	g.pollfd = []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	return g, nil
}

func (g *Gpio) file(f string) string {
	return fmt.Sprintf("%sgpio%d%s", gpioDir, g.number, f)
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	var s string
	switch d {
	case IN:
		s = "in"
	case OUT:
		s = "out"
	default:
		return fmt.Errorf("gpio%d: unknown direction", g.number)
	}
	err := writeFile(g.file("/direction"), s)
	if err == nil {
		g.direction = d
	}
	return err
}

// Edge sets the edge detection on the GPIO pin.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return fmt.Errorf("gpio%d: not set as an input pin", g.number)
	}
	var s string
	switch e {
	case NONE:
		s = "none"
	case RISING:
		s = "rising"
	case FALLING:
		s = "falling"
	case BOTH:
		s = "both"
	default:
		return fmt.Errorf("gpio%d: unknown edge", g.number)
	}
	err := writeFile(g.file("/edge"), s)
	if err == nil {
		g.edge = e
	}
	return err
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if v == 0 {
		g.buf[0] = '0'
	} else if v == 1 {
		g.buf[0] = '1'
	} else {
		return fmt.Errorf("gpio%d: illegal value", g.number)
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get waits for an edge if edge detection is enabled, and then
// returns the current value of the GPIO pin.
func (g *Gpio) Get() (int, error) {
	if g.edge != NONE {
		// Wait for edge using poll.
		g.pollfd[0].Revents = 0
		_, err := unix.Poll(g.pollfd, -1)
		if err != nil {
			return 0, err
		}
	}
	return g.current()
}

// current reads the pin value without waiting for an edge.
func (g *Gpio) current() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.value.ReadAt(g.buf, 0)
	if err != nil {
		return 0, err
	}
	switch g.buf[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("gpio%d: unknown value %s", g.number, g.buf)
}

// Read returns the logical value of the pin. Read errors are logged
// and read as false.
func (g *Gpio) Read() bool {
	v, err := g.current()
	if err != nil {
		log.Printf("gpio%d: read: %v", g.number, err)
		return false
	}
	return (v == 1) != g.Invert
}

// Write sets the logical value of an output pin.
func (g *Gpio) Write(on bool) {
	v := 0
	if on != g.Invert {
		v = 1
	}
	if err := g.Set(v); err != nil {
		log.Printf("gpio%d: write: %v", g.number, err)
	}
}

// Toggle inverts an output pin and returns the new logical value.
func (g *Gpio) Toggle() bool {
	v := !g.Read()
	g.Write(v)
	return v
}

// OnEdge starts a goroutine that waits for edges on the pin and calls
// the handler with the new logical value. The pin must have edge
// detection enabled. Repeated values (switch bounce settling back to
// the same level) are suppressed.
func (g *Gpio) OnEdge(handler func(bool)) {
	if g.edge == NONE {
		log.Printf("gpio%d: OnEdge without edge detection", g.number)
		return
	}
	go g.watch(handler)
}

func (g *Gpio) watch(handler func(bool)) {
	last := g.Read()
	for {
		v, err := g.Get()
		select {
		case <-g.closed:
			return
		default:
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Printf("gpio%d: edge wait: %v", g.number, err)
			return
		}
		on := (v == 1) != g.Invert
		if on == last {
			continue
		}
		last = on
		handler(on)
	}
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	close(g.closed)
	g.value.Close()
	unexport(gpioUnexportFile, g.number)
}

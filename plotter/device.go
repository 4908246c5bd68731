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
	"fmt"
	"log"
	"sync"

	gpio "github.com/aamcrae/gpio"
	"github.com/aamcrae/plotter/io"
)

// Device is the GPIO hardware of a plotter, opened from the settings.
// The motor is driven either by step and direction outputs to a
// driver board, or directly as a 4 wire half stepping motor.
type Device struct {
	Hardware
	Ticker  *io.StepTimer
	Stepper *io.HalfStepper // nil when a driver board is used
	pins    []*io.Gpio
	leds    []*gpio.Gpio
}

// NewDevice opens the GPIOs named in the settings.
func NewDevice(s *Settings) (*Device, error) {
	d := new(Device)
	var err error
	if len(s.Stepper) == 4 {
		var p [4]*io.Gpio
		for i, g := range s.Stepper {
			if p[i], err = d.output(g); err != nil {
				d.Close()
				return nil, err
			}
		}
		d.Stepper = io.NewHalfStepper(p[0], p[1], p[2], p[3])
		d.Step = d.Stepper.StepLine()
		d.Dir = d.Stepper.DirLine()
	} else {
		if d.Step, err = d.output(s.Step); err != nil {
			d.Close()
			return nil, err
		}
		if d.Dir, err = d.output(s.Dir); err != nil {
			d.Close()
			return nil, err
		}
	}
	if d.Origin, err = d.input(s.Origin, s.OriginInvert); err != nil {
		d.Close()
		return nil, err
	}
	if d.Limit, err = d.input(s.Limit, s.LimitInvert); err != nil {
		d.Close()
		return nil, err
	}
	// Indicators are optional.
	if s.OriginLED >= 0 {
		if d.OriginLED, err = d.led(s.OriginLED); err != nil {
			d.Close()
			return nil, err
		}
	}
	if s.LimitLED >= 0 {
		if d.LimitLED, err = d.led(s.LimitLED); err != nil {
			d.Close()
			return nil, err
		}
	}
	d.Ticker = io.NewStepTimer()
	d.Timer = d.Ticker
	return d, nil
}

func (d *Device) output(n int) (*io.Gpio, error) {
	p, err := io.OutputPin(n)
	if err != nil {
		return nil, fmt.Errorf("output GPIO %d: %v", n, err)
	}
	d.pins = append(d.pins, p)
	return p, nil
}

// led opens an indicator output.
func (d *Device) led(n int) (Pin, error) {
	g, err := gpio.OutputPin(n)
	if err != nil {
		return nil, fmt.Errorf("LED GPIO %d: %v", n, err)
	}
	d.leds = append(d.leds, g)
	return newIndicator(fmt.Sprintf("LED%d", n), g), nil
}

func (d *Device) input(n int, invert bool) (*io.Gpio, error) {
	p, err := io.InputPin(n, invert)
	if err != nil {
		return nil, fmt.Errorf("input GPIO %d: %v", n, err)
	}
	d.pins = append(d.pins, p)
	return p, nil
}

// Close stops the timer, removes power from the motor and
// releases the GPIOs.
func (d *Device) Close() {
	if d.Ticker != nil {
		d.Ticker.Close()
	}
	if d.Stepper != nil {
		d.Stepper.Off()
	}
	for _, p := range d.pins {
		p.Close()
	}
	for _, l := range d.leds {
		l.Close()
	}
	d.pins = nil
	d.leds = nil
}

// indicator is a Pin for an output that can only be set, remembering
// the last value written.
type indicator struct {
	name string
	out  io.Setter
	mu   sync.Mutex
	on   bool
}

func newIndicator(name string, out io.Setter) *indicator {
	return &indicator{name: name, out: out}
}

func (l *indicator) Read() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *indicator) Write(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(on)
}

func (l *indicator) Toggle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(!l.on)
	return l.on
}

// set writes the output. Must hold l.mu.
func (l *indicator) set(on bool) {
	v := 0
	if on {
		v = 1
	}
	if err := l.out.Set(v); err != nil {
		log.Printf("%s: %v", l.name, err)
		return
	}
	l.on = on
}

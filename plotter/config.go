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
	"math"
	"strings"
	"time"

	"github.com/aamcrae/config"
)

// Settings for the plotter, read from a configuration file.
// GPIO numbers of -1 mean the pin is not fitted.
type Settings struct {
	Step         int
	Dir          int
	Stepper      []int // 4 GPIOs of a half stepping motor, replacing step and dir
	Origin       int
	OriginInvert bool
	Limit        int
	LimitInvert  bool
	OriginLED    int
	LimitLED     int
	Speed        float64       // Initial and cruise speed (PPS)
	Delta        float64       // Speed sweep increment (PPS)
	MaxSpeed     float64       // Upper speed bound until calibrated
	Sweep        bool          // Run the speed sweep during calibration
	Resume       bool          // Start the dispatcher once calibrated
	SweepLimit   float64       // Highest speed the sweep will try
	SweepPasses  int           // Most passes the sweep will make
	Overrun      int           // Distance used when seeking a switch
	StepsPerRev  int           // Steps per motor revolution, for RPM
	Settle       time.Duration // Delay after each move
	Flash        time.Duration // Indicator flash duration
	QueueTimeout time.Duration // How long Enqueue waits for space
	Port         int           // HTTP server port, 0 to disable
	Serial       string        // Serial command device
	Baud         int
}

// Configuration sections hold GetArg and Parse methods.
type section interface {
	GetArg(string) (string, error)
	Parse(string, string, ...interface{}) (int, error)
}

// DefaultSettings returns the settings used for any value not
// present in the configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Step:        -1,
		Dir:         -1,
		Origin:      -1,
		Limit:       -1,
		OriginLED:   -1,
		LimitLED:    -1,
		Speed:       500,
		Delta:       400,
		MaxSpeed:    math.MaxUint32,
		Sweep:       true,
		Resume:      true,
		SweepLimit:  20000,
		SweepPasses: 50,
		Overrun:     math.MaxInt16,
		StepsPerRev: 400,
		Settle:      time.Millisecond,
		Flash:       500 * time.Millisecond,
		Baud:        115200,
	}
}

// Config reads and validates the plotter settings from a config file.
// Sample config:
//  [plotter]
//  step=24                  # GPIO for step pulses
//  dir=25                   # GPIO for direction
//  stepper=4,17,27,22       # Or, GPIOs of a 4 wire motor instead of step and dir
//  origin=17,1              # Origin switch GPIO, 1 if active low
//  limit=27,1               # Far limit switch GPIO, 1 if active low
//  led=5,6                  # Indicator GPIOs for origin and limit
//  speed=500,400            # Initial speed and sweep increment in PPS
//  maxspeed=4000            # Maximum speed until the sweep measures one
//  sweep=1,20000,50         # Enable sweep, highest speed, maximum passes
//  resume=1                 # Start processing requests once calibrated
//  overrun=32767            # Steps used when seeking a switch
//  steps=400                # Steps per revolution
//  settle=1ms               # Delay after each move
//  flash=500ms              # Indicator flash time
//  queue=0s                 # Time to wait for queue space
//  [server]
//  port=8080                # Status server port
//  [serial]
//  port=/dev/ttyUSB0,115200 # Command port and baud rate
func Config(conf *config.Config) (*Settings, error) {
	st := DefaultSettings()
	s := conf.GetSection("plotter")
	if s == nil {
		return nil, fmt.Errorf("no config for plotter")
	}
	if err := st.parse(s); err != nil {
		return nil, err
	}
	if srv := conf.GetSection("server"); srv != nil {
		if err := parseInts(srv, "port", &st.Port); err != nil {
			return nil, err
		}
	}
	if ser := conf.GetSection("serial"); ser != nil {
		p, err := ser.GetArg("port")
		if err != nil {
			return nil, fmt.Errorf("serial: %v", err)
		}
		dev, baud, found := strings.Cut(strings.TrimSpace(p), ",")
		st.Serial = dev
		if found {
			if _, err := fmt.Sscanf(baud, "%d", &st.Baud); err != nil {
				return nil, fmt.Errorf("serial: baud: %v", err)
			}
		}
	}
	return st, nil
}

func (st *Settings) parse(s section) error {
	var err error
	if has(s, "stepper") {
		st.Stepper = make([]int, 4)
		if err = parseInts(s, "stepper", &st.Stepper[0], &st.Stepper[1], &st.Stepper[2], &st.Stepper[3]); err != nil {
			return err
		}
	} else {
		if err = parseInts(s, "step", &st.Step); err != nil {
			return err
		}
		if err = parseInts(s, "dir", &st.Dir); err != nil {
			return err
		}
	}
	if st.Origin, st.OriginInvert, err = parseSwitch(s, "origin"); err != nil {
		return err
	}
	if st.Limit, st.LimitInvert, err = parseSwitch(s, "limit"); err != nil {
		return err
	}
	if has(s, "led") {
		if err = parseInts(s, "led", &st.OriginLED, &st.LimitLED); err != nil {
			return err
		}
	}
	if has(s, "speed") {
		n, err := s.Parse("speed", "%f,%f", &st.Speed, &st.Delta)
		if err != nil && n < 1 {
			return fmt.Errorf("speed: %v", err)
		}
		if st.Speed <= 0 || st.Delta < 0 {
			return fmt.Errorf("speed: invalid speed %g or increment %g", st.Speed, st.Delta)
		}
	}
	if has(s, "maxspeed") {
		n, err := s.Parse("maxspeed", "%f", &st.MaxSpeed)
		if err != nil || n != 1 {
			return fmt.Errorf("maxspeed: %v", err)
		}
		if st.MaxSpeed <= 0 {
			st.MaxSpeed = math.MaxUint32
		}
	}
	if has(s, "sweep") {
		var on int
		n, err := s.Parse("sweep", "%d,%f,%d", &on, &st.SweepLimit, &st.SweepPasses)
		if err != nil && n < 1 {
			return fmt.Errorf("sweep: %v", err)
		}
		st.Sweep = on != 0
	}
	if has(s, "resume") {
		var on int
		if err = parseInts(s, "resume", &on); err != nil {
			return err
		}
		st.Resume = on != 0
	}
	if has(s, "overrun") {
		if err = parseInts(s, "overrun", &st.Overrun); err != nil {
			return err
		}
	}
	if has(s, "steps") {
		if err = parseInts(s, "steps", &st.StepsPerRev); err != nil {
			return err
		}
	}
	for _, d := range []struct {
		key string
		v   *time.Duration
	}{
		{"settle", &st.Settle},
		{"flash", &st.Flash},
		{"queue", &st.QueueTimeout},
	} {
		if !has(s, d.key) {
			continue
		}
		a, _ := s.GetArg(d.key)
		*d.v, err = time.ParseDuration(a)
		if err != nil {
			return fmt.Errorf("%s: %v", d.key, err)
		}
	}
	return nil
}

// has returns true if the key is present in the section.
func has(s section, key string) bool {
	v, err := s.GetArg(key)
	return err == nil && v != ""
}

// parseInts parses a required comma separated list of integers.
func parseInts(s section, key string, v ...*int) error {
	format := "%d"
	args := []interface{}{v[0]}
	for _, p := range v[1:] {
		format += ",%d"
		args = append(args, p)
	}
	n, err := s.Parse(key, format, args...)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	if n != len(v) {
		return fmt.Errorf("%s: argument count", key)
	}
	return nil
}

// parseSwitch parses a switch GPIO with an optional active-low flag.
func parseSwitch(s section, key string) (int, bool, error) {
	var gpio, invert int
	n, err := s.Parse(key, "%d,%d", &gpio, &invert)
	if n < 1 {
		return 0, false, fmt.Errorf("%s: %v", key, err)
	}
	return gpio, invert != 0, nil
}

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
	"testing"

	"github.com/aamcrae/plotter/sim"
)

// Test rig geometry.
const (
	testSpan  = 1000
	testStart = 300
	testStall = 2000
)

func rigHardware(rig *sim.Rig) Hardware {
	return Hardware{
		Timer:     rig.Timer,
		Step:      rig.Step,
		Dir:       rig.Dir,
		Origin:    rig.Origin,
		Limit:     rig.Limit,
		OriginLED: rig.OriginLED,
		LimitLED:  rig.LimitLED,
	}
}

// newTestPlotter creates a plotter on a simulated rig.
// mod may adjust the settings before the plotter is created.
func newTestPlotter(t *testing.T, start int, mod func(*Settings)) (*Plotter, *sim.Rig) {
	t.Helper()
	rig := sim.New(testSpan, start, testStall)
	s := DefaultSettings()
	s.Settle = 0
	s.Flash = 0
	if mod != nil {
		mod(s)
	}
	p := NewPlotter(rigHardware(rig), s)
	t.Cleanup(func() {
		p.Close()
		rig.Timer.Close()
	})
	return p, rig
}

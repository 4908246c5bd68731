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

// Timer calls the registered tick handler once per step period.
// Start and Stop are called from the tick handler and from edge
// handlers, so they must not block.
type Timer interface {
	OnTick(func())
	Start(pps float64)
	Stop()
}

// Pin is a digital output that can be read back.
type Pin interface {
	Read() bool
	Write(bool)
	Toggle() bool
}

// Switch is a limit switch input. Read returns true when pressed,
// and the edge handler is called with the new state on each change.
type Switch interface {
	Read() bool
	OnEdge(func(pressed bool))
}

// Hardware collects the I/O the motion core drives.
// The indicator pins are optional.
type Hardware struct {
	Timer     Timer
	Step      Pin
	Dir       Pin
	Origin    Switch
	Limit     Switch
	OriginLED Pin
	LimitLED  Pin
}

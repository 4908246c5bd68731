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

package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testOutput struct {
	v int
}

func (o *testOutput) Set(v int) error {
	o.v = v
	return nil
}

func outputs(p [4]*testOutput) []int {
	return []int{p[0].v, p[1].v, p[2].v, p[3].v}
}

func TestHalfStepper(t *testing.T) {
	var p [4]*testOutput
	for i := range p {
		p[i] = new(testOutput)
	}
	s := NewHalfStepper(p[0], p[1], p[2], p[3])
	step, dir := s.StepLine(), s.DirLine()

	// Only rising edges of the step line move the motor.
	step.Write(true)
	step.Write(true)
	step.Write(false)
	assert.Equal(t, int64(1), s.GetStep())
	assert.Equal(t, []int{1, 1, 0, 0}, outputs(p))

	step.Toggle()
	step.Toggle()
	assert.Equal(t, int64(2), s.GetStep())
	assert.Equal(t, []int{0, 1, 0, 0}, outputs(p))

	dir.Write(true)
	assert.True(t, dir.Read())
	for i := 0; i < 3; i++ {
		step.Write(true)
		step.Write(false)
	}
	assert.Equal(t, int64(-1), s.GetStep())
	assert.Equal(t, []int{1, 0, 0, 1}, outputs(p))

	s.Off()
	assert.Equal(t, []int{0, 0, 0, 0}, outputs(p))
}

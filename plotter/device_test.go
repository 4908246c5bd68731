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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testOutput struct {
	mu     sync.Mutex
	values []int
	err    error
}

func (o *testOutput) Set(v int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.values = append(o.values, v)
	return nil
}

func TestIndicator(t *testing.T) {
	out := new(testOutput)
	l := newIndicator("LED5", out)
	assert.False(t, l.Read())

	l.Write(true)
	assert.True(t, l.Read())
	assert.False(t, l.Toggle())
	assert.True(t, l.Toggle())
	assert.Equal(t, []int{1, 0, 1}, out.values)

	// A failed write leaves the last value.
	out.mu.Lock()
	out.err = errors.New("write failed")
	out.mu.Unlock()
	l.Write(false)
	assert.True(t, l.Read())
}

// The monitors flash an indicator in the same way as a rig pin.
func TestIndicator_Flash(t *testing.T) {
	out := new(testOutput)
	p, _ := newTestPlotter(t, 50, func(s *Settings) {
		s.Flash = 10 * time.Millisecond
	})
	p.origin.led = newIndicator("LED5", out)
	_, err := p.Executor().MoveRelative(-100)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return len(out.values) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 0}, out.values)
	assert.False(t, p.origin.led.Read())
}

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

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func pulse(r *Rig, n int) {
	for i := 0; i < n; i++ {
		r.Step.Write(true)
		r.Step.Write(false)
	}
}

func TestRig_Switches(t *testing.T) {
	r := New(100, 2, 0)
	defer r.Timer.Close()
	var edges []bool
	r.Origin.OnEdge(func(pressed bool) {
		edges = append(edges, pressed)
	})
	assert.False(t, r.Origin.Read())

	r.Dir.Write(true)
	pulse(r, 2)
	assert.Equal(t, 0, r.Location())
	assert.True(t, r.Origin.Read())
	pulse(r, 20)
	// The carriage stops at the end of the rail.
	assert.Equal(t, -hardStop, r.Location())

	r.Dir.Write(false)
	pulse(r, hardStop+1)
	assert.Equal(t, 1, r.Location())
	assert.False(t, r.Origin.Read())
	assert.Equal(t, []bool{true, false}, edges)

	r.Place(100)
	assert.True(t, r.Limit.Read())
}

func TestRig_Stall(t *testing.T) {
	r := New(1000, 500, 1000)
	defer r.Timer.Close()
	r.Timer.Start(900)
	r.Timer.Stop()
	pulse(r, 10)
	assert.Equal(t, 510, r.Location())

	r.Timer.Start(1100)
	r.Timer.Stop()
	pulse(r, 10)
	assert.Equal(t, 510, r.Location())
	assert.Equal(t, 10, r.Lost())
	assert.Equal(t, 10, r.Moved())
}

func TestRig_Force(t *testing.T) {
	r := New(100, 50, 0)
	defer r.Timer.Close()
	var edges []bool
	r.Limit.OnEdge(func(pressed bool) {
		edges = append(edges, pressed)
	})
	r.Limit.Force(true)
	assert.True(t, r.Limit.Read())
	r.Place(100)
	r.Place(50)
	// Forced state hides the carriage.
	assert.Equal(t, []bool{true}, edges)
	r.Limit.Release()
	assert.False(t, r.Limit.Read())
	assert.Equal(t, []bool{true, false}, edges)
}

func TestTimer_VirtualTime(t *testing.T) {
	tm := NewTimer()
	defer tm.Close()
	n := 0
	done := make(chan struct{})
	tm.OnTick(func() {
		n++
		if n == 100 {
			tm.Stop()
			close(done)
		}
	})
	tm.Start(1000)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not run")
	}
	assert.Equal(t, 100*time.Millisecond, tm.Now())
	assert.Equal(t, int64(100), tm.Ticks())
	min, max := tm.Range()
	assert.Equal(t, 1000.0, min)
	assert.Equal(t, 1000.0, max)
	assert.False(t, tm.Running())
}

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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDispatch(t *testing.T, p *Plotter) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Dispatch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatch_PauseResume(t *testing.T) {
	p, rig := newTestPlotter(t, 500, nil)
	startDispatch(t, p)

	require.NoError(t, p.EnqueueMove(Clockwise, 200))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, p.State().Position)
	assert.Equal(t, 0, p.Retired())

	p.Resume()
	assert.Eventually(t, func() bool { return p.Retired() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, -200, p.State().Position)
	assert.Equal(t, 300, rig.Location())
}

func TestDispatch_Order(t *testing.T) {
	p, rig := newTestPlotter(t, 500, nil)
	p.Resume()
	require.NoError(t, p.EnqueueMove(CounterClockwise, 100))
	require.NoError(t, p.EnqueueSetSpeed(900))
	require.NoError(t, p.Enqueue(Request{Command: MoveLeft, Value: 300}))
	assert.Equal(t, 3, p.Pending())
	startDispatch(t, p)

	assert.Eventually(t, func() bool { return p.Retired() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, -200, p.State().Position)
	assert.Equal(t, 300, rig.Location())
	assert.Equal(t, 900.0, p.State().TargetSpeed)
	assert.Equal(t, 0, rig.Glitches())
}

func TestDispatch_QueueFull(t *testing.T) {
	p, _ := newTestPlotter(t, 500, nil)
	for i := 0; i < QueueSize; i++ {
		require.NoError(t, p.EnqueueMove(CounterClockwise, 1))
	}
	err := p.EnqueueMove(CounterClockwise, 1)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, QueueSize, p.Pending())
}

func TestDispatch_QueueTimeout(t *testing.T) {
	p, _ := newTestPlotter(t, 500, func(s *Settings) {
		s.QueueTimeout = 10 * time.Millisecond
	})
	for i := 0; i < QueueSize; i++ {
		require.NoError(t, p.EnqueueMove(Clockwise, 1))
	}
	start := time.Now()
	err := p.EnqueueMove(Clockwise, 1)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, time.Since(start) >= 10*time.Millisecond)
}

func TestDispatch_Invalid(t *testing.T) {
	p, _ := newTestPlotter(t, 500, nil)
	assert.Error(t, p.EnqueueMove(Clockwise, -1))
	assert.Error(t, p.EnqueueSetSpeed(0))
	assert.Error(t, p.Enqueue(Request{Command: Command(9), Value: 1}))
	assert.Equal(t, 0, p.Pending())
}

func TestDispatch_LimitPauses(t *testing.T) {
	p, rig := newTestPlotter(t, 50, nil)
	p.Resume()
	startDispatch(t, p)
	require.NoError(t, p.EnqueueMove(Clockwise, 100))
	require.NoError(t, p.EnqueueMove(CounterClockwise, 100))

	// The first move hits the origin, which pauses the queue.
	assert.Eventually(t, func() bool { return p.Retired() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.Retired())
	assert.Equal(t, 0, rig.Location())

	p.Resume()
	assert.Eventually(t, func() bool { return p.Retired() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 100, rig.Location())
}

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

func TestTransition(t *testing.T) {
	tests := []struct {
		phase Phase
		flags Flag
		sweep bool
		bound bool
		want  Phase
	}{
		{SeekOrigin, 0, true, false, SeekOrigin},
		{SeekOrigin, PositionFound, true, false, SeekFarLimit},
		{SeekFarLimit, PositionFound, true, false, SeekFarLimit},
		{SeekFarLimit, MaxWidthFound, true, false, SweepSpeed},
		{SeekFarLimit, MaxWidthFound, false, false, ReturnToCenter},
		{SweepSpeed, MaxWidthFound, true, false, SweepSpeed},
		{SweepSpeed, MaxWidthFound | MaxPPSFound, true, false, ReseekOrigin},
		{SweepSpeed, MaxWidthFound, true, true, ReseekOrigin},
		{ReseekOrigin, MaxWidthFound, true, false, ReseekOrigin},
		{ReseekOrigin, MaxWidthFound | PositionFound, true, false, ReturnToCenter},
		{ReturnToCenter, MaxWidthFound | PositionFound, true, false, Done},
		{SeekFarLimit, Fault | MaxWidthFound, true, false, Faulted},
		{SweepSpeed, Fault, true, false, Faulted},
		{Done, MaxWidthFound, true, false, Done},
	}
	for _, tc := range tests {
		got := transition(tc.phase, tc.flags, tc.sweep, tc.bound)
		assert.Equal(t, tc.want, got, "%s with %s", tc.phase, tc.flags)
	}
}

func TestCalibrate(t *testing.T) {
	p, rig := newTestPlotter(t, testStart, nil)
	assert.Equal(t, ModeUninitialized, p.Mode())

	st, err := p.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testSpan, st.Width)
	// Passes at 900, 1300 and 1700 PPS succeed, and 2100 stalls.
	assert.Equal(t, 1700.0, st.MaxSpeed)
	assert.Equal(t, 4, st.Passes)
	assert.Equal(t, 1700.0*60/400, st.RPM)
	assert.True(t, rig.Lost() > 0)

	assert.Equal(t, testSpan/2, rig.Location())
	assert.Equal(t, testSpan/2, p.State().Position)
	assert.Equal(t, testSpan, p.State().Width)
	assert.Equal(t, 500.0, p.State().TargetSpeed)
	f := p.Flags()
	assert.True(t, f&MaxWidthFound != 0)
	assert.True(t, f&PositionFound != 0)
	assert.False(t, f&Calibrating != 0)
	assert.Equal(t, ModeReady, p.Mode())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Ready(ctx))
	w, err := p.Width(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSpan, w)
}

func TestCalibrate_NoSweep(t *testing.T) {
	p, rig := newTestPlotter(t, testStart, func(s *Settings) {
		s.Sweep = false
		s.MaxSpeed = 1200
	})
	st, err := p.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testSpan, st.Width)
	assert.Equal(t, 1200.0, st.MaxSpeed)
	assert.Equal(t, 0, st.Passes)
	assert.Equal(t, testSpan/2, rig.Location())
	assert.Equal(t, testSpan/2, p.State().Position)
	assert.Equal(t, 0, rig.Lost())
}

func TestCalibrate_SweepBound(t *testing.T) {
	p, rig := newTestPlotter(t, testStart, func(s *Settings) {
		s.SweepLimit = 1500
	})
	st, err := p.Calibrate(context.Background())
	require.NoError(t, err)
	// The last speed tried before the bound is used.
	assert.Equal(t, 1300.0, st.MaxSpeed)
	assert.Equal(t, 2, st.Passes)
	assert.Equal(t, testSpan/2, rig.Location())
}

func TestCalibrate_MissingSwitch(t *testing.T) {
	p, _ := newTestPlotter(t, 500, func(s *Settings) {
		s.Overrun = 100
	})
	_, err := p.Calibrate(context.Background())
	assert.Error(t, err)
	assert.False(t, p.Flags()&Calibrating != 0)
	assert.Equal(t, ModeUninitialized, p.Mode())
}

func TestRun_WaitsForRelease(t *testing.T) {
	p, rig := newTestPlotter(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(ctx)
	}()
	// The origin is pressed, so calibration must not start.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), p.Executor().Steps())

	rig.Place(testStart)
	require.NoError(t, p.Ready(ctx))
	assert.Equal(t, testSpan/2, rig.Location())
	assert.Eventually(t, func() bool { return p.Flags()&Go != 0 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

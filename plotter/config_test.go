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
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aamcrae/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseConfig(t *testing.T, text string) (*Settings, error) {
	t.Helper()
	f := filepath.Join(t.TempDir(), "plotter.conf")
	require.NoError(t, os.WriteFile(f, []byte(text), 0644))
	conf, err := config.ParseFile(f)
	require.NoError(t, err)
	return Config(conf)
}

func TestConfig(t *testing.T) {
	st, err := parseConfig(t, `[plotter]
step=24
dir=25
origin=17,1
limit=27
led=5,6
speed=600,300
maxspeed=4000
sweep=1,12000,20
resume=0
overrun=20000
steps=200
settle=2ms
flash=100ms
queue=50ms
[server]
port=8080
[serial]
port=/dev/ttyUSB0,9600
`)
	require.NoError(t, err)
	assert.Equal(t, 24, st.Step)
	assert.Equal(t, 25, st.Dir)
	assert.Equal(t, 17, st.Origin)
	assert.True(t, st.OriginInvert)
	assert.Equal(t, 27, st.Limit)
	assert.False(t, st.LimitInvert)
	assert.Equal(t, 5, st.OriginLED)
	assert.Equal(t, 6, st.LimitLED)
	assert.Equal(t, 600.0, st.Speed)
	assert.Equal(t, 300.0, st.Delta)
	assert.Equal(t, 4000.0, st.MaxSpeed)
	assert.True(t, st.Sweep)
	assert.Equal(t, 12000.0, st.SweepLimit)
	assert.Equal(t, 20, st.SweepPasses)
	assert.False(t, st.Resume)
	assert.Equal(t, 20000, st.Overrun)
	assert.Equal(t, 200, st.StepsPerRev)
	assert.Equal(t, 2*time.Millisecond, st.Settle)
	assert.Equal(t, 100*time.Millisecond, st.Flash)
	assert.Equal(t, 50*time.Millisecond, st.QueueTimeout)
	assert.Equal(t, 8080, st.Port)
	assert.Equal(t, "/dev/ttyUSB0", st.Serial)
	assert.Equal(t, 9600, st.Baud)
}

func TestConfig_Defaults(t *testing.T) {
	st, err := parseConfig(t, `[plotter]
step=24
dir=25
origin=17
limit=27
`)
	require.NoError(t, err)
	d := DefaultSettings()
	assert.Equal(t, -1, st.OriginLED)
	assert.Equal(t, d.Speed, st.Speed)
	assert.Equal(t, d.Delta, st.Delta)
	assert.Equal(t, float64(math.MaxUint32), st.MaxSpeed)
	assert.True(t, st.Sweep)
	assert.True(t, st.Resume)
	assert.Equal(t, math.MaxInt16, st.Overrun)
	assert.Equal(t, time.Duration(0), st.QueueTimeout)
	assert.Equal(t, 0, st.Port)
	assert.Equal(t, "", st.Serial)
}

func TestConfig_Errors(t *testing.T) {
	for _, text := range []string{
		"[other]\nstep=1\n",
		"[plotter]\ndir=25\norigin=17\nlimit=27\n",
		"[plotter]\nstep=24\ndir=25\norigin=17\nlimit=27\nspeed=-5\n",
		"[plotter]\nstep=24\ndir=25\norigin=17\nlimit=27\nsettle=soon\n",
	} {
		_, err := parseConfig(t, text)
		assert.Error(t, err, text)
	}
}

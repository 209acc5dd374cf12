package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nsTracker() TrackerParams {
	return TrackerParams{AxisAzimuth: 180, GCR: 0.4, LimitAngle: 60, Backtrack: true}
}

func TestSingleAxisAngle_BacktrackLowSun(t *testing.T) {
	a := SingleAxisAngle(SunPosition{Zenith: 80, Azimuth: 90}, nsTracker())
	assert.InDelta(t, 80, a.Ideal, 1e-9)
	assert.InDelta(t, 15.73, a.Theta, 0.01)
	assert.True(t, a.Backtracked)

	p := nsTracker()
	p.Backtrack = false
	a = SingleAxisAngle(SunPosition{Zenith: 80, Azimuth: 90}, p)
	assert.Equal(t, 60.0, a.Theta)
	assert.False(t, a.Backtracked)
}

func TestSingleAxisAngle_Night(t *testing.T) {
	for _, z := range []float64{90, 95, 120} {
		a := SingleAxisAngle(SunPosition{Zenith: z, Azimuth: 300}, nsTracker())
		assert.True(t, math.IsNaN(a.Theta))
		assert.False(t, a.Defined())
	}
}

func TestSingleAxisAngle_Sign(t *testing.T) {
	morning := SingleAxisAngle(SunPosition{Zenith: 40, Azimuth: 100}, nsTracker())
	evening := SingleAxisAngle(SunPosition{Zenith: 40, Azimuth: 260}, nsTracker())
	noon := SingleAxisAngle(SunPosition{Zenith: 30, Azimuth: 180}, nsTracker())

	assert.Greater(t, morning.Theta, 0.0)
	assert.Less(t, evening.Theta, 0.0)
	assert.InDelta(t, morning.Theta, -evening.Theta, 1e-9)
	assert.InDelta(t, 0, noon.Theta, 1e-9)
}

func TestSingleAxisAngle_HighSunNotBacktracked(t *testing.T) {
	a := SingleAxisAngle(SunPosition{Zenith: 10, Azimuth: 120}, nsTracker())
	assert.False(t, a.Backtracked)
	assert.InDelta(t, a.Ideal, a.Theta, 1e-12)
}

func TestSingleAxisAngle_WithinLimit(t *testing.T) {
	for _, limit := range []float64{15, 45, 60, 90} {
		for _, bt := range []bool{true, false} {
			p := TrackerParams{AxisAzimuth: 180, GCR: 0.35, LimitAngle: limit, Backtrack: bt}
			for z := 0.0; z < 90; z += 7.5 {
				for az := 0.0; az < 360; az += 15 {
					a := SingleAxisAngle(SunPosition{Zenith: z, Azimuth: az}, p)
					require.True(t, a.Defined())
					assert.LessOrEqual(t, math.Abs(a.Theta), limit+1e-9)
				}
			}
		}
	}
}

func TestSingleAxisAngle_BacktrackMovesTowardFlat(t *testing.T) {
	for _, gcr := range []float64{0.2, 0.4, 0.7, 1} {
		p := TrackerParams{AxisAzimuth: 180, GCR: gcr, LimitAngle: 90, Backtrack: true}
		for z := 1.0; z < 90; z += 4 {
			for _, az := range []float64{70, 90, 110, 250, 270, 290} {
				a := SingleAxisAngle(SunPosition{Zenith: z, Azimuth: az}, p)
				assert.LessOrEqual(t, math.Abs(a.Theta), math.Abs(a.Ideal)+1e-9)
				if a.Theta != 0 {
					assert.Equal(t, math.Signbit(a.Ideal), math.Signbit(a.Theta))
				}
			}
		}
	}
}

func TestTrackerSceneOrientation(t *testing.T) {
	tilt, az := TrackerSceneOrientation(180, 25)
	assert.Equal(t, 25.0, tilt)
	assert.Equal(t, 90.0, az)

	tilt, az = TrackerSceneOrientation(45, -10)
	assert.Equal(t, -10.0, tilt)
	assert.Equal(t, 315.0, az)
}

func TestSolveTracker(t *testing.T) {
	base := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)
	records := []WeatherRecord{
		{Timestamp: base, Sun: SunPosition{Zenith: 110, Azimuth: 0}},
		{Timestamp: base.Add(time.Hour), Sun: SunPosition{Zenith: 80, Azimuth: 90}},
	}
	states := SolveTracker(records, nsTracker())
	require.Len(t, states, 2)
	assert.False(t, states[0].Defined())
	assert.Equal(t, base.Add(time.Hour), states[1].Timestamp)
	assert.InDelta(t, 15.73, states[1].Theta, 0.01)
}

func TestDiscretizeAngle(t *testing.T) {
	assert.Equal(t, 15.0, DiscretizeAngle(15.73, 5, 60))
	assert.Equal(t, 20.0, DiscretizeAngle(17.6, 5, 60))
	assert.Equal(t, -45.0, DiscretizeAngle(-44, 5, 45))
	assert.Equal(t, 45.0, DiscretizeAngle(46, 10, 45))
	assert.Equal(t, 12.34, DiscretizeAngle(12.34, 0, 60))
	assert.True(t, math.IsNaN(DiscretizeAngle(math.NaN(), 5, 60)))
}

func TestGroupByAngle(t *testing.T) {
	base := time.Date(2021, 6, 21, 6, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	states := []TrackerState{
		{Timestamp: at(0), TrackerAngle: TrackerAngle{Theta: math.NaN()}},
		{Timestamp: at(1), TrackerAngle: TrackerAngle{Theta: 31}},
		{Timestamp: at(2), TrackerAngle: TrackerAngle{Theta: -12}},
		{Timestamp: at(3), TrackerAngle: TrackerAngle{Theta: 29}},
	}
	bins := GroupByAngle(states, 5, 60)
	require.Len(t, bins, 2)
	assert.Equal(t, -10.0, bins[0].Theta)
	assert.Equal(t, []time.Time{at(2)}, bins[0].Timestamps)
	assert.Equal(t, 30.0, bins[1].Theta)
	assert.Equal(t, []time.Time{at(1), at(3)}, bins[1].Timestamps)
}

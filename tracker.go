package main

import (
	"math"
	"sort"
	"time"
)

// TrackerParams describes a single-axis tracker.
type TrackerParams struct {
	AxisAzimuth float64 // deg, direction the axis points, 180 = N-S axis
	AxisTilt    float64 // deg, axis rise toward AxisAzimuth
	GCR         float64 // -
	LimitAngle  float64 // deg
	Backtrack   bool
}

// TrackerAngle is the solved rotation for one sun position. Theta is NaN
// when the sun is down.
type TrackerAngle struct {
	Theta       float64 // deg, + faces AxisAzimuth-90 (east for a N-S axis)
	Ideal       float64 // deg, sun-facing angle before backtracking and limits
	Backtracked bool
}

// Defined reports whether the tracker has an angle (the sun is up).
func (a TrackerAngle) Defined() bool { return !math.IsNaN(a.Theta) }

// TrackerState is one timestamp -> tilt entry.
type TrackerState struct {
	Timestamp time.Time
	TrackerAngle
}

/*
Solve the single-axis tracker rotation for one sun position.

Args:
	sun: solar position
	p: tracker parameters

Returns:
	rotation angle, NaN when the solar elevation is <= 0

Notes:
	The sun vector is projected on the plane normal to the axis to get the
	ideal angle. Backtracking follows Lorenzo et al.:
		theta = ideal - sign(ideal) * acos(clip(cos(ideal) / gcr, -1, 1))
	which only moves the angle toward zero. The result is clipped to
	+-LimitAngle.
*/
func SingleAxisAngle(sun SunPosition, p TrackerParams) TrackerAngle {
	if sun.Elevation() <= 0 {
		return TrackerAngle{Theta: math.NaN(), Ideal: math.NaN()}
	}
	zr, ar := sun.Zenith*dtor, sun.Azimuth*dtor
	s := Vec3{math.Sin(zr) * math.Sin(ar), math.Sin(zr) * math.Cos(ar), math.Cos(zr)}

	a, b := p.AxisAzimuth*dtor, p.AxisTilt*dtor
	axis := Vec3{math.Sin(a) * math.Cos(b), math.Cos(a) * math.Cos(b), math.Sin(b)}
	facing := Vec3{-math.Cos(a), math.Sin(a), 0}
	up := axis.Cross(facing)

	ideal := math.Atan2(s.Dot(facing), s.Dot(up)) / dtor
	out := TrackerAngle{Theta: ideal, Ideal: ideal}

	if p.Backtrack && p.GCR > 0 && ideal != 0 {
		arg := math.Max(-1, math.Min(1, math.Cos(ideal*dtor)/p.GCR))
		wc := math.Acos(arg) / dtor
		// gcr >= 1 leaves no shade-free angle other than flat
		wc = math.Min(wc, math.Abs(ideal))
		if wc > 0 {
			out.Theta = ideal - math.Copysign(wc, ideal)
			out.Backtracked = true
		}
	}
	out.Theta = clipAngle(out.Theta, p.LimitAngle)
	return out
}

func clipAngle(theta, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, theta))
}

// TrackerSceneOrientation converts a signed tracker angle to the scene's
// (tilt, azimuth) encoding: the azimuth is fixed at AxisAzimuth-90 and the
// sign of the tilt carries the direction.
func TrackerSceneOrientation(axisAzimuth, theta float64) (tilt, azimuth float64) {
	return theta, normalizeAzimuth(axisAzimuth - 90)
}

// SolveTracker returns one state per weather record.
func SolveTracker(records []WeatherRecord, p TrackerParams) []TrackerState {
	out := make([]TrackerState, len(records))
	for i, rec := range records {
		out[i] = TrackerState{Timestamp: rec.Timestamp, TrackerAngle: SingleAxisAngle(rec.Sun, p)}
	}
	return out
}

// DiscretizeAngle rounds theta to the nearest multiple of delta, keeping it
// within the limit. delta <= 0 returns theta unchanged.
func DiscretizeAngle(theta, delta, limit float64) float64 {
	if delta <= 0 || math.IsNaN(theta) {
		return theta
	}
	return clipAngle(math.Round(theta/delta)*delta, limit)
}

// AngleBin groups the timestamps that share one discretized angle.
type AngleBin struct {
	Theta      float64
	Timestamps []time.Time
}

// GroupByAngle bins defined states by discretized angle, ordered by angle.
// Undefined (night) states are dropped.
func GroupByAngle(states []TrackerState, delta, limit float64) []AngleBin {
	idx := map[float64]int{}
	var bins []AngleBin
	for _, st := range states {
		if !st.Defined() {
			continue
		}
		theta := DiscretizeAngle(st.Theta, delta, limit)
		i, ok := idx[theta]
		if !ok {
			i = len(bins)
			idx[theta] = i
			bins = append(bins, AngleBin{Theta: theta})
		}
		bins[i].Timestamps = append(bins[i].Timestamps, st.Timestamp)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Theta < bins[j].Theta })
	return bins
}

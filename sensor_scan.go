package main

import (
	"fmt"
	"math"
)

// AnalysisRequest selects the module to sample and the scan resolution.
// Zero values mean "center" for the indices and "same as front" for the
// back counts.
type AnalysisRequest struct {
	ModWanted    int // 1-based
	RowWanted    int // 1-based
	SensorsY     int
	SensorsX     int
	BackSensorsY int
	BackSensorsX int
	FrontOffset  float64 // m
	BackOffset   float64 // m
}

func (r AnalysisRequest) backCounts() (int, int) {
	y, x := r.BackSensorsY, r.BackSensorsX
	if y == 0 {
		y = r.SensorsY
	}
	if x == 0 {
		x = r.SensorsX
	}
	return y, x
}

// SensorScan is a line (or grid) of measurement points on one surface.
// Points are Start + i*Inc + j*XInc, i along the collector width and j
// across the module.
type SensorScan struct {
	Start  Vec3
	Inc    Vec3 // step along the collector width (xinc, yinc, zinc)
	XInc   Vec3 // step across the module
	Nx     int
	Ny     int
	Nz     int
	Orient Vec3 // unit, direction the sensor looks
}

// SensorPoint is one ray origin and direction handed to the renderer.
type SensorPoint struct {
	Position  Vec3
	Direction Vec3
}

// String formats the point as one line of renderer input.
func (p SensorPoint) String() string {
	return p.Position.String() + " " + p.Direction.String()
}

// Lines is the number of sensors along the collector width.
func (s SensorScan) Lines() int {
	if s.Nz > s.Ny {
		return s.Nz
	}
	return s.Ny
}

func (s SensorScan) Count() int { return s.Nx * s.Lines() }

// Points expands the scan, across-module index outermost.
func (s SensorScan) Points() []SensorPoint {
	out := make([]SensorPoint, 0, s.Count())
	for j := 0; j < s.Nx; j++ {
		for i := 0; i < s.Lines(); i++ {
			p := s.Start.Add(s.Inc.Scale(float64(i))).Add(s.XInc.Scale(float64(j)))
			out = append(out, SensorPoint{Position: p, Direction: s.Orient})
		}
	}
	return out
}

func (s SensorScan) String() string {
	return fmt.Sprintf("start=(%s) inc=(%s) xinc=(%s) N=(%d,%d,%d) orient=(%s)",
		s.Start, s.Inc, s.XInc, s.Nx, s.Ny, s.Nz, s.Orient)
}

/*
Offsets of n evenly spaced sensors along a length.

Args:
	length: sampled length, m
	n: number of sensors

Returns:
	offsets from the start of the length, m

Notes:
	inc = length / n and the first sensor sits inc/2 from the edge, so no
	sensor is ever on either edge.
*/
func sensorOffsets(length float64, n int) []float64 {
	inc := length / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = inc/2 + float64(i)*inc
	}
	return out
}

func isNearVertical(tilt float64) bool {
	lo, hi := get_near_vertical_tilt()
	t := math.Abs(tilt)
	return t >= lo && t <= hi
}

/*
Build the front and back scans of one module.

Args:
	s: scene holding the module
	req: module/row selection, sensor counts and surface offsets

Returns:
	front scan (looking down onto the front face) and back scan (looking up
	onto the back face)

Notes:
	Positions follow the same rotation that places the module: the axis
	center of the module, then offsetfromaxis along the normal to the panel
	bottom (plus the panel thickness for the front), then the sensor offset.
	Near-vertical collectors count the sensors in Nz instead of Ny.
*/
func ModuleAnalysis(s *Scene, req AnalysisRequest) (front, back SensorScan, err error) {
	mod, row := req.ModWanted, req.RowWanted
	if mod == 0 {
		mod = centerIndex(s.NMods)
	}
	if row == 0 {
		row = centerIndex(s.NRows)
	}
	if mod < 1 || mod > s.NMods || row < 1 || row > s.NRows {
		return front, back, configErrorf("module %d row %d is outside the %d x %d array", mod, row, s.NMods, s.NRows)
	}
	backY, backX := req.backCounts()
	if req.SensorsY < 1 || req.SensorsX < 1 || backY < 1 || backX < 1 {
		return front, back, configErrorf("sensor counts must be >= 1")
	}
	m := s.Module
	if m.SceneY <= 0 || m.X <= 0 {
		return front, back, geometryErrorf("module %s has zero area (%g x %g)", m.Name, m.X, m.SceneY)
	}

	center := s.ModuleCenter(mod, row)
	frontDepth := m.OffsetFromAxis + m.Z + req.FrontOffset
	backDepth := m.OffsetFromAxis - req.BackOffset

	front, err = surfaceScan(s, center, frontDepth, req.SensorsY, req.SensorsX, s.Frame.Normal().Neg())
	if err != nil {
		return front, back, err
	}
	back, err = surfaceScan(s, center, backDepth, backY, backX, s.Frame.Normal())
	return front, back, err
}

func surfaceScan(s *Scene, center Vec3, depth float64, ny, nx int, orient Vec3) (SensorScan, error) {
	m := s.Module
	f := s.Frame
	yInc := m.SceneY / float64(ny)
	xInc := m.X / float64(nx)

	scan := SensorScan{
		Start: center.
			Add(f.Normal().Scale(depth)).
			Add(f.Slope().Scale(-m.SceneY/2 + yInc/2)).
			Add(f.Across().Scale(-m.X/2 + xInc/2)),
		Inc:    f.Slope().Scale(yInc),
		XInc:   f.Across().Scale(xInc),
		Nx:     nx,
		Ny:     ny,
		Nz:     1,
		Orient: orient.Unit(),
	}
	if isNearVertical(s.Tilt) {
		scan.Ny, scan.Nz = 1, ny
	}
	if ny > 1 && scan.Inc.Equal(Vec3{}, 1e-9) {
		return scan, geometryErrorf("zero-length sensor increment on a %g m collector", m.SceneY)
	}
	if nx == 1 {
		scan.XInc = Vec3{}
	}
	return scan, nil
}

/*
Build a ground scan between rows.

Args:
	s: scene
	mod, row: 1-based module and row the scan starts under (0 = center)
	n: number of sensors across one pitch

Returns:
	scan at a fixed height above grade looking straight down, spanning one
	pitch in the row-to-row direction
*/
func GroundAnalysis(s *Scene, mod, row, n int) (SensorScan, error) {
	if mod == 0 {
		mod = centerIndex(s.NMods)
	}
	if row == 0 {
		row = centerIndex(s.NRows)
	}
	if n < 1 {
		return SensorScan{}, configErrorf("ground sensor count must be >= 1, got %d", n)
	}
	if s.Pitch <= 0 {
		return SensorScan{}, geometryErrorf("pitch must be > 0 for a ground scan, got %g", s.Pitch)
	}
	c := s.ModuleCenter(mod, row)
	dir := rotateAboutZ(Vec3{0, 1, 0}, 180-s.Azimuth)
	inc := s.Pitch / float64(n)
	start := Vec3{c.X, c.Y, get_ground_scan_height()}.Add(dir.Scale(-s.Pitch/2 + inc/2))
	return SensorScan{
		Start:  start,
		Inc:    dir.Scale(inc),
		Nx:     1,
		Ny:     n,
		Nz:     1,
		Orient: Vec3{0, 0, -1},
	}, nil
}

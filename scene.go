package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// SceneParams are the placement inputs of one array layout. Optional
// values are pointers: exactly one of ClearanceHeight / HubHeight, and at
// least one of Pitch / GCR.
type SceneParams struct {
	Name            string
	Tilt            float64 // deg
	Azimuth         float64 // deg, 0 = N
	Pitch           *float64
	GCR             *float64
	ClearanceHeight *float64 // lowest module point above ground, m
	HubHeight       *float64 // rotation axis above ground, m
	NMods, NRows    int
	OriginX         float64 // m
	OriginY         float64 // m
}

// Scene is one array layout of a Module. It references the module and does
// not own it.
type Scene struct {
	Name            string
	Module          *Module
	Tilt            float64 // deg
	Azimuth         float64 // deg
	Pitch           float64 // m
	GCR             float64 // -
	HubHeight       float64 // m
	ClearanceHeight float64 // m
	NMods, NRows    int
	OriginX         float64 // m
	OriginY         float64 // m
	Frame           ModuleFrame
}

/*
Lay out nMods x nRows copies of a module.

Args:
	module: assembled module
	p: placement parameters
	log: receives the row-overlap warning

Returns:
	Scene with pitch, gcr and both height conventions resolved

Notes:
	gcr = sceney / pitch. clearance_height = hub_height - (sceney/2) sin|tilt|
	+ offsetfromaxis cos(tilt): the panel sits offsetfromaxis above the axis.
	pitch < sceney (overlapping rows) is accepted with a warning.
*/
func NewScene(module *Module, p SceneParams, log *zap.SugaredLogger) (*Scene, error) {
	if module == nil {
		return nil, configErrorf("scene %q has no module", p.Name)
	}
	if p.NMods < 1 || p.NRows < 1 {
		return nil, configErrorf("nMods and nRows must be >= 1, got %d x %d", p.NMods, p.NRows)
	}
	pitch, gcr, err := resolvePitch(module.SceneY, p.Pitch, p.GCR)
	if err != nil {
		return nil, err
	}
	if pitch < module.SceneY {
		log.Warnf("scene %s: pitch %.3f m is smaller than the collector width %.3f m, rows overlap", p.Name, pitch, module.SceneY)
	}

	s := &Scene{
		Name:    p.Name,
		Module:  module,
		Tilt:    p.Tilt,
		Azimuth: p.Azimuth,
		Pitch:   pitch,
		GCR:     gcr,
		NMods:   p.NMods,
		NRows:   p.NRows,
		OriginX: p.OriginX,
		OriginY: p.OriginY,
		Frame:   NewModuleFrame(p.Tilt, p.Azimuth),
	}
	// hub height minus clearance height
	drop := module.SceneY/2*math.Sin(math.Abs(p.Tilt)*dtor) - module.OffsetFromAxis*math.Cos(p.Tilt*dtor)
	switch {
	case p.ClearanceHeight != nil && p.HubHeight != nil:
		return nil, configErrorf("clearance_height and hub_height are mutually exclusive")
	case p.HubHeight != nil:
		s.HubHeight = *p.HubHeight
		s.ClearanceHeight = s.HubHeight - drop
	case p.ClearanceHeight != nil:
		s.ClearanceHeight = *p.ClearanceHeight
		s.HubHeight = s.ClearanceHeight + drop
	default:
		return nil, configErrorf("missing required key: clearance_height or hub_height")
	}
	if s.ClearanceHeight < 0 {
		return nil, configErrorf("scene %s: module reaches below ground (clearance %.3f m)", p.Name, s.ClearanceHeight)
	}
	return s, nil
}

func resolvePitch(sceney float64, pitch, gcr *float64) (float64, float64, error) {
	if sceney <= 0 {
		return 0, 0, geometryErrorf("collector width must be > 0, got %g", sceney)
	}
	switch {
	case pitch != nil && gcr != nil:
		if *pitch <= 0 || *gcr <= 0 {
			return 0, 0, configErrorf("pitch and gcr must be > 0, got %g and %g", *pitch, *gcr)
		}
		derived := sceney / *pitch
		if math.Abs(derived-*gcr) > get_gcr_tolerance()*math.Max(1, *gcr) {
			return 0, 0, configErrorf("pitch %g and gcr %g disagree (sceney/pitch = %g)", *pitch, *gcr, derived)
		}
		return *pitch, derived, nil
	case pitch != nil:
		if *pitch <= 0 {
			return 0, 0, configErrorf("pitch must be > 0, got %g", *pitch)
		}
		return *pitch, sceney / *pitch, nil
	case gcr != nil:
		if *gcr <= 0 {
			return 0, 0, configErrorf("gcr must be > 0, got %g", *gcr)
		}
		return sceney / *gcr, *gcr, nil
	default:
		return 0, 0, configErrorf("missing required key: pitch or gcr")
	}
}

// centerIndex is the 1-based index sampled by default: ceil(n/2), so for an
// even count the lower of the two middle indices.
func centerIndex(n int) int {
	return (n + 1) / 2
}

// ModuleCenter returns the point on the rotation axis at the center of
// module mod in row row (both 1-based).
func (s *Scene) ModuleCenter(mod, row int) Vec3 {
	local := Vec3{
		X: float64(mod-centerIndex(s.NMods)) * s.Module.SceneX,
		Y: float64(row-centerIndex(s.NRows)) * s.Pitch,
	}
	c := rotateAboutZ(local, 180-s.Azimuth)
	return Vec3{c.X + s.OriginX, c.Y + s.OriginY, s.HubHeight}
}

// Transforms is the replication of the module file over the array. The
// center module sits at the origin.
func (s *Scene) Transforms() []Transform {
	return []Transform{
		Rotate{Axis: 'x', Deg: s.Tilt},
		Translate{0, 0, s.HubHeight},
		Repeat{Count: s.NMods, Step: Translate{s.Module.SceneX, 0, 0}},
		Repeat{Count: s.NRows, Step: Translate{0, s.Pitch, 0}},
		Once{},
		Translate{
			-s.Module.SceneX * float64(centerIndex(s.NMods)-1),
			-s.Pitch * float64(centerIndex(s.NRows)-1),
			0,
		},
		Rotate{Axis: 'z', Deg: 180 - s.Azimuth},
		Translate{s.OriginX, s.OriginY, 0},
	}
}

// Radiance returns the scene text referencing modulePath.
func (s *Scene) Radiance(modulePath string) string {
	header := fmt.Sprintf("# scene %s: tilt=%s azimuth=%s pitch=%s gcr=%s hub_height=%s clearance_height=%s\n",
		s.Name, num(s.Tilt), num(s.Azimuth), num(s.Pitch), num(s.GCR), num(s.HubHeight), num(s.ClearanceHeight))
	return header + Geometry{Instance{Name: s.Name, Path: modulePath, Transforms: s.Transforms()}}.Radiance()
}

// WriteFile writes objects/<scene>.rad under dir and returns its path.
func (s *Scene) WriteFile(dir, modulePath string) (string, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(objDir, fmt.Sprintf("%s_%dx%d.rad", s.Name, s.NMods, s.NRows))
	if err := os.WriteFile(path, []byte(s.Radiance(modulePath)), 0644); err != nil {
		return "", err
	}
	return path, nil
}

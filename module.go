package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Names of the module surfaces the cleaner accepts as valid hits.
const (
	panelSurfaceName = "PVmodule"
	cellSurfaceName  = "cellPVmodule"
)

// Module is one composite module: a stack of NumPanels panels plus the
// optional torque tube, frame, omega and cell-level geometry. Positions are
// relative to the rotation axis, with the stack centered on it in x and y.
type Module struct {
	Name      string
	X, Y      float64 // single panel, m
	Z         float64 // panel thickness, m
	NumPanels int
	XGap      float64 // m
	YGap      float64 // m
	ZGap      float64 // m
	Bifi      float64 // -
	Material  string

	TorqueTube *TorqueTubeConfig
	Frame      *FrameConfig
	Omega      *OmegaConfig
	CellModule *CellModuleConfig

	SceneX         float64 // x + xgap, m
	SceneY         float64 // collector width, m
	OffsetFromAxis float64 // rotation axis to panel bottom, m
	Geometry       Geometry
}

func (c ModuleConfig) validate() error {
	if c.Name == "" {
		return configErrorf("module name is empty")
	}
	if c.NumPanels < 1 {
		return configErrorf("numpanels must be >= 1, got %d", c.NumPanels)
	}
	if c.XGap < 0 || c.YGap < 0 || c.ZGap < 0 {
		return configErrorf("gaps must be >= 0, got xgap=%g ygap=%g zgap=%g", c.XGap, c.YGap, c.ZGap)
	}
	if c.Z <= 0 {
		return configErrorf("panel thickness z must be > 0, got %g", c.Z)
	}
	if c.Bifi < 0 {
		return configErrorf("bifi must be >= 0, got %g", c.Bifi)
	}
	if c.CellModule == nil && (c.X <= 0 || c.Y <= 0) {
		return configErrorf("module x and y must be > 0, got x=%g y=%g", c.X, c.Y)
	}
	if cm := c.CellModule; cm != nil {
		if cm.NumCellsX < 1 || cm.NumCellsY < 1 || cm.XCell <= 0 || cm.YCell <= 0 {
			return configErrorf("cellLevelModule needs positive cell counts and sizes: %+v", *cm)
		}
		if cm.XCellGap < 0 || cm.YCellGap < 0 {
			return configErrorf("cell gaps must be >= 0: %+v", *cm)
		}
	}
	if t := c.TorqueTube; t != nil {
		if t.Diameter <= 0 {
			return configErrorf("torquetube diameter must be > 0, got %g", t.Diameter)
		}
		switch t.Type {
		case TubeRound, TubeSquare, TubeHex, TubeOct:
		default:
			return configErrorf("torquetube type must be round, square, hex or oct, got %q", t.Type)
		}
	}
	if f := c.Frame; f != nil {
		if f.Thickness <= 0 || f.Width <= 0 {
			return configErrorf("frame thickness and width must be > 0: %+v", *f)
		}
		if f.NSides != 2 && f.NSides != 4 {
			return configErrorf("frame nsides must be 2 or 4, got %d", f.NSides)
		}
	}
	if o := c.Omega; o != nil {
		if o.Thickness <= 0 || o.Width <= 0 || o.Length <= 0 || o.Overlap < 0 {
			return configErrorf("omega dimensions must be positive: %+v", *o)
		}
		if c.ZGap <= o.Thickness {
			return configErrorf("omega needs zgap > omega thickness, got zgap=%g", c.ZGap)
		}
	}
	return nil
}

/*
Assemble a module from its parameters.

Args:
	cfg: module parameters

Returns:
	Module with SceneX, SceneY, OffsetFromAxis and Geometry resolved

Notes:
	When cellLevelModule is given the panel x/y are recomputed from the cell
	layout and any x/y in cfg are ignored.
*/
func NewModule(cfg ModuleConfig) (*Module, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Module{
		Name:       cfg.Name,
		X:          cfg.X,
		Y:          cfg.Y,
		Z:          cfg.Z,
		NumPanels:  cfg.NumPanels,
		XGap:       cfg.XGap,
		YGap:       cfg.YGap,
		ZGap:       cfg.ZGap,
		Bifi:       cfg.Bifi,
		Material:   cfg.Material,
		TorqueTube: cfg.TorqueTube,
		Frame:      cfg.Frame,
		Omega:      cfg.Omega,
		CellModule: cfg.CellModule,
	}
	if err := m.rebuild(); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the parameters the module was assembled from.
func (m *Module) Config() ModuleConfig {
	return ModuleConfig{
		Name:       m.Name,
		X:          m.X,
		Y:          m.Y,
		Z:          m.Z,
		NumPanels:  m.NumPanels,
		XGap:       m.XGap,
		YGap:       m.YGap,
		ZGap:       m.ZGap,
		Bifi:       m.Bifi,
		Material:   m.Material,
		TorqueTube: m.TorqueTube,
		Frame:      m.Frame,
		Omega:      m.Omega,
		CellModule: m.CellModule,
	}
}

func (m *Module) AddTorqueTube(t TorqueTubeConfig) error {
	return m.update(func(c *ModuleConfig) { c.TorqueTube = &t })
}

func (m *Module) AddFrame(f FrameConfig) error {
	return m.update(func(c *ModuleConfig) { c.Frame = &f })
}

func (m *Module) AddOmega(o OmegaConfig) error {
	return m.update(func(c *ModuleConfig) { c.Omega = &o })
}

func (m *Module) AddCellModule(cm CellModuleConfig) error {
	return m.update(func(c *ModuleConfig) { c.CellModule = &cm })
}

// update applies a change, validates it and regenerates the geometry; the
// module is left untouched on error.
func (m *Module) update(change func(*ModuleConfig)) error {
	cfg := m.Config()
	change(&cfg)
	next, err := NewModule(cfg)
	if err != nil {
		return err
	}
	*m = *next
	return nil
}

func (m *Module) rebuild() error {
	if cm := m.CellModule; cm != nil {
		m.X = float64(cm.NumCellsX)*(cm.XCell+cm.XCellGap) - cm.XCellGap
		m.Y = float64(cm.NumCellsY)*(cm.YCell+cm.YCellGap) - cm.YCellGap
	}
	m.SceneX = m.X + m.XGap
	m.SceneY = float64(m.NumPanels)*m.Y + float64(m.NumPanels-1)*m.YGap

	m.OffsetFromAxis = m.ZGap
	tubeCenterZ := 0.0
	if t := m.TorqueTube; t != nil {
		if t.AxisOfRotation {
			m.OffsetFromAxis = m.ZGap + t.Diameter/2
		} else {
			tubeCenterZ = -t.Diameter / 2
		}
	}

	var g Geometry
	stack, err := m.buildStack()
	if err != nil {
		return err
	}
	g = append(g, stack)

	if f := m.Frame; f != nil {
		frames, err := buildFrame(*f, m.X, m.Y, m.stackTransforms())
		if err != nil {
			return err
		}
		g = append(g, frames...)
	}
	if t := m.TorqueTube; t != nil && t.Visible {
		tube, err := buildTorqueTube(*t, m.SceneX, tubeCenterZ)
		if err != nil {
			return err
		}
		g = append(g, tube...)
	}
	if o := m.Omega; o != nil {
		tubeTop := tubeCenterZ
		if m.TorqueTube != nil {
			tubeTop += m.TorqueTube.Diameter / 2
		}
		omegas, err := buildOmega(*o, m.X, tubeTop, m.OffsetFromAxis)
		if err != nil {
			return err
		}
		g = append(g, omegas...)
	}
	m.Geometry = g
	return nil
}

// stackTransforms centers one panel on the axis and repeats it up the slope.
func (m *Module) stackTransforms() []Transform {
	return []Transform{
		Translate{0, -m.SceneY / 2, m.OffsetFromAxis},
		Repeat{Count: m.NumPanels, Step: Translate{0, m.Y + m.YGap, 0}},
	}
}

func (m *Module) buildStack() (Box, error) {
	if cm := m.CellModule; cm != nil {
		cell, err := newBox(m.Material, cellSurfaceName, Vec3{cm.XCell, cm.YCell, m.Z},
			Translate{-m.X / 2, 0, 0},
			Repeat{Count: cm.NumCellsX, Step: Translate{cm.XCell + cm.XCellGap, 0, 0}},
			Repeat{Count: cm.NumCellsY, Step: Translate{0, cm.YCell + cm.YCellGap, 0}},
		)
		if err != nil {
			return Box{}, err
		}
		cell.Transforms = append(cell.Transforms, m.stackTransforms()...)
		return cell, nil
	}
	panel, err := buildPanel(m.X, m.Y, m.Z, m.Material)
	if err != nil {
		return Box{}, err
	}
	panel.Transforms = append(panel.Transforms, m.stackTransforms()...)
	return panel, nil
}

/*
Build one panel box spanning [-x/2, x/2] x [0, y] x [0, thickness].

Args:
	x: panel width, m
	y: panel height along the slope, m
	thickness: m
	material: renderer material name
*/
func buildPanel(x, y, thickness float64, material string) (Box, error) {
	return newBox(material, panelSurfaceName, Vec3{x, y, thickness}, Translate{-x / 2, 0, 0})
}

/*
Build a torque tube running along x, centered on x = 0.

Args:
	t: tube parameters
	length: tube length, m (scenex per module, so a row of nMods modules
		carries a continuous tube of scenex*nMods)
	centerZ: height of the tube center relative to the rotation axis, m

Returns:
	primitives of the tube

Notes:
	Non-round sections keep the circle diameter as their outer size: the
	square side, the hexagon vertex-to-vertex span and the octagon
	flat-to-flat span equal the diameter.
*/
func buildTorqueTube(t TorqueTubeConfig, length, centerZ float64) ([]Primitive, error) {
	if length <= 0 {
		return nil, configErrorf("torque tube length must be > 0, got %g", length)
	}
	d := t.Diameter
	r := d / 2
	switch t.Type {
	case TubeRound:
		return []Primitive{Cylinder{
			Material: t.Material,
			Name:     "tube1",
			Start:    Vec3{-length / 2, 0, centerZ},
			End:      Vec3{length / 2, 0, centerZ},
			Radius:   r,
		}}, nil
	case TubeSquare:
		b, err := newBox(t.Material, "tube1", Vec3{length, d, d}, Translate{-length / 2, -r, centerZ - r})
		if err != nil {
			return nil, err
		}
		return []Primitive{b}, nil
	case TubeHex:
		// three r x r*sqrt(3) slabs at 0/60/120 deg
		return prismTube(t.Material, length, r, r*math.Sqrt(3), []float64{0, 60, 120}, centerZ)
	case TubeOct:
		// four s x d slabs at 0/45/90/135 deg, s the octagon side
		s := d / (1 + math.Sqrt2)
		return prismTube(t.Material, length, s, d, []float64{0, 45, 90, 135}, centerZ)
	default:
		panic("invalid tube type " + string(t.Type))
	}
}

func prismTube(material string, length, width, height float64, angles []float64, centerZ float64) ([]Primitive, error) {
	out := make([]Primitive, 0, len(angles))
	for i, a := range angles {
		b, err := newBox(material, fmt.Sprintf("tube1%c", 'a'+i), Vec3{length, width, height},
			Translate{-length / 2, -width / 2, -height / 2},
			Rotate{Axis: 'x', Deg: a},
			Translate{0, 0, centerZ},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

/*
Build the frame of every panel in the stack. The frame bands sit inside the
panel footprint and hang below the panel, so scenex/sceney are unchanged.

Args:
	f: frame parameters
	x, y: panel size, m
	stack: transforms placing panel 0 and repeating it
*/
func buildFrame(f FrameConfig, x, y float64, stack []Transform) ([]Primitive, error) {
	if 2*f.Width >= x || 2*f.Width >= y {
		return nil, configErrorf("frame width %g does not fit a %g x %g panel", f.Width, x, y)
	}
	type band struct {
		name   string
		size   Vec3
		corner Translate
	}
	bands := []band{
		{"frameside1", Vec3{x, f.Width, f.Thickness}, Translate{-x / 2, 0, -f.Thickness}},
		{"frameside2", Vec3{x, f.Width, f.Thickness}, Translate{-x / 2, y - f.Width, -f.Thickness}},
	}
	if f.NSides == 4 {
		inner := y - 2*f.Width
		bands = append(bands,
			band{"frameside3", Vec3{f.Width, inner, f.Thickness}, Translate{-x / 2, f.Width, -f.Thickness}},
			band{"frameside4", Vec3{f.Width, inner, f.Thickness}, Translate{x/2 - f.Width, f.Width, -f.Thickness}},
		)
	}
	out := make([]Primitive, 0, len(bands))
	for _, b := range bands {
		ts := append([]Transform{b.corner}, stack...)
		box, err := newBox(f.Material, b.name, b.size, ts...)
		if err != nil {
			return nil, err
		}
		out = append(out, box)
	}
	return out, nil
}

/*
Build the omega brackets joining the panels to the tube: at each module x
end a vertical leg spanning the z gap and a flange resting on the tube.

Args:
	o: omega parameters
	x: panel width, m
	tubeTop: z of the tube top (or the axis when there is no tube), m
	panelBottom: z of the panel bottom, m
*/
func buildOmega(o OmegaConfig, x, tubeTop, panelBottom float64) ([]Primitive, error) {
	legHeight := panelBottom - tubeTop
	if legHeight <= o.Thickness {
		return nil, configErrorf("omega does not fit a %g m gap between tube and panel", legHeight)
	}
	if o.Overlap+o.Width > x/2 {
		return nil, configErrorf("omega overlap %g + width %g exceeds half the module width", o.Overlap, o.Width)
	}
	var out []Primitive
	for i, side := range []float64{-1, 1} {
		legX := side*(x/2-o.Overlap) - o.Thickness/2
		flangeX := legX
		if side < 0 {
			flangeX = legX - o.Width + o.Thickness
		}
		leg, err := newBox(o.Material, fmt.Sprintf("omega%dleg", i+1), Vec3{o.Thickness, o.Length, legHeight},
			Translate{legX, -o.Length / 2, tubeTop})
		if err != nil {
			return nil, err
		}
		flange, err := newBox(o.Material, fmt.Sprintf("omega%dflange", i+1), Vec3{o.Width, o.Length, o.Thickness},
			Translate{flangeX, -o.Length / 2, tubeTop})
		if err != nil {
			return nil, err
		}
		out = append(out, leg, flange)
	}
	return out, nil
}

// Radiance returns the module's scene text.
func (m *Module) Radiance() string {
	return fmt.Sprintf("# module %s: scenex=%s sceney=%s offsetfromaxis=%s\n",
		m.Name, num(m.SceneX), num(m.SceneY), num(m.OffsetFromAxis)) + m.Geometry.Radiance()
}

// WriteFile writes objects/<name>.rad under dir and returns its path.
func (m *Module) WriteFile(dir string) (string, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(objDir, m.Name+".rad")
	if err := os.WriteFile(path, []byte(m.Radiance()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Materials lists the material names referenced by the module geometry.
func (m *Module) Materials() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range m.Geometry {
		var mat string
		switch v := p.(type) {
		case Box:
			mat = v.Material
		case Cylinder:
			mat = v.Material
		}
		if mat != "" && !seen[mat] {
			seen[mat] = true
			out = append(out, mat)
		}
	}
	return out
}

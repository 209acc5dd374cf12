package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the full input of one simulation run.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Site       SiteConfig       `yaml:"site"`
	Module     ModuleConfig     `yaml:"module"`
	Scene      SceneConfig      `yaml:"scene"`
	Tracker    *TrackerConfig   `yaml:"tracker"` // present = single-axis tracking
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Renderer   RendererConfig   `yaml:"renderer"`
	Materials  []MaterialConfig `yaml:"materials"`
}

type SimulationConfig struct {
	Name     string `yaml:"name"`
	Period   string `yaml:"period"` // "year" or "month"
	Workers  int    `yaml:"workers"`
	Registry string `yaml:"registry"` // module registry file, optional
}

type SiteConfig struct {
	Latitude  float64 `yaml:"latitude"`   // deg
	Longitude float64 `yaml:"longitude"`  // deg, east positive
	UTCOffset float64 `yaml:"utc_offset"` // h, used for timestamps without zone
	Albedo    float64 `yaml:"albedo"`     // -, used when the weather has none
}

type ModuleConfig struct {
	Name       string            `yaml:"name"`
	X          float64           `yaml:"x"` // m, ignored when cellLevelModule is set
	Y          float64           `yaml:"y"` // m, ignored when cellLevelModule is set
	Z          float64           `yaml:"z"` // panel thickness, m
	NumPanels  int               `yaml:"numpanels"`
	XGap       float64           `yaml:"xgap"` // m
	YGap       float64           `yaml:"ygap"` // m
	ZGap       float64           `yaml:"zgap"` // m
	Bifi       float64           `yaml:"bifi"` // bifaciality factor, -
	Material   string            `yaml:"material"`
	TorqueTube *TorqueTubeConfig `yaml:"torquetube"`
	Frame      *FrameConfig      `yaml:"frame"`
	Omega      *OmegaConfig      `yaml:"omega"`
	CellModule *CellModuleConfig `yaml:"cellLevelModule"`
}

// TubeShape is the cross-section of a torque tube.
type TubeShape string

const (
	TubeRound  TubeShape = "round"
	TubeSquare TubeShape = "square"
	TubeHex    TubeShape = "hex"
	TubeOct    TubeShape = "oct"
)

type TorqueTubeConfig struct {
	Diameter       float64   `yaml:"diameter"` // m
	Type           TubeShape `yaml:"type"`
	Material       string    `yaml:"material"`
	AxisOfRotation bool      `yaml:"axisofrotation"`
	Visible        bool      `yaml:"visible"`
}

func defaultTorqueTube() TorqueTubeConfig {
	return TorqueTubeConfig{
		Diameter:       0.1,
		Type:           TubeRound,
		Material:       "Metal_Grey",
		AxisOfRotation: true,
		Visible:        true,
	}
}

func (t *TorqueTubeConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw TorqueTubeConfig
	r := raw(defaultTorqueTube())
	if err := value.Decode(&r); err != nil {
		return err
	}
	*t = TorqueTubeConfig(r)
	return nil
}

type FrameConfig struct {
	Material  string  `yaml:"material"`
	Thickness float64 `yaml:"thickness"` // depth below the panel, m
	Width     float64 `yaml:"width"`     // band width along the panel edge, m
	NSides    int     `yaml:"nsides"`    // 2 = edges parallel to x only, 4 = all
}

func defaultFrame() FrameConfig {
	return FrameConfig{Material: "Metal_Grey", Thickness: 0.05, Width: 0.05, NSides: 4}
}

func (f *FrameConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw FrameConfig
	r := raw(defaultFrame())
	if err := value.Decode(&r); err != nil {
		return err
	}
	*f = FrameConfig(r)
	return nil
}

type OmegaConfig struct {
	Material  string  `yaml:"material"`
	Thickness float64 `yaml:"thickness"` // m
	Width     float64 `yaml:"width"`     // flange width along x, m
	Length    float64 `yaml:"length"`    // extent along the slope, m
	Overlap   float64 `yaml:"overlap"`   // inset of the legs from the module x edge, m
}

func defaultOmega() OmegaConfig {
	return OmegaConfig{Material: "Metal_Grey", Thickness: 0.004, Width: 0.1, Length: 1.0, Overlap: 0.1}
}

func (o *OmegaConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw OmegaConfig
	r := raw(defaultOmega())
	if err := value.Decode(&r); err != nil {
		return err
	}
	*o = OmegaConfig(r)
	return nil
}

type CellModuleConfig struct {
	NumCellsX int     `yaml:"numcellsx"`
	NumCellsY int     `yaml:"numcellsy"`
	XCell     float64 `yaml:"xcell"`    // m
	YCell     float64 `yaml:"ycell"`    // m
	XCellGap  float64 `yaml:"xcellgap"` // m
	YCellGap  float64 `yaml:"ycellgap"` // m
}

type SceneConfig struct {
	Tilt            *float64 `yaml:"tilt"`    // deg, fixed tilt only
	Azimuth         float64  `yaml:"azimuth"` // deg, 0 = N
	Pitch           *float64 `yaml:"pitch"`   // m
	GCR             *float64 `yaml:"gcr"`     // -
	ClearanceHeight *float64 `yaml:"clearance_height"`
	HubHeight       *float64 `yaml:"hub_height"`
	NMods           int      `yaml:"nMods"`
	NRows           int      `yaml:"nRows"`
	OriginX         float64  `yaml:"originx"`
	OriginY         float64  `yaml:"originy"`
}

type TrackerConfig struct {
	LimitAngle  *float64 `yaml:"limit_angle"`  // deg
	Backtrack   bool     `yaml:"backtrack"`    // default true
	AxisAzimuth float64  `yaml:"axis_azimuth"` // deg, default 180 (N-S axis)
	AxisTilt    float64  `yaml:"axis_tilt"`    // deg
	AngleDelta  float64  `yaml:"angledelta"`   // deg, 0 = one angle per timestamp
}

func (t *TrackerConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw TrackerConfig
	r := raw(TrackerConfig{Backtrack: true, AxisAzimuth: 180})
	if err := value.Decode(&r); err != nil {
		return err
	}
	*t = TrackerConfig(r)
	return nil
}

type AnalysisConfig struct {
	SensorsY     int      `yaml:"sensorsy"`
	SensorsX     int      `yaml:"sensorsx"`
	BackSensorsY int      `yaml:"sensorsy_back"` // 0 = same as front
	BackSensorsX int      `yaml:"sensorsx_back"` // 0 = same as front
	ModWanted    int      `yaml:"modWanted"`     // 1-based, 0 = center
	RowWanted    int      `yaml:"rowWanted"`     // 1-based, 0 = center
	FrontOffset  float64  `yaml:"frontsurfaceoffset"`
	BackOffset   float64  `yaml:"backsurfaceoffset"`
	GroundScan   bool     `yaml:"groundscan"`
	Matchers     []string `yaml:"clean_matchers"`
	NumCellsY    int      `yaml:"numcellsy"` // 0 = keep sensor resolution
	Downsample   string   `yaml:"downsample"`
}

type RendererConfig struct {
	Oconv    string        `yaml:"oconv"`
	Rtrace   string        `yaml:"rtrace"`
	Accuracy string        `yaml:"accuracy"` // "low" or "high"
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type MaterialConfig struct {
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"` // plastic, metal, glass
	R           float64 `yaml:"r"`
	G           float64 `yaml:"g"`
	B           float64 `yaml:"b"`
	Specularity float64 `yaml:"specularity"`
	Roughness   float64 `yaml:"roughness"`
}

func defaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{Name: "bifacial", Period: "year", Workers: 1},
		Site:       SiteConfig{Albedo: 0.2},
		Module: ModuleConfig{
			Name:      "test-module",
			Z:         get_default_panel_thickness(),
			NumPanels: 1,
			Bifi:      1.0,
			Material:  "black",
		},
		Scene: SceneConfig{Azimuth: 180, NMods: 20, NRows: 7},
		Analysis: AnalysisConfig{
			SensorsY:    9,
			SensorsX:    1,
			FrontOffset: get_sensor_surface_offset(),
			BackOffset:  get_sensor_surface_offset(),
			Matchers:    defaultMatchers(),
			Downsample:  string(ByCenter),
		},
		Renderer: RendererConfig{
			Oconv:    "oconv",
			Rtrace:   "rtrace",
			Accuracy: "low",
			Timeout:  10 * time.Minute,
			Retries:  2,
		},
	}
}

/*
Load and validate a YAML configuration.

Args:
	path: configuration file
	log: logger receiving the resolution notes

Returns:
	validated configuration
*/
func LoadConfig(path string, log *zap.SugaredLogger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("read %s: %w", path, err)
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}
	if cfg.Simulation.Registry != "" {
		if err := cfg.useRegistry(log); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.logResolution(log)
	return cfg, nil
}

// ParseConfig decodes YAML on top of the documented defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, configErrorf("decode config: %w", err)
	}
	return cfg, nil
}

// Tracked reports whether the run is single-axis tracked.
func (c *Config) Tracked() bool { return c.Tracker != nil }

func (c *Config) logResolution(log *zap.SugaredLogger) {
	if c.Tracked() {
		log.Infof("tracking mode: axis_azimuth=%.1f limit_angle=%.1f backtrack=%t",
			c.Tracker.AxisAzimuth, *c.Tracker.LimitAngle, c.Tracker.Backtrack)
	} else {
		log.Infof("fixed tilt mode: tilt=%.1f azimuth=%.1f", *c.Scene.Tilt, c.Scene.Azimuth)
	}
	if c.Module.CellModule != nil {
		log.Infof("cellLevelModule set: module x/y are derived from the cell layout")
	}
	if c.Analysis.BackSensorsY == 0 {
		log.Debugf("sensorsy_back not set, using sensorsy=%d", c.Analysis.SensorsY)
	}
}

// Validate fails fast on missing or contradictory keys for the selected mode.
func (c *Config) Validate() error {
	if err := c.Module.validate(); err != nil {
		return err
	}
	s := c.Scene
	if s.NMods < 1 || s.NRows < 1 {
		return configErrorf("nMods and nRows must be >= 1, got %d x %d", s.NMods, s.NRows)
	}
	if s.Pitch == nil && s.GCR == nil {
		return configErrorf("missing required key: one of pitch or gcr")
	}
	if s.ClearanceHeight != nil && s.HubHeight != nil {
		return configErrorf("clearance_height and hub_height are mutually exclusive")
	}
	if c.Tracked() {
		if s.HubHeight == nil {
			return configErrorf("missing required key for tracking mode: hub_height")
		}
		if c.Tracker.LimitAngle == nil {
			return configErrorf("missing required key for tracking mode: limit_angle")
		}
		if *c.Tracker.LimitAngle <= 0 || *c.Tracker.LimitAngle > 90 {
			return configErrorf("limit_angle must be in (0, 90], got %g", *c.Tracker.LimitAngle)
		}
		if c.Tracker.AngleDelta < 0 {
			return configErrorf("angledelta must be >= 0, got %g", c.Tracker.AngleDelta)
		}
	} else {
		if s.Tilt == nil {
			return configErrorf("missing required key for fixed tilt mode: tilt")
		}
		if s.ClearanceHeight == nil {
			return configErrorf("missing required key for fixed tilt mode: clearance_height")
		}
	}
	a := c.Analysis
	if a.SensorsY < 1 || a.SensorsX < 1 || a.BackSensorsY < 0 || a.BackSensorsX < 0 {
		return configErrorf("sensor counts must be >= 1, got sensorsy=%d sensorsx=%d", a.SensorsY, a.SensorsX)
	}
	if a.ModWanted < 0 || a.ModWanted > s.NMods || a.RowWanted < 0 || a.RowWanted > s.NRows {
		return configErrorf("modWanted/rowWanted (%d, %d) outside the %d x %d array", a.ModWanted, a.RowWanted, s.NMods, s.NRows)
	}
	if a.NumCellsY > 0 {
		if _, err := parseDownsampleMethod(a.Downsample); err != nil {
			return err
		}
	}
	switch c.Simulation.Period {
	case "year", "month":
	default:
		return configErrorf("period must be year or month, got %q", c.Simulation.Period)
	}
	for _, m := range c.Materials {
		if m.Name == "" || m.Type == "" {
			return configErrorf("material entries need name and type: %+v", m)
		}
	}
	return nil
}

// SceneParams resolves the placement parameters for one tilt value.
func (c *Config) SceneParams(tilt, azimuth float64) SceneParams {
	return SceneParams{
		Name:            c.Simulation.Name,
		Tilt:            tilt,
		Azimuth:         azimuth,
		Pitch:           c.Scene.Pitch,
		GCR:             c.Scene.GCR,
		ClearanceHeight: c.Scene.ClearanceHeight,
		HubHeight:       c.Scene.HubHeight,
		NMods:           c.Scene.NMods,
		NRows:           c.Scene.NRows,
		OriginX:         c.Scene.OriginX,
		OriginY:         c.Scene.OriginY,
	}
}

// TrackerParams converts the tracker section for the angle solver.
func (c *Config) TrackerParams(gcr float64) TrackerParams {
	return TrackerParams{
		AxisAzimuth: c.Tracker.AxisAzimuth,
		AxisTilt:    c.Tracker.AxisTilt,
		GCR:         gcr,
		LimitAngle:  *c.Tracker.LimitAngle,
		Backtrack:   c.Tracker.Backtrack,
	}
}

// AnalysisRequest converts the analysis section for the sensor generator.
func (c *Config) AnalysisRequest() AnalysisRequest {
	a := c.Analysis
	return AnalysisRequest{
		ModWanted:    a.ModWanted,
		RowWanted:    a.RowWanted,
		SensorsY:     a.SensorsY,
		SensorsX:     a.SensorsX,
		BackSensorsY: a.BackSensorsY,
		BackSensorsX: a.BackSensorsX,
		FrontOffset:  a.FrontOffset,
		BackOffset:   a.BackOffset,
	}
}

func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(out)
}

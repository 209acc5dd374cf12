package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func f64(v float64) *float64 { return &v }

func testScene(t *testing.T, cfg ModuleConfig, p SceneParams) *Scene {
	t.Helper()
	m, err := NewModule(cfg)
	require.NoError(t, err)
	s, err := NewScene(m, p, zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

func TestResolvePitch_RoundTrip(t *testing.T) {
	for _, sceney := range []float64{0.5, 1, 2.1, 4.1} {
		for _, pitch := range []float64{0.3, 1, 3, 7.25, 12} {
			_, gcr, err := resolvePitch(sceney, f64(pitch), nil)
			require.NoError(t, err)
			back, gcr2, err := resolvePitch(sceney, nil, f64(gcr))
			require.NoError(t, err)
			assert.InDelta(t, pitch, back, 1e-9)
			assert.InDelta(t, gcr, gcr2, 1e-12)
		}
	}
}

func TestNewScene_GCRFromPitch(t *testing.T) {
	cfg := testModuleConfig()
	cfg.Y = 1
	s := testScene(t, cfg, SceneParams{Name: "s", Tilt: 10, Azimuth: 180, Pitch: f64(3), ClearanceHeight: f64(0.5), NMods: 3, NRows: 3})
	assert.InDelta(t, 0.3333, s.GCR, 1e-3)
	assert.InDelta(t, s.Module.SceneY/s.Pitch, s.GCR, 1e-9)
}

func TestNewScene_PitchAndGCR(t *testing.T) {
	m, err := NewModule(testModuleConfig())
	require.NoError(t, err)
	log := zap.NewNop().Sugar()

	_, err = NewScene(m, SceneParams{Pitch: f64(4), GCR: f64(0.5), HubHeight: f64(2), NMods: 1, NRows: 1}, log)
	assert.NoError(t, err)

	_, err = NewScene(m, SceneParams{Pitch: f64(4), GCR: f64(0.4), HubHeight: f64(2), NMods: 1, NRows: 1}, log)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewScene(m, SceneParams{HubHeight: f64(2), NMods: 1, NRows: 1}, log)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewScene_Heights(t *testing.T) {
	s := testScene(t, testModuleConfig(), SceneParams{Tilt: 30, Azimuth: 180, Pitch: f64(5), HubHeight: f64(2), NMods: 1, NRows: 1})
	assert.InDelta(t, 1.5, s.ClearanceHeight, 1e-9)

	s = testScene(t, testModuleConfig(), SceneParams{Tilt: -30, Azimuth: 90, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 1, NRows: 1})
	assert.InDelta(t, 1.5, s.HubHeight, 1e-9)

	m, err := NewModule(testModuleConfig())
	require.NoError(t, err)
	log := zap.NewNop().Sugar()
	_, err = NewScene(m, SceneParams{Tilt: 30, Pitch: f64(5), HubHeight: f64(2), ClearanceHeight: f64(1), NMods: 1, NRows: 1}, log)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewScene(m, SceneParams{Tilt: 60, Pitch: f64(5), HubHeight: f64(0.5), NMods: 1, NRows: 1}, log)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewScene_HeightsWithAxisOffset(t *testing.T) {
	cfg := testModuleConfig()
	cfg.ZGap = 0.1
	tube := defaultTorqueTube()
	cfg.TorqueTube = &tube

	// panel bottom sits zgap + tube radius above the axis
	s := testScene(t, cfg, SceneParams{Tilt: 0, Azimuth: 180, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 1, NRows: 1})
	assert.InDelta(t, 0.85, s.HubHeight, 1e-9)

	s = testScene(t, cfg, SceneParams{Tilt: 30, Azimuth: 180, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 1, NRows: 1})
	assert.InDelta(t, 1+0.5-0.15*math.Cos(30*dtor), s.HubHeight, 1e-9)

	s = testScene(t, cfg, SceneParams{Tilt: 30, Azimuth: 180, Pitch: f64(5), HubHeight: f64(2), NMods: 1, NRows: 1})
	assert.InDelta(t, 2-0.5+0.15*math.Cos(30*dtor), s.ClearanceHeight, 1e-9)

	front, back, err := ModuleAnalysis(testScene(t, cfg, SceneParams{Tilt: 0, Azimuth: 180, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 1, NRows: 1}),
		AnalysisRequest{SensorsY: 2, SensorsX: 1, FrontOffset: 0.01, BackOffset: 0.01})
	require.NoError(t, err)
	assert.InDelta(t, 0.99, back.Points()[0].Position.Z, 1e-9)
	assert.InDelta(t, 1.03, front.Points()[0].Position.Z, 1e-9)
}

func TestNewScene_OverlapWarns(t *testing.T) {
	m, err := NewModule(testModuleConfig())
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)

	s, err := NewScene(m, SceneParams{Name: "dense", Pitch: f64(1.5), ClearanceHeight: f64(1), NMods: 1, NRows: 2}, zap.New(core).Sugar())
	require.NoError(t, err)
	assert.InDelta(t, 2/1.5, s.GCR, 1e-9)
	assert.Equal(t, 1, logs.Len())
}

func TestCenterIndex(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 7: 4, 20: 10, 21: 11}
	for n, want := range cases {
		assert.Equal(t, want, centerIndex(n), "n=%d", n)
	}
}

func TestScene_ModuleCenter(t *testing.T) {
	s := testScene(t, testModuleConfig(), SceneParams{Tilt: 20, Azimuth: 180, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 5, NRows: 4})
	hub := 1 + math.Sin(20*dtor)

	c := s.ModuleCenter(3, 2)
	assert.True(t, c.Equal(Vec3{0, 0, hub}, 1e-9), c.String())

	c = s.ModuleCenter(4, 3)
	assert.True(t, c.Equal(Vec3{1, 5, hub}, 1e-9), c.String())

	// east-facing rows run north-south
	s = testScene(t, testModuleConfig(), SceneParams{Tilt: 20, Azimuth: 90, Pitch: f64(5), ClearanceHeight: f64(1), NMods: 5, NRows: 4, OriginX: 10})
	c = s.ModuleCenter(4, 2)
	assert.True(t, c.Equal(Vec3{10, 1, hub}, 1e-9), c.String())
}

func TestScene_Radiance(t *testing.T) {
	s := testScene(t, testModuleConfig(), SceneParams{Name: "field", Tilt: 30, Azimuth: 180, Pitch: f64(5), HubHeight: f64(2), NMods: 3, NRows: 2})
	text := s.Radiance("objects/test-module.rad")
	assert.Contains(t, text, "!xform -n field -rx 30 -t 0 0 2 -a 3 -t 1 0 0 -a 2 -t 0 5 0 -i 1 -t -1 0 0 -rz 0 -t 0 0 0 objects/test-module.rad")
	assert.Contains(t, text, "gcr=0.4")
}

package main

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noonRecord() WeatherRecord {
	return WeatherRecord{
		Timestamp: time.Date(2021, 6, 21, 12, 0, 0, 0, time.UTC),
		DNI:       800,
		DHI:       100,
		GHI:       792.82,
		Albedo:    0.3,
		Sun:       SunPosition{Zenith: 30, Azimuth: 180},
	}
}

func TestSkyDescription(t *testing.T) {
	text, err := SkyDescription(noonRecord())
	require.NoError(t, err)
	assert.Contains(t, text, "!gendaylit -ang 60 0 +s -g 0.3 -W 800 100 -O 1\n")
	assert.Contains(t, text, "skyfunc glow ground_glow\n0\n0\n4 0.3 0.3 0.3 0\n")
	assert.Contains(t, text, "ground_mat polygon groundplane")
}

func TestSkyDescription_Invalid(t *testing.T) {
	night := noonRecord()
	night.Sun.Zenith = 95
	_, err := SkyDescription(night)
	assert.ErrorIs(t, err, ErrConfiguration)

	shiny := noonRecord()
	shiny.Albedo = 1.5
	_, err = SkyDescription(shiny)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestHorizontalGlobal(t *testing.T) {
	assert.InDelta(t, 500, horizontalGlobal(800, 100, 30), 1e-9)
	assert.Equal(t, 100.0, horizontalGlobal(800, 100, -5))
}

func TestIsotropicPOA(t *testing.T) {
	rec := noonRecord()
	rec.Sun = SunPosition{Zenith: 0, Azimuth: 180}
	assert.InDelta(t, 900, isotropicPOA(rec, 0, 180), 1e-9)

	// facing the ground: ground reflection only
	assert.InDelta(t, rec.GHI*rec.Albedo, isotropicPOA(rec, 180, 180), 1e-9)

	rec.Sun.Zenith = 100
	assert.Equal(t, 0.0, isotropicPOA(rec, 20, 180))
}

func TestWriteMaterials(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteMaterials(dir, []MaterialConfig{
		{Name: "black", Type: "plastic", R: 0.02, G: 0.02, B: 0.02},
		{Name: "grass", Type: "plastic", R: 0.1, G: 0.3, B: 0.1},
	})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "void plastic black\n0\n0\n5 0.02 0.02 0.02 0 0\n")
	assert.NotContains(t, text, "5 0.01 0.01 0.01")
	assert.Contains(t, text, "void plastic grass")
	assert.Contains(t, text, "void glass clear_glass\n0\n0\n3 0.96 0.96 0.96\n")
	assert.Equal(t, 1, strings.Count(text, " black\n"))

	_, err = WriteMaterials(dir, []MaterialConfig{{Name: "odd", Type: "dielectric"}})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWriteSky(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSky(dir, "noon", noonRecord())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, strings.HasSuffix(path, "skies/noon.rad"))
}

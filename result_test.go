package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(y, irr float64, mat string) TraceSample {
	return TraceSample{Position: Vec3{0, y, 1}, Irradiance: irr, Material: mat}
}

func TestCleanResult_TubeHit(t *testing.T) {
	in := ResultTable{
		Front: []TraceSample{
			sample(0, 900, "a0.0.a0.PVmodule.6457"),
			sample(1, 901, "a0.0.a0.PVmodule.6457"),
			sample(2, 902, "a0.0.a0.PVmodule.6457"),
		},
		Back: []TraceSample{
			sample(0, 100, "a0.0.a0.PVmodule.2310"),
			sample(1, 80, "tube1row1"),
			sample(2, 95, "a0.0.a0.PVmodule.2310"),
		},
	}
	out, n := CleanResult(in, nil)
	assert.Equal(t, 1, n)
	assert.True(t, math.IsNaN(out.Back[1].Irradiance))
	assert.Equal(t, 100.0, out.Back[0].Irradiance)
	assert.Equal(t, 95.0, out.Back[2].Irradiance)
	assert.Equal(t, []float64{900, 901, 902}, out.FrontValues())
	// input is not modified
	assert.Equal(t, 80.0, in.Back[1].Irradiance)
}

func TestCleanResult_Idempotent(t *testing.T) {
	in := ResultTable{
		Front: []TraceSample{sample(0, 900, "sky_mat"), sample(1, 800, "cellPVmodule.6457")},
		Back:  []TraceSample{sample(0, 90, "groundplane"), sample(1, 70, "a0.0.a0.PVmodule.1540")},
	}
	once, n1 := CleanResult(in, nil)
	twice, n2 := CleanResult(once, nil)
	assert.Equal(t, 3, n1)
	assert.Equal(t, 0, n2)
	for i := range once.Front {
		assert.Equal(t, math.IsNaN(once.Front[i].Irradiance), math.IsNaN(twice.Front[i].Irradiance))
		assert.Equal(t, math.IsNaN(once.Back[i].Irradiance), math.IsNaN(twice.Back[i].Irradiance))
	}
	assert.Equal(t, 800.0, twice.Front[1].Irradiance)
}

func TestCleaner_Valid(t *testing.T) {
	c := NewCleaner(nil)
	cases := map[string]bool{
		"a0.0.a0.PVmodule.6457": true,
		"a4.2.a0.PVmodule.2310": true,
		"cellPVmodule.2310":     true,
		"a0.0.a0.PVmodule.1540": false,
		"a0.0.a0.PVmodule.3267": false,
		"sky":                   false,
		"groundplane":           false,
		"a1.0.tube1":            false,
		"a1.0.frameside1.6457":  false,
		"":                      false,
	}
	for mat, want := range cases {
		assert.Equal(t, want, c.Valid(mat), mat)
	}
}

func TestCleaner_SceneNameIgnored(t *testing.T) {
	c := NewCleaner(nil)
	for _, name := range []string{"test", "barcelona", "skyline", "frame_study", "groundtruth"} {
		assert.True(t, c.Valid(name+".1.2.a0.PVmodule.6457"), name)
		assert.False(t, c.Valid(name+".1.2.a0.PVmodule.3267"), name)
		assert.False(t, c.Valid(name+".1.2.tube1"), name)
	}

	out, n := CleanResult(ResultTable{
		Front: []TraceSample{sample(0.5, 900, "barcelona.1.2.a0.PVmodule.6457")},
		Back:  []TraceSample{sample(0.5, 90, "barcelona.1.2.a0.PVmodule.2310")},
	}, nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, 900.0, out.Front[0].Irradiance)
}

func TestCleaner_CustomMatchers(t *testing.T) {
	c := NewCleaner([]string{"6457"})
	assert.False(t, c.Valid("a0.0.a0.PVmodule.6457"))
	assert.True(t, c.Valid("a0.0.a0.PVmodule.1540"))
}

func TestResult_CombinedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := ResultTable{
		Front: []TraceSample{sample(0.25, 912.5, "a0.0.a0.PVmodule.6457"), sample(0.75, 910, "a0.0.a0.PVmodule.6457")},
		Back:  []TraceSample{sample(0.25, math.NaN(), "tube1"), sample(0.75, 97.25, "a0.0.a0.PVmodule.2310")},
	}
	paths, err := WriteResult(dir, "run_20210621_120000", in)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "run_20210621_120000.csv"), paths[0])

	out, err := ReadResult(dir, "run_20210621_120000")
	require.NoError(t, err)
	require.True(t, out.Combined())
	assert.Equal(t, []float64{912.5, 910}, out.FrontValues())
	assert.True(t, math.IsNaN(out.Back[0].Irradiance))
	assert.Equal(t, 97.25, out.Back[1].Irradiance)
	assert.Equal(t, "tube1", out.Back[0].Material)
	assert.Equal(t, Vec3{0, 0.75, 1}, out.Front[1].Position)
}

func TestResult_SplitFiles(t *testing.T) {
	dir := t.TempDir()
	in := ResultTable{
		Front: []TraceSample{sample(0, 900, "a"), sample(1, 901, "a")},
		Back:  []TraceSample{sample(0, 90, "b"), sample(1, 91, "b"), sample(2, 92, "b")},
	}
	paths, err := WriteResult(dir, "split", in)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "split_Front.csv"), filepath.Join(dir, "split_Back.csv")}, paths)

	out, err := ReadResult(dir, "split")
	require.NoError(t, err)
	assert.False(t, out.Combined())
	assert.Equal(t, []float64{900, 901}, out.FrontValues())
	assert.Equal(t, []float64{90, 91, 92}, out.BackValues())
}

func TestReadResult_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadResult(dir, "absent")
	assert.ErrorIs(t, err, ErrResultParse)

	data := "x,y,z,mattype,Wm2Front\n0,0,1,a,900\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.csv"), []byte(data), 0644))
	_, err = ReadResult(dir, "partial")
	assert.ErrorIs(t, err, ErrResultParse)

	data = "x,y,z,rearX,rearY,rearZ,mattype,rearMat,Wm2Front,Wm2Back\n0,0,1,0,0,1,a,b,lots,90\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbled.csv"), []byte(data), 0644))
	_, err = ReadResult(dir, "garbled")
	assert.ErrorIs(t, err, ErrResultParse)
}

func TestIrradiance_CSV(t *testing.T) {
	s, err := Irradiance(math.NaN()).MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "NaN", s)

	var v Irradiance
	require.NoError(t, v.UnmarshalCSV(" nan "))
	assert.True(t, math.IsNaN(float64(v)))
	require.NoError(t, v.UnmarshalCSV(""))
	assert.True(t, math.IsNaN(float64(v)))
	require.NoError(t, v.UnmarshalCSV("12.5"))
	assert.Equal(t, Irradiance(12.5), v)
	assert.Error(t, v.UnmarshalCSV("bright"))
}

func TestDownsampleToCells(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	got, up, err := DownsampleToCells(values, 8, 2, ByCenter)
	require.NoError(t, err)
	assert.False(t, up)
	assert.Equal(t, []float64{3, 7}, got)

	got, _, err = DownsampleToCells(values, 8, 2, ByAverage)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 6.5}, got)

	withNaN := []float64{1, math.NaN(), 5, 4}
	got, _, err = DownsampleToCells(withNaN, 4, 1, ByAverage)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3, got[0], 1e-12)

	got, _, err = DownsampleToCells([]float64{1, 2, 3, 4, 10, 20, 30, 40}, 4, 2, ByAverage)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3.5, 15, 35}, got)
}

func TestDownsampleToCells_Upsample(t *testing.T) {
	got, up, err := DownsampleToCells([]float64{1, 2}, 2, 4, ByAverage)
	require.NoError(t, err)
	assert.True(t, up)
	assert.Equal(t, []float64{1, 1, 2, 2}, got)
}

func TestDownsampleToCells_Invalid(t *testing.T) {
	_, _, err := DownsampleToCells([]float64{1, 2, 3}, 2, 1, ByCenter)
	assert.ErrorIs(t, err, ErrResultParse)
	_, _, err = DownsampleToCells([]float64{1}, 1, 0, ByCenter)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = parseDownsampleMethod("by_median")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWriteCellResult(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCellResult(dir, "cells", 2, []float64{1, 2, 3, 4}, []float64{math.NaN(), 0.5})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "side,column,cell,Wm2\nFront,1,1,1\nFront,1,2,2\nFront,2,1,3\nFront,2,2,4\nBack,1,1,NaN\nBack,1,2,0.5\n", string(data))
}

func TestWriteGroundResult(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteGroundResult(dir, "g", []TraceSample{{Position: Vec3{0, 1, 0.05}, Irradiance: 300, Material: "groundplane"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "g_Ground.csv"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "x,y,z,mattype,Wm2Ground\n")
	assert.Contains(t, string(data), "groundplane,300")
}

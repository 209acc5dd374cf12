package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokyo = SiteConfig{Latitude: 35.68, Longitude: 139.77, UTCOffset: 9, Albedo: 0.25}

func TestReadWeather_AllColumns(t *testing.T) {
	data := "timestamp,dni,dhi,ghi,albedo,zenith,azimuth\n" +
		"2021-06-21 12:00:00,800,100,,0.3,30,180\n" +
		"2021-06-21 13:00:00,700,120,650,,35,210\n"
	recs, err := readWeather(strings.NewReader(data), tokyo)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	r := recs[0]
	assert.Equal(t, 800.0, r.DNI)
	assert.Equal(t, 100.0, r.DHI)
	assert.InDelta(t, 792.82, r.GHI, 0.01)
	assert.Equal(t, 0.3, r.Albedo)
	assert.Equal(t, SunPosition{Zenith: 30, Azimuth: 180}, r.Sun)
	_, offset := r.Timestamp.Zone()
	assert.Equal(t, 9*3600, offset)
	assert.Equal(t, 12, r.Timestamp.Hour())

	assert.Equal(t, 650.0, recs[1].GHI)
	assert.Equal(t, 0.25, recs[1].Albedo)
}

func TestReadWeather_MinimalColumns(t *testing.T) {
	data := "timestamp,dni,dhi\n2021-06-21T12:00:00+09:00,800,100\n2021-06-21 00:00,0,0\n"
	recs, err := readWeather(strings.NewReader(data), tokyo)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	noon := recs[0]
	assert.InDelta(t, 77.7, noon.Sun.Elevation(), 2)
	assert.Equal(t, tokyo.Albedo, noon.Albedo)
	assert.InDelta(t, math.Sin(noon.Sun.Elevation()*dtor)*800+100, noon.GHI, 1e-9)

	midnight := recs[1]
	assert.Less(t, midnight.Sun.Elevation(), 0.0)
	assert.Equal(t, 0.0, midnight.GHI)
}

func TestReadWeather_Errors(t *testing.T) {
	cases := map[string]string{
		"timestamp": "timestamp,dni,dhi\nJune 21,800,100\n",
		"zenith":    "timestamp,dni,dhi,zenith,azimuth\n2021-06-21 12:00,800,100,high,180\n",
		"empty":     "timestamp,dni,dhi\n",
		"dni":       "timestamp,dni,dhi\n2021-06-21 12:00,lots,100\n",
	}
	for name, data := range cases {
		_, err := readWeather(strings.NewReader(data), tokyo)
		assert.ErrorIs(t, err, ErrConfiguration, name)
	}
}

func TestReadWeather_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,dni,dhi\n2021/06/21 12:00,800,100\n"), 0644))
	recs, err := ReadWeather(path, tokyo)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, time.June, recs[0].Timestamp.Month())

	_, err = ReadWeather(filepath.Join(t.TempDir(), "missing.csv"), tokyo)
	assert.ErrorIs(t, err, ErrConfiguration)
}

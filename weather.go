package main

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// WeatherRecord is one timestamp of the weather tuple consumed by the
// simulation.
type WeatherRecord struct {
	Timestamp time.Time
	DNI       float64 // direct normal, W/m2
	DHI       float64 // diffuse horizontal, W/m2
	GHI       float64 // global horizontal, W/m2
	Albedo    float64 // -
	Sun       SunPosition
}

// weatherRow is one CSV line. Optional columns are read as text so that an
// empty cell can fall back to the derived value.
type weatherRow struct {
	Timestamp string  `csv:"timestamp"`
	DNI       float64 `csv:"dni"`
	DHI       float64 `csv:"dhi"`
	GHI       string  `csv:"ghi"`
	Albedo    string  `csv:"albedo"`
	Zenith    string  `csv:"zenith"`
	Azimuth   string  `csv:"azimuth"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

/*
Read the weather tuple file.

Args:
	path: CSV with columns timestamp, dni, dhi and optionally ghi, albedo,
		zenith, azimuth
	site: location used for the sun position, the zone of timestamps without
		offset and the default albedo

Returns:
	records in file order
*/
func ReadWeather(path string, site SiteConfig) ([]WeatherRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configErrorf("open weather file: %w", err)
	}
	defer f.Close()
	return readWeather(f, site)
}

func readWeather(r io.Reader, site SiteConfig) ([]WeatherRecord, error) {
	var rows []*weatherRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, configErrorf("decode weather file: %w", err)
	}
	if len(rows) == 0 {
		return nil, configErrorf("weather file has no records")
	}
	zone := time.FixedZone("site", int(site.UTCOffset*3600))

	out := make([]WeatherRecord, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row.Timestamp, zone)
		if err != nil {
			return nil, configErrorf("weather line %d: %w", i+2, err)
		}
		rec := WeatherRecord{Timestamp: ts, DNI: row.DNI, DHI: row.DHI, Albedo: site.Albedo}

		zen, okZ, err := optionalFloat(row.Zenith)
		if err != nil {
			return nil, configErrorf("weather line %d zenith: %w", i+2, err)
		}
		az, okA, err := optionalFloat(row.Azimuth)
		if err != nil {
			return nil, configErrorf("weather line %d azimuth: %w", i+2, err)
		}
		if okZ && okA {
			rec.Sun = SunPosition{Zenith: zen, Azimuth: az}
		} else {
			rec.Sun = SolarPosition(site.Latitude, site.Longitude, ts)
		}

		if albedo, ok, err := optionalFloat(row.Albedo); err != nil {
			return nil, configErrorf("weather line %d albedo: %w", i+2, err)
		} else if ok {
			rec.Albedo = albedo
		}

		ghi, ok, err := optionalFloat(row.GHI)
		if err != nil {
			return nil, configErrorf("weather line %d ghi: %w", i+2, err)
		}
		if ok {
			rec.GHI = ghi
		} else {
			rec.GHI = horizontalGlobal(rec.DNI, rec.DHI, rec.Sun.Elevation())
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTimestamp(s string, zone *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func optionalFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

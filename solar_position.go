package main

import (
	"math"
	"time"
)

// SunPosition is the apparent position of the sun.
type SunPosition struct {
	Zenith  float64 // deg
	Azimuth float64 // deg, 0 = N, clockwise
}

// Elevation returns the solar altitude, deg.
func (s SunPosition) Elevation() float64 { return 90 - s.Zenith }

/*
Compute the solar position at a timestamp.

Args:
	lat: latitude, deg
	lon: longitude, deg, east positive
	t: timestamp; its zone offset fixes the standard meridian

Returns:
	solar position

Notes:
	Low-order ecliptic model: mean anomaly -> true anomaly -> equation of
	time and declination -> hour angle -> altitude and azimuth. The sun
	exactly at the zenith has no azimuth and reports 180.
*/
func SolarPosition(lat, lon float64, t time.Time) SunPosition {
	phi_loc := lat * dtor
	lambda_loc := lon * dtor

	// years since 1968, year
	n := t.Year() - 1968

	d_0 := _get_d_0(n)
	m := _get_m(float64(t.YearDay()), d_0)
	epsilon := _get_epsilon(m, n)
	v := _get_v(m)
	e_t := _get_e_t(m, epsilon, v)
	delta := _get_delta(epsilon, v)

	omega := _get_omega(_get_t_m(t), lambda_loc, _get_lambda_loc_mer(t), e_t)
	h_sun := _get_h_sun(phi_loc, omega, delta)

	pos := SunPosition{Zenith: 90 - h_sun/dtor, Azimuth: 180}
	if math.Cos(h_sun) > 1e-12 {
		pos.Azimuth = _get_a_sun(phi_loc, delta, h_sun, omega)
	}
	return pos
}

// longitude of the standard meridian, rad
func _get_lambda_loc_mer(t time.Time) float64 {
	_, offset := t.Zone()
	return float64(offset) / 3600 * 15 * dtor
}

/*
Perihelion passage on the mean orbit.

Args:
	n: years since 1968

Returns:
	days from 1968-01-01 noon, d
*/
func _get_d_0(n int) float64 {
	return 3.71 + 0.2596*float64(n) - float64((n+3)/4)
}

/*
Mean anomaly.

Args:
	d: day of year, 1 on Jan 1, d
	d_0: perihelion passage, d

Returns:
	mean anomaly, rad
*/
func _get_m(d, d_0 float64) float64 {
	// anomalistic year, d
	d_ay := 365.2596
	return 2 * math.Pi * (d - d_0) / d_ay
}

// angle between perihelion and winter solstice, rad
func _get_epsilon(m float64, n int) float64 {
	return (12.3901 + 0.0172*(float64(n)+m/(2*math.Pi))) * dtor
}

// true anomaly, rad
func _get_v(m float64) float64 {
	return m + (1.914*math.Sin(m)+0.02*math.Sin(2*m))*dtor
}

/*
Equation of time.

Args:
	m: mean anomaly, rad
	epsilon: perihelion to winter solstice angle, rad
	v: true anomaly, rad

Returns:
	equation of time, rad
*/
func _get_e_t(m, epsilon, v float64) float64 {
	return (m - v) - math.Atan(0.043*math.Sin(2*(v+epsilon))/(1-0.043*math.Cos(2*(v+epsilon))))
}

// declination, rad
func _get_delta(epsilon, v float64) float64 {
	// declination at the northern winter solstice, rad
	delta_0 := -23.4393 * dtor
	return math.Asin(math.Cos(v+epsilon) * math.Sin(delta_0))
}

// standard time, h
func _get_t_m(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

/*
Hour angle.

Args:
	t_m: standard time, h
	lambda_loc: longitude, rad
	lambda_loc_mer: longitude of the standard meridian, rad
	e_t: equation of time, rad

Returns:
	hour angle, rad
*/
func _get_omega(t_m, lambda_loc, lambda_loc_mer, e_t float64) float64 {
	return (t_m-12)*15*dtor + (lambda_loc - lambda_loc_mer) + e_t
}

// solar altitude, rad
func _get_h_sun(phi_loc, omega, delta float64) float64 {
	return math.Asin(math.Sin(phi_loc)*math.Sin(delta) + math.Cos(phi_loc)*math.Cos(delta)*math.Cos(omega))
}

/*
Solar azimuth.

Args:
	phi_loc: latitude, rad
	delta: declination, rad
	h_sun: altitude, rad (below 90 deg)
	omega: hour angle, rad

Returns:
	azimuth, deg, 0 = N, clockwise
*/
func _get_a_sun(phi_loc, delta, h_sun, omega float64) float64 {
	sin_a_sun := math.Cos(delta) * math.Sin(omega) / math.Cos(h_sun)
	cos_a_sun := (math.Sin(h_sun)*math.Sin(phi_loc) - math.Sin(delta)) / (math.Cos(h_sun) * math.Cos(phi_loc))
	// atan2 gives the azimuth from south, west positive
	return normalizeAzimuth(math.Atan2(sin_a_sun, cos_a_sun)/dtor + 180)
}

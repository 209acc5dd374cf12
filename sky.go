package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

/*
Compute the global horizontal irradiance.

Args:
	dni: direct normal irradiance, W/m2
	dhi: diffuse horizontal irradiance, W/m2
	elevation: solar altitude, deg

Returns:
	global horizontal irradiance, W/m2

Notes:
	The sun below the horizon contributes no beam.
*/
func horizontalGlobal(dni, dhi, elevation float64) float64 {
	return math.Sin(math.Max(elevation, 0)*dtor)*dni + dhi
}

/*
Sky view factor of a tilted surface.

Args:
	tilt: surface tilt, deg, 0 = facing up, 180 = facing down

Returns:
	view factor to the sky, -
*/
func skyViewFactor(tilt float64) float64 {
	return (1 + math.Cos(math.Abs(tilt)*dtor)) / 2
}

func groundViewFactor(tilt float64) float64 {
	return 1 - skyViewFactor(tilt)
}

/*
Isotropic plane-of-array irradiance of one surface, used as a quick
estimate in dry runs.

Args:
	rec: weather tuple
	tilt: surface tilt, deg
	azimuth: surface azimuth, deg, 0 = N

Returns:
	beam + sky diffuse + ground reflected irradiance, W/m2
*/
func isotropicPOA(rec WeatherRecord, tilt, azimuth float64) float64 {
	if rec.Sun.Elevation() <= 0 {
		return 0
	}
	n := NewModuleFrame(tilt, azimuth).Normal()
	zr, ar := rec.Sun.Zenith*dtor, rec.Sun.Azimuth*dtor
	s := Vec3{math.Sin(zr) * math.Sin(ar), math.Sin(zr) * math.Cos(ar), math.Cos(zr)}
	beam := rec.DNI * math.Max(n.Dot(s), 0)
	return beam + rec.DHI*skyViewFactor(tilt) + rec.GHI*rec.Albedo*groundViewFactor(tilt)
}

/*
Sky description of one timestamp.

Args:
	rec: weather tuple

Returns:
	renderer text: a gendaylit sun and sky, the sky and ground glow
	hemispheres and a ground plane

Notes:
	gendaylit takes the azimuth from south, west positive. The ground glow
	and the ground plane use the albedo as grey reflectance.
*/
func SkyDescription(rec WeatherRecord) (string, error) {
	elev := rec.Sun.Elevation()
	if elev <= 0 {
		return "", configErrorf("sun below the horizon at %s", rec.Timestamp.Format("2006-01-02 15:04"))
	}
	if rec.Albedo < 0 || rec.Albedo > 1 {
		return "", configErrorf("albedo must be in [0, 1], got %g", rec.Albedo)
	}
	a := num(rec.Albedo)
	var b strings.Builder
	fmt.Fprintf(&b, "# sky %s\n", rec.Timestamp.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "!gendaylit -ang %s %s +s -g %s -W %s %s -O 1\n\n",
		num(elev), num(rec.Sun.Azimuth-180), a, num(rec.DNI), num(rec.DHI))
	b.WriteString("skyfunc glow sky_mat\n0\n0\n4 1 1 1 0\n\n")
	b.WriteString("sky_mat source sky\n0\n0\n4 0 0 1 180\n\n")
	fmt.Fprintf(&b, "skyfunc glow ground_glow\n0\n0\n4 %s %s %s 0\n\n", a, a, a)
	b.WriteString("ground_glow source groundglow\n0\n0\n4 0 0 -1 180\n\n")
	fmt.Fprintf(&b, "void plastic ground_mat\n0\n0\n5 %s %s %s 0 0\n\n", a, a, a)
	b.WriteString("ground_mat polygon groundplane\n0\n0\n12 -10000 -10000 0  -10000 10000 0  10000 10000 0  10000 -10000 0\n")
	return b.String(), nil
}

// WriteSky writes skies/<name>.rad under dir and returns its path.
func WriteSky(dir, name string, rec WeatherRecord) (string, error) {
	text, err := SkyDescription(rec)
	if err != nil {
		return "", err
	}
	skyDir := filepath.Join(dir, "skies")
	if err := os.MkdirAll(skyDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(skyDir, name+".rad")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// defaultMaterials is the library every scene can reference.
func defaultMaterials() []MaterialConfig {
	return []MaterialConfig{
		{Name: "black", Type: "plastic", R: 0.01, G: 0.01, B: 0.01},
		{Name: "Metal_Grey", Type: "metal", R: 0.25, G: 0.25, B: 0.25, Specularity: 0.5},
		{Name: "white_EPDM", Type: "plastic", R: 0.78, G: 0.78, B: 0.78},
		{Name: "clear_glass", Type: "glass", R: 0.96, G: 0.96, B: 0.96},
	}
}

// unknownMaterials lists the names in used that neither the default
// library nor extra defines.
func unknownMaterials(used []string, extra []MaterialConfig) []string {
	known := map[string]bool{}
	for _, m := range append(defaultMaterials(), extra...) {
		known[m.Name] = true
	}
	var out []string
	for _, name := range used {
		if !known[name] {
			out = append(out, name)
		}
	}
	return out
}

func (m MaterialConfig) radiance() (string, error) {
	switch m.Type {
	case "plastic", "metal":
		return fmt.Sprintf("void %s %s\n0\n0\n5 %s %s %s %s %s\n",
			m.Type, m.Name, num(m.R), num(m.G), num(m.B), num(m.Specularity), num(m.Roughness)), nil
	case "glass":
		return fmt.Sprintf("void glass %s\n0\n0\n3 %s %s %s\n", m.Name, num(m.R), num(m.G), num(m.B)), nil
	default:
		return "", configErrorf("material %s: unknown type %q", m.Name, m.Type)
	}
}

/*
Write the material library.

Args:
	dir: scene directory
	extra: user materials; an entry replaces a default of the same name

Returns:
	path of materials/ground.rad
*/
func WriteMaterials(dir string, extra []MaterialConfig) (string, error) {
	mats := defaultMaterials()
	index := map[string]int{}
	for i, m := range mats {
		index[m.Name] = i
	}
	for _, m := range extra {
		if i, ok := index[m.Name]; ok {
			mats[i] = m
			continue
		}
		index[m.Name] = len(mats)
		mats = append(mats, m)
	}

	var b strings.Builder
	for _, m := range mats {
		text, err := m.radiance()
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	matDir := filepath.Join(dir, "materials")
	if err := os.MkdirAll(matDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(matDir, "ground.rad")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

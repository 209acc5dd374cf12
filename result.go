package main

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
)

// Irradiance is a W/m2 value whose CSV form writes NaN as "NaN" and reads
// an empty cell or "nan" as NaN.
type Irradiance float64

func (v Irradiance) MarshalCSV() (string, error) {
	if math.IsNaN(float64(v)) {
		return "NaN", nil
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 64), nil
}

func (v *Irradiance) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		*v = Irradiance(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = Irradiance(f)
	return nil
}

// ResultRecord is one row of a combined result file.
type ResultRecord struct {
	X       float64    `csv:"x"`
	Y       float64    `csv:"y"`
	Z       float64    `csv:"z"`
	RearX   float64    `csv:"rearX"`
	RearY   float64    `csv:"rearY"`
	RearZ   float64    `csv:"rearZ"`
	MatType string     `csv:"mattype"`
	RearMat string     `csv:"rearMat"`
	Front   Irradiance `csv:"Wm2Front"`
	Back    Irradiance `csv:"Wm2Back"`
}

type frontRecord struct {
	X       float64    `csv:"x"`
	Y       float64    `csv:"y"`
	Z       float64    `csv:"z"`
	MatType string     `csv:"mattype"`
	Front   Irradiance `csv:"Wm2Front"`
}

type backRecord struct {
	X       float64    `csv:"x"`
	Y       float64    `csv:"y"`
	Z       float64    `csv:"z"`
	RearMat string     `csv:"rearMat"`
	Back    Irradiance `csv:"Wm2Back"`
}

var (
	combinedColumns = []string{"x", "y", "z", "mattype", "rearMat", "Wm2Front", "Wm2Back"}
	frontColumns    = []string{"x", "y", "z", "mattype", "Wm2Front"}
	backColumns     = []string{"x", "y", "z", "rearMat", "Wm2Back"}
)

// ResultTable holds the samples of both faces of one module for one
// timestamp. Front and back may have different lengths.
type ResultTable struct {
	Front []TraceSample
	Back  []TraceSample
}

// Combined reports whether front and back pair up row by row.
func (t ResultTable) Combined() bool { return len(t.Front) == len(t.Back) }

// Records pairs front and back samples; only valid when Combined.
func (t ResultTable) Records() []ResultRecord {
	out := make([]ResultRecord, len(t.Front))
	for i, f := range t.Front {
		b := t.Back[i]
		out[i] = ResultRecord{
			X: f.Position.X, Y: f.Position.Y, Z: f.Position.Z,
			RearX: b.Position.X, RearY: b.Position.Y, RearZ: b.Position.Z,
			MatType: f.Material, RearMat: b.Material,
			Front: Irradiance(f.Irradiance), Back: Irradiance(b.Irradiance),
		}
	}
	return out
}

func (t ResultTable) FrontValues() []float64 { return sampleValues(t.Front) }
func (t ResultTable) BackValues() []float64  { return sampleValues(t.Back) }

func sampleValues(s []TraceSample) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Irradiance
	}
	return out
}

func (t ResultTable) clone() ResultTable {
	return ResultTable{
		Front: append([]TraceSample(nil), t.Front...),
		Back:  append([]TraceSample(nil), t.Back...),
	}
}

// nanTable is the table of a timestamp whose results could not be read.
func nanTable(front, back []SensorPoint) ResultTable {
	fill := func(points []SensorPoint) []TraceSample {
		out := make([]TraceSample, len(points))
		for i, p := range points {
			out[i] = TraceSample{Position: p.Position, Irradiance: math.NaN()}
		}
		return out
	}
	return ResultTable{Front: fill(front), Back: fill(back)}
}

/*
Write a result table.

Args:
	dir: output directory
	name: file stem, e.g. <simulation>_<timestamp>

Returns:
	written paths: <name>.csv when front and back have the same count,
	otherwise <name>_Front.csv and <name>_Back.csv
*/
func WriteResult(dir, name string, t ResultTable) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if t.Combined() {
		path := filepath.Join(dir, name+".csv")
		records := t.Records()
		return []string{path}, writeCSV(path, &records)
	}
	front := make([]frontRecord, len(t.Front))
	for i, s := range t.Front {
		front[i] = frontRecord{s.Position.X, s.Position.Y, s.Position.Z, s.Material, Irradiance(s.Irradiance)}
	}
	back := make([]backRecord, len(t.Back))
	for i, s := range t.Back {
		back[i] = backRecord{s.Position.X, s.Position.Y, s.Position.Z, s.Material, Irradiance(s.Irradiance)}
	}
	frontPath := filepath.Join(dir, name+"_Front.csv")
	backPath := filepath.Join(dir, name+"_Back.csv")
	if err := writeCSV(frontPath, &front); err != nil {
		return nil, err
	}
	if err := writeCSV(backPath, &back); err != nil {
		return nil, err
	}
	return []string{frontPath, backPath}, nil
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

/*
Read the result of one timestamp.

Args:
	dir: directory holding the result files
	name: file stem; <name>.csv is read if present, otherwise the
		<name>_Front.csv / <name>_Back.csv pair

Returns:
	result table; missing files or columns are a ResultParseError
*/
func ReadResult(dir, name string) (ResultTable, error) {
	combined := filepath.Join(dir, name+".csv")
	if data, err := os.ReadFile(combined); err == nil {
		return parseCombinedResult(data)
	}
	front, err := os.ReadFile(filepath.Join(dir, name+"_Front.csv"))
	if err != nil {
		return ResultTable{}, parseErrorf("no result file for %s: %v", name, err)
	}
	back, err := os.ReadFile(filepath.Join(dir, name+"_Back.csv"))
	if err != nil {
		return ResultTable{}, parseErrorf("no back result file for %s: %v", name, err)
	}
	return parseSplitResult(front, back)
}

func parseCombinedResult(data []byte) (ResultTable, error) {
	if err := requireColumns(data, combinedColumns); err != nil {
		return ResultTable{}, err
	}
	var rows []ResultRecord
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return ResultTable{}, parseErrorf("decode result: %v", err)
	}
	t := ResultTable{Front: make([]TraceSample, len(rows)), Back: make([]TraceSample, len(rows))}
	for i, r := range rows {
		t.Front[i] = TraceSample{Position: Vec3{r.X, r.Y, r.Z}, Irradiance: float64(r.Front), Material: r.MatType}
		t.Back[i] = TraceSample{Position: Vec3{r.RearX, r.RearY, r.RearZ}, Irradiance: float64(r.Back), Material: r.RearMat}
	}
	return t, nil
}

func parseSplitResult(frontData, backData []byte) (ResultTable, error) {
	if err := requireColumns(frontData, frontColumns); err != nil {
		return ResultTable{}, err
	}
	if err := requireColumns(backData, backColumns); err != nil {
		return ResultTable{}, err
	}
	var front []frontRecord
	if err := gocsv.UnmarshalBytes(frontData, &front); err != nil {
		return ResultTable{}, parseErrorf("decode front result: %v", err)
	}
	var back []backRecord
	if err := gocsv.UnmarshalBytes(backData, &back); err != nil {
		return ResultTable{}, parseErrorf("decode back result: %v", err)
	}
	t := ResultTable{Front: make([]TraceSample, len(front)), Back: make([]TraceSample, len(back))}
	for i, r := range front {
		t.Front[i] = TraceSample{Position: Vec3{r.X, r.Y, r.Z}, Irradiance: float64(r.Front), Material: r.MatType}
	}
	for i, r := range back {
		t.Back[i] = TraceSample{Position: Vec3{r.X, r.Y, r.Z}, Irradiance: float64(r.Back), Material: r.RearMat}
	}
	return t, nil
}

// requireColumns checks the header row before decoding; gocsv silently
// leaves missing columns at their zero value.
func requireColumns(data []byte, want []string) error {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return parseErrorf("read result header: %v", err)
	}
	have := map[string]bool{}
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, c := range want {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return parseErrorf("result file is missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// defaultMatchers are the material fragments that mark a sensor hit on
// something other than a module face: sky, tube, posts, ground, frame,
// brackets and the two box faces the panel edges are made of.
func defaultMatchers() []string {
	return []string{"sky", "tube", "pole", "bar", "ground", "frame", "omega", "3267", "1540"}
}

// moduleSurface matches the face identifiers of panel and cell boxes,
// e.g. "a3.2.a0.PVmodule.6457".
var moduleSurface = regexp.MustCompile(`(^|\.)(cell)?PVmodule\.\d+$`)

// Cleaner decides which sensor hits are valid module-surface samples.
type Cleaner struct {
	matchers []string
}

// NewCleaner builds a cleaner; nil matchers select defaultMatchers.
func NewCleaner(matchers []string) *Cleaner {
	if matchers == nil {
		matchers = defaultMatchers()
	}
	return &Cleaner{matchers: matchers}
}

// Valid reports whether a hit identifier belongs to a module face. The
// matchers are tested against the face component only; the instance
// prefixes carry user-chosen scene names.
func (c *Cleaner) Valid(material string) bool {
	face := moduleSurface.FindString(material)
	if face == "" {
		return false
	}
	face = strings.TrimPrefix(face, ".")
	for _, m := range c.matchers {
		if strings.Contains(face, m) {
			return false
		}
	}
	return true
}

/*
Invalidate the samples that did not hit a module face.

Args:
	t: result table
	matchers: excluded material fragments, nil for the defaults

Returns:
	a cleaned copy of t and the number of samples newly set to NaN

Notes:
	Cleaning is idempotent: NaN samples stay NaN and are not counted again.
*/
func CleanResult(t ResultTable, matchers []string) (ResultTable, int) {
	c := NewCleaner(matchers)
	out := t.clone()
	n := c.clean(out.Front) + c.clean(out.Back)
	return out, n
}

func (c *Cleaner) clean(samples []TraceSample) int {
	n := 0
	for i := range samples {
		if !c.Valid(samples[i].Material) && !math.IsNaN(samples[i].Irradiance) {
			samples[i].Irradiance = math.NaN()
			n++
		}
	}
	return n
}

// DownsampleMethod selects how sensors are binned into cells.
type DownsampleMethod string

const (
	ByCenter  DownsampleMethod = "by_center"
	ByAverage DownsampleMethod = "by_average"
)

func parseDownsampleMethod(s string) (DownsampleMethod, error) {
	switch m := DownsampleMethod(s); m {
	case ByCenter, ByAverage:
		return m, nil
	default:
		return "", configErrorf("downsample must be by_center or by_average, got %q", s)
	}
}

/*
Resample scan lines to per-cell resolution.

Args:
	values: samples of one face, lines consecutive values per scan line
	lines: sensors per scan line
	numCells: cells per scan line
	method: by_center picks the sensor nearest each cell center, by_average
		takes the NaN-aware mean of the sensors inside each cell

Returns:
	numCells values per scan line, and whether the line had fewer sensors
	than cells (then every cell takes its nearest sensor)

Notes:
	Positions are normalized along the scan line: sensor i sits at
	(i + 0.5) / lines, cell k spans [k, k+1) / numCells.
*/
func DownsampleToCells(values []float64, lines, numCells int, method DownsampleMethod) ([]float64, bool, error) {
	if lines < 1 || numCells < 1 {
		return nil, false, configErrorf("lines and numcells must be >= 1, got %d and %d", lines, numCells)
	}
	if len(values)%lines != 0 {
		return nil, false, parseErrorf("%d values do not fill scan lines of %d", len(values), lines)
	}
	upsample := lines < numCells
	var out []float64
	for off := 0; off < len(values); off += lines {
		line := values[off : off+lines]
		for k := 0; k < numCells; k++ {
			if method == ByCenter || upsample {
				out = append(out, line[nearestSensor(k, lines, numCells)])
				continue
			}
			lo, hi := float64(k)/float64(numCells), float64(k+1)/float64(numCells)
			var in []float64
			for i, v := range line {
				pos := (float64(i) + 0.5) / float64(lines)
				if pos >= lo && pos < hi && !math.IsNaN(v) {
					in = append(in, v)
				}
			}
			if len(in) == 0 {
				out = append(out, math.NaN())
				continue
			}
			out = append(out, floats.Sum(in)/float64(len(in)))
		}
	}
	return out, upsample, nil
}

func nearestSensor(k, lines, numCells int) int {
	center := (float64(k) + 0.5) / float64(numCells)
	i := int(math.Floor(center * float64(lines)))
	if i >= lines {
		i = lines - 1
	}
	return i
}

type groundRecord struct {
	X         float64    `csv:"x"`
	Y         float64    `csv:"y"`
	Z         float64    `csv:"z"`
	MatType   string     `csv:"mattype"`
	Wm2Ground Irradiance `csv:"Wm2Ground"`
}

// WriteGroundResult writes <name>_Ground.csv; ground hits are not cleaned.
func WriteGroundResult(dir, name string, samples []TraceSample) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	rows := make([]groundRecord, len(samples))
	for i, s := range samples {
		rows[i] = groundRecord{s.Position.X, s.Position.Y, s.Position.Z, s.Material, Irradiance(s.Irradiance)}
	}
	path := filepath.Join(dir, name+"_Ground.csv")
	return path, writeCSV(path, &rows)
}

// CellResult is one resampled cell value.
type CellResult struct {
	Side       string     `csv:"side"`
	Column     int        `csv:"column"`
	Cell       int        `csv:"cell"`
	Irradiance Irradiance `csv:"Wm2"`
}

// WriteCellResult writes <name>_Cells.csv in long form, one row per face,
// scan column and cell.
func WriteCellResult(dir, name string, numCells int, front, back []float64) (string, error) {
	var rows []CellResult
	for _, side := range []struct {
		name   string
		values []float64
	}{{"Front", front}, {"Back", back}} {
		for i, v := range side.values {
			rows = append(rows, CellResult{side.name, i/numCells + 1, i%numCells + 1, Irradiance(v)})
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+"_Cells.csv")
	return path, writeCSV(path, &rows)
}

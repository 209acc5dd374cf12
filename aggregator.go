package main

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

/*
Bifacial gain.

Args:
	totalBack: rear irradiance (total or mean), W/m2
	totalFront: front irradiance (same aggregation as totalBack), W/m2
	bifi: bifaciality factor, -

Returns:
	totalBack * bifi / totalFront, NaN when the front is zero or NaN
*/
func BifacialGain(totalBack, totalFront, bifi float64) float64 {
	if totalFront == 0 || math.IsNaN(totalFront) || math.IsNaN(totalBack) {
		return math.NaN()
	}
	return totalBack * bifi / totalFront
}

/*
Bifacial gain of one result table.

Args:
	t: cleaned result table
	bifi: bifaciality factor, -

Returns:
	gain of the mean rear over the mean front irradiance

Notes:
	When front and back pair up, rows with NaN on either face are dropped
	before averaging. Otherwise each face is averaged over its valid samples.
*/
func BifacialGainOfTable(t ResultTable, bifi float64) float64 {
	front, back := t.FrontValues(), t.BackValues()
	if t.Combined() {
		var f, b []float64
		for i := range front {
			if math.IsNaN(front[i]) || math.IsNaN(back[i]) {
				continue
			}
			f = append(f, front[i])
			b = append(b, back[i])
		}
		if len(f) == 0 {
			return math.NaN()
		}
		return BifacialGain(stat.Mean(b, nil), stat.Mean(f, nil), bifi)
	}
	return BifacialGain(nanMean(back), nanMean(front), bifi)
}

// nanMean is the mean of the non-NaN values, NaN if there are none.
func nanMean(v []float64) float64 {
	valid := dropNaN(v)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func dropNaN(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Accumulator sums per-sensor irradiance over timestamps, skipping NaN.
type Accumulator struct {
	Steps  int
	front  []float64
	back   []float64
	frontN []int
	backN  []int
}

func NewAccumulator() *Accumulator { return &Accumulator{} }

// Add accumulates one timestamp. The first call fixes the sensor counts.
func (a *Accumulator) Add(front, back []float64) error {
	if a.Steps == 0 && a.front == nil {
		a.front, a.frontN = make([]float64, len(front)), make([]int, len(front))
		a.back, a.backN = make([]float64, len(back)), make([]int, len(back))
	}
	if len(front) != len(a.front) || len(back) != len(a.back) {
		return parseErrorf("sensor count changed from %d/%d to %d/%d", len(a.front), len(a.back), len(front), len(back))
	}
	addValid(a.front, a.frontN, front)
	addValid(a.back, a.backN, back)
	a.Steps++
	return nil
}

func addValid(sum []float64, n []int, v []float64) {
	for i, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum[i] += x
		n[i]++
	}
}

// Totals returns the per-sensor sums; a sensor never validly sampled is NaN.
func (a *Accumulator) Totals() (front, back []float64) {
	return totals(a.front, a.frontN), totals(a.back, a.backN)
}

func totals(sum []float64, n []int) []float64 {
	out := make([]float64, len(sum))
	for i := range sum {
		if n[i] == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum[i]
		}
	}
	return out
}

// Gain is the bifacial gain of the accumulated totals.
func (a *Accumulator) Gain(bifi float64) float64 {
	front, back := a.Totals()
	return BifacialGain(nanMean(back), nanMean(front), bifi)
}

// PeriodSummary is one row of the summary file.
type PeriodSummary struct {
	Period string     `csv:"period"`
	Steps  int        `csv:"timestamps"`
	Front  Irradiance `csv:"Wm2Front"`
	Back   Irradiance `csv:"Wm2Back"`
	Gain   Irradiance `csv:"bifacialGain"`
}

// SensorTotal is one row of the per-sensor totals file.
type SensorTotal struct {
	Sensor int        `csv:"sensor"`
	Front  Irradiance `csv:"Wm2Front"`
	Back   Irradiance `csv:"Wm2Back"`
}

// Recorder groups the cleaned results of a run by period ("year" or
// "month") and keeps a whole-run total.
type Recorder struct {
	Period string
	Bifi   float64
	total  *Accumulator
	byKey  map[string]*Accumulator
}

func NewRecorder(period string, bifi float64) *Recorder {
	return &Recorder{
		Period: period,
		Bifi:   bifi,
		total:  NewAccumulator(),
		byKey:  make(map[string]*Accumulator),
	}
}

func (r *Recorder) periodKey(ts time.Time) string {
	if r.Period == "month" {
		return ts.Format("2006-01")
	}
	return ts.Format("2006")
}

// Record adds one timestamp's cleaned table.
func (r *Recorder) Record(ts time.Time, t ResultTable) error {
	front, back := t.FrontValues(), t.BackValues()
	if err := r.total.Add(front, back); err != nil {
		return err
	}
	key := r.periodKey(ts)
	acc, ok := r.byKey[key]
	if !ok {
		acc = NewAccumulator()
		r.byKey[key] = acc
	}
	return acc.Add(front, back)
}

func (r *Recorder) Total() *Accumulator { return r.total }

// Periods lists the period keys in chronological order.
func (r *Recorder) Periods() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary has one row per period followed by the "total" row.
func (r *Recorder) Summary() []PeriodSummary {
	row := func(name string, a *Accumulator) PeriodSummary {
		front, back := a.Totals()
		return PeriodSummary{
			Period: name,
			Steps:  a.Steps,
			Front:  Irradiance(nanMean(front)),
			Back:   Irradiance(nanMean(back)),
			Gain:   Irradiance(a.Gain(r.Bifi)),
		}
	}
	var out []PeriodSummary
	for _, k := range r.Periods() {
		out = append(out, row(k, r.byKey[k]))
	}
	return append(out, row("total", r.total))
}

// SensorTotals lists the whole-run total of every sensor; a face with
// fewer sensors is padded with NaN.
func (r *Recorder) SensorTotals() []SensorTotal {
	front, back := r.total.Totals()
	n := len(front)
	if len(back) > n {
		n = len(back)
	}
	at := func(v []float64, i int) Irradiance {
		if i < len(v) {
			return Irradiance(v[i])
		}
		return Irradiance(math.NaN())
	}
	out := make([]SensorTotal, n)
	for i := range out {
		out[i] = SensorTotal{Sensor: i + 1, Front: at(front, i), Back: at(back, i)}
	}
	return out
}

// TotalIrradiance returns the NaN-aware sum over all sensors of each face.
func (r *Recorder) TotalIrradiance() (front, back float64) {
	f, b := r.total.Totals()
	return floats.Sum(dropNaN(f)), floats.Sum(dropNaN(b))
}

// WriteSummary writes summary.csv and sensor_totals.csv under dir.
func (r *Recorder) WriteSummary(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	summary := r.Summary()
	if err := writeCSV(filepath.Join(dir, "summary.csv"), &summary); err != nil {
		return err
	}
	sensors := r.SensorTotals()
	if err := writeCSV(filepath.Join(dir, "sensor_totals.csv"), &sensors); err != nil {
		return err
	}
	return nil
}

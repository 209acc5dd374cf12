package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v1"
)

// FailedRun identifies one timestamp that did not complete.
type FailedRun struct {
	ID   string
	Kind ErrorKind
	Err  error
}

func (f FailedRun) String() string { return fmt.Sprintf("%s %s: %v", f.ID, f.Kind, f.Err) }

// BatchReport is the outcome of a Simulation.Run.
type BatchReport struct {
	Completed   int
	Night       int // timestamps skipped with the sun down
	Invalidated int // sensors cleaned as non-module hits
	Failed      []FailedRun
	Recorder    *Recorder
}

// Simulation drives the per-timestamp pipeline: tilt, scene, sensor grid,
// render, clean and aggregate.
type Simulation struct {
	Config   *Config
	Renderer Renderer
	OutDir   string
	Workers  int
	DryRun   bool
	Progress bool
	module   *Module
	log      *zap.SugaredLogger
}

/*
Prepare a simulation.

Args:
	cfg: validated configuration
	r: renderer used for every timestamp
	outDir: root of the scene and result files
	log: logger

Returns:
	Simulation; the module is assembled here so geometry errors fail before
	any timestamp runs
*/
func NewSimulation(cfg *Config, r Renderer, outDir string, log *zap.SugaredLogger) (*Simulation, error) {
	module, err := NewModule(cfg.Module)
	if err != nil {
		return nil, err
	}
	if missing := unknownMaterials(module.Materials(), cfg.Materials); len(missing) > 0 {
		return nil, configErrorf("module %s uses materials missing from the library: %s", module.Name, strings.Join(missing, ", "))
	}
	log.Infof("module %s: scenex=%.3f m sceney=%.3f m offsetfromaxis=%.3f m",
		module.Name, module.SceneX, module.SceneY, module.OffsetFromAxis)
	workers := cfg.Simulation.Workers
	if workers < 1 {
		workers = 1
	}
	return &Simulation{
		Config:   cfg,
		Renderer: r,
		OutDir:   outDir,
		Workers:  workers,
		module:   module,
		log:      log,
	}, nil
}

// timestampID is the unique key of a timestamp's files.
func timestampID(ts time.Time) string { return ts.Format("20060102_150405") }

type orientation struct {
	Tilt, Azimuth float64
	Defined       bool
	shared        *sceneGeometry // geometry of the tracker angle bin, nil when built per timestamp
}

// sceneGeometry is the layout and sensor grid of one orientation, with its
// files written under one directory.
type sceneGeometry struct {
	scene       *Scene
	front, back SensorScan
	scenePath   string
	err         error
}

func (s *Simulation) buildGeometry(dir string, tilt, azimuth float64) *sceneGeometry {
	g := &sceneGeometry{}
	g.scene, g.err = NewScene(s.module, s.Config.SceneParams(tilt, azimuth), s.log)
	if g.err != nil {
		return g
	}
	if g.front, g.back, g.err = ModuleAnalysis(g.scene, s.Config.AnalysisRequest()); g.err != nil {
		return g
	}
	modulePath, err := s.module.WriteFile(dir)
	if err != nil {
		g.err = err
		return g
	}
	g.scenePath, g.err = g.scene.WriteFile(dir, modulePath)
	return g
}

// orientations resolves the module orientation of every record.
func (s *Simulation) orientations(records []WeatherRecord) ([]orientation, error) {
	out := make([]orientation, len(records))
	if !s.Config.Tracked() {
		for i, rec := range records {
			out[i] = orientation{Tilt: *s.Config.Scene.Tilt, Azimuth: s.Config.Scene.Azimuth, Defined: rec.Sun.Elevation() > 0}
		}
		return out, nil
	}
	_, gcr, err := resolvePitch(s.module.SceneY, s.Config.Scene.Pitch, s.Config.Scene.GCR)
	if err != nil {
		return nil, err
	}
	tc := s.Config.Tracker
	states := SolveTracker(records, s.Config.TrackerParams(gcr))
	if err := s.writeTrackerAngles(states); err != nil {
		return nil, err
	}
	shared := map[float64]*sceneGeometry{}
	if tc.AngleDelta > 0 {
		bins := GroupByAngle(states, tc.AngleDelta, *tc.LimitAngle)
		s.log.Infof("tracker angles discretized by %.1f deg into %d bins", tc.AngleDelta, len(bins))
		for _, b := range bins {
			tilt, az := TrackerSceneOrientation(tc.AxisAzimuth, b.Theta)
			dir := filepath.Join(s.OutDir, binName(s.Config.Simulation.Name, b.Theta))
			shared[b.Theta] = s.buildGeometry(dir, tilt, az)
			s.log.Debugf("angle %s: %d timestamps share one scene", num(b.Theta), len(b.Timestamps))
		}
	}
	for i, st := range states {
		theta := DiscretizeAngle(st.Theta, tc.AngleDelta, *tc.LimitAngle)
		tilt, az := TrackerSceneOrientation(tc.AxisAzimuth, theta)
		out[i] = orientation{tilt, az, st.Defined(), shared[theta]}
	}
	return out, nil
}

// binName is the directory of the scene shared by one tracker angle bin.
func binName(name string, theta float64) string {
	return fmt.Sprintf("%s_angle_%s", name, num(theta))
}

type trackerRow struct {
	Timestamp   string     `csv:"timestamp"`
	Theta       Irradiance `csv:"theta"`
	Ideal       Irradiance `csv:"ideal"`
	Backtracked bool       `csv:"backtracked"`
}

func (s *Simulation) writeTrackerAngles(states []TrackerState) error {
	if err := os.MkdirAll(s.OutDir, 0755); err != nil {
		return err
	}
	rows := make([]trackerRow, len(states))
	for i, st := range states {
		rows[i] = trackerRow{st.Timestamp.Format(time.RFC3339), Irradiance(st.Theta), Irradiance(st.Ideal), st.Backtracked}
	}
	return writeCSV(filepath.Join(s.OutDir, "tracker_angles.csv"), &rows)
}

// detached keeps the values of a context but none of its cancellation. A
// render that has started runs to its own timeout.
type detached struct{ context.Context }

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }

func (detached) Done() <-chan struct{} { return nil }

func (detached) Err() error { return nil }

type timestampResult struct {
	rec         WeatherRecord
	table       ResultTable
	invalidated int
	err         error
}

/*
Run every weather record.

Args:
	ctx: cancellation is checked between timestamps, never mid-render
	records: weather tuples

Returns:
	report of completed, skipped and failed timestamps; a non-nil error only
	for configuration errors that stop the whole batch or for cancellation

Notes:
	Timestamps are independent: each writes under its own directory and
	with Workers > 1 they run concurrently. Results are aggregated on the
	calling goroutine.
*/
func (s *Simulation) Run(ctx context.Context, records []WeatherRecord) (*BatchReport, error) {
	orients, err := s.orientations(records)
	if err != nil {
		return nil, err
	}
	report := &BatchReport{Recorder: NewRecorder(s.Config.Simulation.Period, s.module.Bifi)}

	var jobs []int
	for i, o := range orients {
		if !o.Defined {
			report.Night++
			continue
		}
		jobs = append(jobs, i)
	}
	s.log.Infof("%d timestamps to simulate, %d at night skipped, %d workers", len(jobs), report.Night, s.Workers)

	bar := pb.New(len(jobs))
	bar.Output = os.Stderr
	bar.NotPrint = !s.Progress
	bar.Start()
	defer bar.Finish()

	jobChan := make(chan int)
	results := make(chan timestampResult)
	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				if ctx.Err() != nil {
					continue
				}
				table, n, err := s.runTimestamp(ctx, records[i], orients[i])
				results <- timestampResult{rec: records[i], table: table, invalidated: n, err: err}
			}
		}()
	}
	go func() {
		defer close(jobChan)
		for _, i := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobChan <- i:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		bar.Increment()
		s.collect(report, res)
	}
	if err := ctx.Err(); err != nil {
		s.log.Warnf("batch cancelled after %d timestamps", report.Completed+len(report.Failed))
		return report, err
	}
	if !s.DryRun {
		if err := report.Recorder.WriteSummary(s.OutDir); err != nil {
			return report, err
		}
	}
	for _, f := range report.Failed {
		s.log.Errorf("failed: %s", f)
	}
	front, back := report.Recorder.TotalIrradiance()
	s.log.Infof("batch done: %d completed, %d failed, %d sensors invalidated, front %.0f W/m2 back %.0f W/m2 summed over sensors",
		report.Completed, len(report.Failed), report.Invalidated, front, back)
	return report, nil
}

func (s *Simulation) collect(report *BatchReport, res timestampResult) {
	id := timestampID(res.rec.Timestamp)
	if res.err != nil {
		kind := errorKindOf(res.err)
		report.Failed = append(report.Failed, FailedRun{ID: id, Kind: kind, Err: res.err})
		// unreadable results still count as a timestamp of NaN
		if kind != ResultParseError {
			return
		}
		s.log.Warnf("%s: %v", id, res.err)
	} else {
		report.Completed++
	}
	if s.DryRun {
		return
	}
	report.Invalidated += res.invalidated
	if err := report.Recorder.Record(res.rec.Timestamp, res.table); err != nil {
		report.Failed = append(report.Failed, FailedRun{ID: id, Kind: errorKindOf(err), Err: err})
	}
}

/*
Simulate one timestamp.

Args:
	ctx: batch context; it stops retries but a started render runs to the
	     end
	rec: weather tuple
	o: module orientation

Returns:
	cleaned result table, number of invalidated sensors and the error of
	the first failing stage (stamped with the timestamp id). A
	ResultParseError comes with an all-NaN table.
*/
func (s *Simulation) runTimestamp(ctx context.Context, rec WeatherRecord, o orientation) (ResultTable, int, error) {
	cfg := s.Config
	id := timestampID(rec.Timestamp)
	name := cfg.Simulation.Name + "_" + id
	dir := filepath.Join(s.OutDir, name)
	fail := func(err error) (ResultTable, int, error) { return ResultTable{}, 0, withID(err, id) }

	g := o.shared
	if g == nil {
		g = s.buildGeometry(dir, o.Tilt, o.Azimuth)
	}
	if g.err != nil {
		return fail(g.err)
	}
	scene, frontScan, backScan, scenePath := g.scene, g.front, g.back, g.scenePath
	if s.DryRun {
		s.log.Infof("%s: tilt=%.1f azimuth=%.1f front~%.1f W/m2 back~%.1f W/m2 (isotropic), %d+%d sensors",
			id, o.Tilt, o.Azimuth,
			isotropicPOA(rec, o.Tilt, o.Azimuth), isotropicPOA(rec, 180-o.Tilt, o.Azimuth+180),
			frontScan.Count(), backScan.Count())
		return ResultTable{}, 0, nil
	}
	matPath, err := WriteMaterials(dir, cfg.Materials)
	if err != nil {
		return fail(err)
	}
	skyPath, err := WriteSky(dir, name, rec)
	if err != nil {
		return fail(err)
	}

	octree := filepath.Join(dir, name+".oct")
	retries := cfg.Renderer.Retries
	renderCtx := detached{ctx}
	err = withRetries(ctx, retries, s.log, func() error {
		return s.Renderer.Compile(renderCtx, octree, []string{matPath, skyPath, scenePath})
	})
	if err != nil {
		return fail(err)
	}

	frontPts, backPts := frontScan.Points(), backScan.Points()
	var table ResultTable
	err = withRetries(ctx, retries, s.log, func() error {
		var err error
		if table.Front, err = s.Renderer.Trace(renderCtx, octree, frontPts); err != nil {
			return err
		}
		table.Back, err = s.Renderer.Trace(renderCtx, octree, backPts)
		return err
	})
	if err != nil {
		if errorKindOf(err) == ResultParseError {
			return nanTable(frontPts, backPts), 0, withID(err, id)
		}
		return fail(err)
	}

	if cfg.Analysis.GroundScan {
		if err := s.traceGround(renderCtx, scene, octree, name); err != nil {
			s.log.Warnf("%s: ground scan: %v", id, err)
		}
	}

	cleaned, invalidated := CleanResult(table, cfg.Analysis.Matchers)
	if invalidated > 0 {
		s.log.Debugf("%s: %d sensors hit non-module materials", id, invalidated)
	}
	resultDir := filepath.Join(s.OutDir, "results")
	if _, err := WriteResult(resultDir, name, cleaned); err != nil {
		return fail(err)
	}
	if n := cfg.Analysis.NumCellsY; n > 0 {
		if err := s.writeCells(resultDir, name, cleaned, frontScan.Lines(), backScan.Lines(), n); err != nil {
			return fail(err)
		}
	}
	return cleaned, invalidated, nil
}

func (s *Simulation) traceGround(ctx context.Context, scene *Scene, octree, name string) error {
	a := s.Config.Analysis
	scan, err := GroundAnalysis(scene, a.ModWanted, a.RowWanted, a.SensorsY)
	if err != nil {
		return err
	}
	samples, err := s.Renderer.Trace(ctx, octree, scan.Points())
	if err != nil {
		return err
	}
	_, err = WriteGroundResult(filepath.Join(s.OutDir, "results"), name, samples)
	return err
}

func (s *Simulation) writeCells(dir, name string, t ResultTable, frontLines, backLines, numCells int) error {
	method, err := parseDownsampleMethod(s.Config.Analysis.Downsample)
	if err != nil {
		return err
	}
	front, upF, err := DownsampleToCells(t.FrontValues(), frontLines, numCells, method)
	if err != nil {
		return err
	}
	back, upB, err := DownsampleToCells(t.BackValues(), backLines, numCells, method)
	if err != nil {
		return err
	}
	if upF || upB {
		s.log.Warnf("%s: fewer sensors than %d cells, cells filled from the nearest sensor", name, numCells)
	}
	_, err = WriteCellResult(dir, name, numCells, front, back)
	return err
}

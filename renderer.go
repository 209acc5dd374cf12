package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TraceSample is one sensor result returned by the renderer.
type TraceSample struct {
	Position   Vec3
	Irradiance float64 // W/m2
	Material   string  // surface the sensor ray hit
}

// Renderer compiles scene files and traces sensor rays through them.
type Renderer interface {
	Compile(ctx context.Context, octree string, inputs []string) error
	Trace(ctx context.Context, octree string, points []SensorPoint) ([]TraceSample, error)
}

// RadianceRenderer runs the oconv and rtrace executables.
type RadianceRenderer struct {
	Oconv    string
	Rtrace   string
	Accuracy string
	Timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewRadianceRenderer(cfg RendererConfig, log *zap.SugaredLogger) *RadianceRenderer {
	return &RadianceRenderer{
		Oconv:    cfg.Oconv,
		Rtrace:   cfg.Rtrace,
		Accuracy: cfg.Accuracy,
		Timeout:  cfg.Timeout,
		log:      log,
	}
}

// Compile combines the scene files into an octree.
func (r *RadianceRenderer) Compile(ctx context.Context, octree string, inputs []string) error {
	if len(inputs) == 0 {
		return configErrorf("no scene files to compile")
	}
	out, err := r.run(ctx, r.Oconv, inputs, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(octree, out, 0644); err != nil {
		return rendererError(fmt.Errorf("write octree: %w", err))
	}
	return nil
}

// Trace feeds one ray per sensor to rtrace and parses its output. A failed
// run is never partially parsed.
func (r *RadianceRenderer) Trace(ctx context.Context, octree string, points []SensorPoint) ([]TraceSample, error) {
	var in bytes.Buffer
	for _, p := range points {
		in.WriteString(p.String())
		in.WriteByte('\n')
	}
	out, err := r.run(ctx, r.Rtrace, rtraceArgs(r.Accuracy, octree), &in)
	if err != nil {
		return nil, err
	}
	return parseTraceOutput(out, len(points))
}

func (r *RadianceRenderer) run(ctx context.Context, name string, args []string, stdin *bytes.Buffer) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debugf("exec %s %s", name, strings.Join(args, " "))
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, rendererError(fmt.Errorf("%s timed out after %s", name, r.Timeout))
		}
		return nil, rendererError(fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String())))
	}
	r.log.Debugf("%s finished in %s", name, time.Since(start))
	return stdout.Bytes(), nil
}

/*
rtrace arguments for an irradiance run.

Args:
	accuracy: "low" or "high"
	octree: compiled scene

Returns:
	arguments; output per line is the ray origin, the value and the name of
	the surface hit
*/
func rtraceArgs(accuracy, octree string) []string {
	ab := "2"
	if accuracy == "high" {
		ab = "3"
	}
	return []string{
		"-i", "-h",
		"-ab", ab,
		"-aa", ".1",
		"-ar", "256",
		"-ad", "2048",
		"-as", "256",
		"-oovs",
		octree,
	}
}

/*
Parse rtrace output.

Args:
	out: standard output, one "x y z r g b surface" line per sensor
	want: number of sensors requested

Returns:
	samples with irradiance = mean of the three channels

Notes:
	A line count different from want, or a line without exactly three
	channel values, is a ResultParseError.
*/
func parseTraceOutput(out []byte, want int) ([]TraceSample, error) {
	var samples []TraceSample
	sc := bufio.NewScanner(bytes.NewReader(out))
	line := 0
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		line++
		fields := strings.Fields(text)
		if len(fields) != 7 {
			return nil, parseErrorf("trace line %d: want x y z r g b surface, got %q", line, text)
		}
		var v [6]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, parseErrorf("trace line %d: %v", line, err)
			}
			v[i] = f
		}
		samples = append(samples, TraceSample{
			Position:   Vec3{v[0], v[1], v[2]},
			Irradiance: (v[3] + v[4] + v[5]) / 3,
			Material:   fields[6],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, parseErrorf("read trace output: %v", err)
	}
	if len(samples) != want {
		return nil, parseErrorf("trace returned %d values for %d sensors", len(samples), want)
	}
	return samples, nil
}

// withRetries runs f up to retries+1 times while it fails with a renderer
// invocation error. Other errors and a cancelled ctx stop at once.
func withRetries(ctx context.Context, retries int, log *zap.SugaredLogger, f func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = f(); err == nil {
			return nil
		}
		if errorKindOf(err) != RendererInvocationError || ctx.Err() != nil {
			return err
		}
		if attempt < retries {
			log.Warnf("renderer failed (attempt %d/%d): %v", attempt+1, retries+1, err)
		}
	}
	return err
}

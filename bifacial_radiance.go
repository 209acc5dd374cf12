package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"
)

/*
Run a bifacial irradiance simulation.

Args:
	log: logger
	configPath: YAML configuration
	weatherPath: weather tuple CSV
	outDir: output directory
	workers: overrides simulation.workers when > 0
	dryRun: write the scenes and log an isotropic estimate instead of rendering

Returns:
	batch report
*/
func run(
	ctx context.Context,
	log *zap.SugaredLogger,
	configPath string,
	weatherPath string,
	outDir string,
	workers int,
	dryRun bool,
) (*BatchReport, error) {
	log.Infof("Load configuration from `%s`", configPath)
	cfg, err := LoadConfig(configPath, log)
	if err != nil {
		return nil, err
	}
	if workers > 0 {
		cfg.Simulation.Workers = workers
	}

	log.Infof("Load weather data from `%s`", weatherPath)
	records, err := ReadWeather(weatherPath, cfg.Site)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	sim, err := NewSimulation(cfg, NewRadianceRenderer(cfg.Renderer, log), outDir, log)
	if err != nil {
		return nil, err
	}
	sim.DryRun = dryRun
	sim.Progress = true
	return sim.Run(ctx, records)
}

func main() {
	parser := argparse.NewParser("bifacial_radiance", "Ray-traced irradiance on the front and back of a PV array")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: true,
		Help:     "YAML configuration file"})

	weatherPath := parser.String("w", "weather", &argparse.Options{
		Required: true,
		Help:     "weather CSV (timestamp, dni, dhi[, ghi, albedo, zenith, azimuth])"})

	outDir := parser.String("o", "out", &argparse.Options{
		Default: ".",
		Help:    "output directory"})

	logLevel := parser.Selector("", "log", []string{"debug", "info", "warn", "error"}, &argparse.Options{
		Default: "info",
		Help:    "log level"})

	workers := parser.Int("", "workers", &argparse.Options{
		Default: 0,
		Help:    "parallel timestamps, 0 = from the configuration"})

	dryRun := parser.Flag("", "dry-run", &argparse.Options{
		Help: "write scene files without invoking the renderer"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	log, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	report, err := run(ctx, log, *configPath, *weatherPath, *outDir, *workers, *dryRun)
	if err != nil {
		log.Errorf("%v", err)
		if report == nil {
			os.Exit(1)
		}
	}
	log.Infof("elapsed_time: %v", time.Since(start))
	if report != nil && len(report.Failed) > 0 {
		os.Exit(1)
	}
}

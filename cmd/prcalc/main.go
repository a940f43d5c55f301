// Command prcalc projects progress towards a personal-record goal from the command line.
//
// It prints the projection and the chart geometry as JSON and optionally renders the chart to a PNG or
// SVG file:
//
//	prcalc --metric "Bench press" --current 100 --target 120 --history history.json --chart bench.png
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/myrjola/liftlog/internal/chartrender"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/logging"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/spf13/pflag"
)

type options struct {
	historyPath  string
	metric       string
	current      float64
	target       float64
	unit         string
	level        string
	weight       float64
	weightSet    bool
	today        string
	tunablesPath string
	width        float64
	height       float64
	chartPath    string
}

type output struct {
	Metric     string                      `json:"metric"`
	Current    float64                     `json:"current"`
	Target     float64                     `json:"target"`
	Unit       string                      `json:"unit"`
	Level      projection.ExperienceLevel  `json:"level"`
	Projection projection.ProjectionResult `json:"projection"`
	Geometry   projection.Geometry         `json:"geometry"`
}

var errUsage = errors.NewSentinel("usage")

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("prcalc", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.historyPath, "history", "", "JSON file with an array of {metric, date, value} samples")
	fs.StringVar(&opts.metric, "metric", "", "metric the goal tracks (required)")
	fs.Float64Var(&opts.current, "current", 0, "current best value")
	fs.Float64Var(&opts.target, "target", 0, "target value (required)")
	fs.StringVar(&opts.unit, "unit", "kg", "unit of the values")
	fs.StringVar(&opts.level, "level", string(projection.LevelIntermediate), "beginner, intermediate or advanced")
	fs.Float64Var(&opts.weight, "weight", 0, "body weight in kilograms")
	fs.StringVar(&opts.today, "today", "", "date to project from as 2006-01-02 (default today)")
	fs.StringVar(&opts.tunablesPath, "tunables", "", "YAML file overriding the projection tunables")
	fs.Float64Var(&opts.width, "width", 320, "chart geometry width") //nolint:mnd // default chart size
	fs.Float64Var(&opts.height, "height", 200, "chart geometry height") //nolint:mnd // default chart size
	fs.StringVar(&opts.chartPath, "chart", "", "write the chart to this .png or .svg file")

	if err := fs.Parse(args); err != nil {
		return options{}, errors.Join(errUsage, err)
	}
	opts.weightSet = fs.Changed("weight")
	if opts.metric == "" {
		return options{}, errors.Wrap(errUsage, "--metric is required")
	}
	if !fs.Changed("target") {
		return options{}, errors.Wrap(errUsage, "--target is required")
	}
	return opts, nil
}

func loadHistory(path string) (_ []projection.RawSample, err error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	var samples []projection.RawSample
	if err = json.NewDecoder(f).Decode(&samples); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	return samples, nil
}

func run(ctx context.Context, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	tunables, err := projection.LoadTunablesFile(opts.tunablesPath)
	if err != nil {
		return errors.Wrap(err, "load tunables", slog.String("path", opts.tunablesPath))
	}
	var now func() time.Time
	if opts.today != "" {
		today, parseErr := time.Parse(time.DateOnly, opts.today)
		if parseErr != nil {
			return errors.Join(errUsage, errors.Wrap(parseErr, "parse --today"))
		}
		now = func() time.Time { return today }
	}
	history, err := loadHistory(opts.historyPath)
	if err != nil {
		return errors.Wrap(err, "load history", slog.String("path", opts.historyPath))
	}

	engine := projection.NewEngine(tunables, now)
	level := projection.ParseExperienceLevel(opts.level)
	if !strings.EqualFold(strings.TrimSpace(opts.level), string(level)) {
		logger.LogAttrs(ctx, slog.LevelWarn, "unknown experience level, using intermediate",
			slog.String("level", opts.level))
	}
	var weight *float64
	if opts.weightSet {
		weight = &opts.weight
	}

	goal := projection.MetricGoal{
		Metric:  opts.metric,
		Current: opts.current,
		Target:  opts.target,
		Unit:    opts.unit,
		History: history,
	}
	result := engine.Project(goal, level, weight)
	timeline := projection.Timeline(result.DisplaySeries, result.ProjectedSeries)
	logger.LogAttrs(ctx, slog.LevelDebug, "projected goal",
		slog.String("metric", opts.metric), slog.String("path", string(result.Path)),
		slog.Int("samples", len(history)))

	if opts.chartPath != "" {
		if err = writeChart(opts, engine, result); err != nil {
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "wrote chart", slog.String("path", opts.chartPath))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(output{
		Metric:     opts.metric,
		Current:    opts.current,
		Target:     opts.target,
		Unit:       opts.unit,
		Level:      level,
		Projection: result,
		Geometry:   engine.MapToChartGeometry(timeline, opts.target, opts.width, opts.height, nil),
	}); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}

func writeChart(opts options, engine *projection.Engine, result projection.ProjectionResult) (err error) {
	format, err := chartrender.FormatFromPath(opts.chartPath)
	if err != nil {
		return errors.Join(errUsage, err)
	}
	f, err := os.Create(opts.chartPath)
	if err != nil {
		return errors.Wrap(err, "create chart file")
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	err = chartrender.Render(f, engine, result, opts.target, chartrender.Options{
		Title:  opts.metric,
		Unit:   opts.unit,
		Width:  0,
		Height: 0,
		Format: format,
	})
	if err != nil {
		return errors.Wrap(err, "render chart")
	}
	return nil
}

func main() {
	ctx := context.Background()
	level := os.Getenv("PRCALC_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger, _ := logging.NewLogger(os.Stderr, logging.Options{File: "", Level: level})

	err := run(ctx, logger, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, errUsage):
		logger.LogAttrs(ctx, slog.LevelError, "invalid arguments", errors.SlogError(err))
		os.Exit(2) //nolint:mnd // usage exit code
	default:
		logger.LogAttrs(ctx, slog.LevelError, "prcalc failed", errors.SlogError(err))
		os.Exit(1)
	}
}

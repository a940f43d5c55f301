// Package chartrender draws a goal projection as a PNG or SVG image.
package chartrender

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"

	defaultWidth  = 800
	defaultHeight = 400
)

var ErrUnsupportedFormat = errors.NewSentinel("unsupported chart format")

// FormatFromPath picks the format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); Format(ext) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", errors.Wrap(ErrUnsupportedFormat, "unknown extension", slog.String("extension", ext))
	}
}

// Options controls the image.
type Options struct {
	Title  string
	Unit   string
	Width  int
	Height int
	Format Format
}

//nolint:gochecknoglobals // palette
var (
	displayColor   = drawing.ColorFromHex("2563eb")
	projectedColor = drawing.ColorFromHex("93c5fd")
	targetColor    = drawing.ColorFromHex("dc2626")
)

// Render writes the display series, the projected series and a dashed target line to w. The value axis
// matches the on-page chart, running from zero to [projection.Engine.YAxisMax].
func Render(w io.Writer, engine *projection.Engine, result projection.ProjectionResult, target float64, opts Options) error {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	var provider chart.RendererProvider
	switch opts.Format {
	case FormatPNG, "":
		provider = chart.PNG
	case FormatSVG:
		provider = chart.SVG
	default:
		return errors.Wrap(ErrUnsupportedFormat, "render", slog.String("format", string(opts.Format)))
	}

	timeline := projection.Timeline(result.DisplaySeries, result.ProjectedSeries)
	if len(timeline) == 0 {
		return errors.New("nothing to draw")
	}
	first, last := timeline[0].Date, timeline[len(timeline)-1].Date

	series := []chart.Series{
		timeSeries("Progress", result.DisplaySeries, chart.Style{
			StrokeColor: displayColor,
			StrokeWidth: 2.5,
			DotColor:    displayColor,
			DotWidth:    4,
		}),
	}
	if len(result.ProjectedSeries) > 1 {
		series = append(series, timeSeries("Projection", result.ProjectedSeries, chart.Style{
			StrokeColor:     projectedColor,
			StrokeWidth:     2,
			StrokeDashArray: []float64{4.0, 4.0}, //nolint:mnd // px
			DotColor:        projectedColor,
			DotWidth:        3,
		}))
	}
	if !math.IsNaN(target) && !math.IsInf(target, 0) {
		series = append(series, chart.TimeSeries{
			Name:    "Target",
			XValues: []time.Time{first, last},
			YValues: []float64{target, target},
			Style: chart.Style{
				StrokeColor:     targetColor,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{6.0, 4.0}, //nolint:mnd // px
			},
		})
	}

	xFormat := "Jan 2"
	if last.Sub(first) > 18*30*24*time.Hour { //nolint:mnd // about 18 months
		xFormat = "Jan 2006"
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10}, //nolint:mnd // px
		},
		XAxis: chart.XAxis{
			Range: xRange(first, last),
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return chart.TimeFromFloat64(f).Format(xFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  opts.Unit,
			Range: &chart.ContinuousRange{Min: 0, Max: engine.YAxisMax(timeline, target)},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(provider, w); err != nil {
		return errors.Wrap(err, "render chart", slog.String("format", string(opts.Format)))
	}
	return nil
}

func timeSeries(name string, points []projection.SeriesPoint, style chart.Style) chart.TimeSeries {
	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date
		ys[i] = p.Value
	}
	return chart.TimeSeries{Name: name, XValues: xs, YValues: ys, Style: style}
}

// xRange widens a zero-length time span by a day on both sides since go-chart rejects empty ranges.
func xRange(first, last time.Time) *chart.ContinuousRange {
	if !last.After(first) {
		first, last = first.AddDate(0, 0, -1), first.AddDate(0, 0, 1)
	}
	return &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)}
}

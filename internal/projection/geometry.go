package projection

import (
	"math"
	"strconv"
)

// YAxisMax returns the top of the value axis for series and target: the largest finite value times the
// headroom tunable, or 1 when that is not positive.
func (e *Engine) YAxisMax(series []SeriesPoint, target float64) float64 {
	highest := finiteOr(target, 0)
	for _, p := range series {
		if isFinite(p.Value) && p.Value > highest {
			highest = p.Value
		}
	}
	m := highest * e.tunables.Headroom
	if !(m > 0) || !isFinite(m) {
		return 1
	}
	return m
}

// MapToChartGeometry lays series out in a width × height area with the origin at the top left. Point i
// sits at x = i × width/(n-1) and y = height - value × height/maxValue. selected is the index of the point
// the caller highlights, or nil.
func (e *Engine) MapToChartGeometry(series []SeriesPoint, target, width, height float64, selected *int) Geometry {
	width = math.Max(finiteOr(width, 0), 0)
	height = math.Max(finiteOr(height, 0), 0)
	maxValue := e.YAxisMax(series, target)
	yScale := height / maxValue

	n := len(series)
	var barWidth float64
	if n > 1 {
		barWidth = width / float64(n-1)
	}

	g := Geometry{
		Width:    width,
		Height:   height,
		MaxValue: maxValue,
		YScale:   yScale,
		BarWidth: barWidth,
		Points:   make([]ChartPoint, n),
		Segments: make([]Segment, 0, max(n-1, 0)),
		Axis: AxisLabels{
			Y: e.yAxisLabels(maxValue, height, yScale),
			X: make([]string, n),
		},
	}

	for i, p := range series {
		value := finiteOr(p.Value, 0)
		x := float64(i) * barWidth
		y := height - value*yScale
		g.Points[i] = ChartPoint{
			X:           x,
			Y:           y,
			Value:       value,
			Label:       p.Label,
			IsSynthetic: p.IsSynthetic,
			Selected:    selected != nil && *selected == i,
			TapTarget:   centredRect(x, y, e.tunables.TapTargetSize),
			Marker:      centredRect(x, y, e.tunables.MarkerSize),
		}
		g.Axis.X[i] = p.Label
	}

	for i := 1; i < n; i++ {
		a, b := g.Points[i-1], g.Points[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		g.Segments = append(g.Segments, Segment{
			X1:           a.X,
			Y1:           a.Y,
			X2:           b.X,
			Y2:           b.Y,
			Length:       math.Hypot(dx, dy),
			AngleDegrees: math.Atan2(dy, dx) * 180 / math.Pi, //nolint:mnd // radians to degrees
		})
	}
	return g
}

func (e *Engine) yAxisLabels(maxValue, height, yScale float64) []AxisLabel {
	values := []float64{0, maxValue / 2, maxValue} //nolint:mnd // midpoint
	out := make([]AxisLabel, len(values))
	for i, v := range values {
		out[i] = AxisLabel{
			Value: v,
			Text:  formatTick(v),
			Y:     height - v*yScale,
		}
	}
	return out
}

// formatTick rounds to a whole number, keeping one decimal for small scales.
func formatTick(v float64) string {
	if v < 10 { //nolint:mnd // small scale
		return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64) //nolint:mnd // one decimal
	}
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func centredRect(x, y, size float64) Rect {
	return Rect{
		X:      x - size/2, //nolint:mnd // half
		Y:      y - size/2, //nolint:mnd // half
		Width:  size,
		Height: size,
	}
}

// Package projection estimates how long it takes to reach a personal-record goal and turns the
// history and the forecast into chart-ready series and geometry.
//
// Everything in this package is a pure function of its inputs. The current date comes from the clock
// given to [NewEngine] so that repeated calls with the same inputs produce identical output.
package projection

import (
	"strings"
	"time"
)

// ExperienceLevel biases the assumed rate of improvement.
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
)

// ParseExperienceLevel maps s to a known level. Unknown and empty values fall back to intermediate.
func ParseExperienceLevel(s string) ExperienceLevel {
	switch ExperienceLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner
	case LevelAdvanced:
		return LevelAdvanced
	case LevelIntermediate:
		return LevelIntermediate
	default:
		return LevelIntermediate
	}
}

// Levels lists the experience levels in ascending order.
func Levels() []ExperienceLevel {
	return []ExperienceLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}
}

// RawSample is a history sample as it comes out of storage, before normalization.
type RawSample struct {
	Metric string  `json:"metric"`
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
}

// HistorySample is one dated observation of a metric.
type HistorySample struct {
	Date  time.Time
	Value float64
}

// MetricGoal is the snapshot the engine works on. History may contain samples of other metrics; they are
// filtered out before use.
type MetricGoal struct {
	Metric  string
	Current float64
	Target  float64
	Unit    string
	History []RawSample
}

// EstimatePath tells which branch of the estimator produced the result.
type EstimatePath string

const (
	PathReached EstimatePath = "reached"
	PathSparse  EstimatePath = "sparse"
	PathRich    EstimatePath = "rich"
	PathUnknown EstimatePath = "unknown"
)

// Estimate is the outcome of [Engine.EstimateGoal].
type Estimate struct {
	ProgressPercent float64
	TimeToGoal      string
	// ImprovementRatePerMonth is the percentage of the current value gained per month, nil when unknown.
	ImprovementRatePerMonth *float64
	ExperienceNote          string
	Path                    EstimatePath
}

// SeriesPoint is one point of a display or projected series.
type SeriesPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Label       string    `json:"label"`
	IsSynthetic bool      `json:"is_synthetic"`
}

// Series holds what happened and what might happen.
type Series struct {
	Display   []SeriesPoint `json:"display"`
	Projected []SeriesPoint `json:"projected"`
}

// ProjectionResult combines the estimate and both series.
type ProjectionResult struct {
	ProgressPercent         float64       `json:"progress_percent"`
	TimeToGoal              string        `json:"time_to_goal"`
	ImprovementRatePerMonth *float64      `json:"improvement_rate_per_month"`
	ExperienceNote          string        `json:"experience_note"`
	Path                    EstimatePath  `json:"path"`
	DisplaySeries           []SeriesPoint `json:"display_series"`
	ProjectedSeries         []SeriesPoint `json:"projected_series"`
}

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ChartPoint is a series point mapped into pixel space.
type ChartPoint struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Value       float64 `json:"value"`
	Label       string  `json:"label"`
	IsSynthetic bool    `json:"is_synthetic"`
	Selected    bool    `json:"selected"`
	TapTarget   Rect    `json:"tap_target"`
	Marker      Rect    `json:"marker"`
}

// Segment connects two consecutive chart points. Length and AngleDegrees serve renderers that draw
// segments as rotated rectangles.
type Segment struct {
	X1           float64 `json:"x1"`
	Y1           float64 `json:"y1"`
	X2           float64 `json:"x2"`
	Y2           float64 `json:"y2"`
	Length       float64 `json:"length"`
	AngleDegrees float64 `json:"angle_degrees"`
}

// AxisLabel is a Y-axis tick.
type AxisLabel struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	Y     float64 `json:"y"`
}

// AxisLabels holds the ticks of both axes.
type AxisLabels struct {
	Y []AxisLabel `json:"y"`
	X []string    `json:"x"`
}

// Geometry is a series laid out in a width × height chart area.
type Geometry struct {
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
	MaxValue float64      `json:"max_value"`
	YScale   float64      `json:"y_scale"`
	BarWidth float64      `json:"bar_width"`
	Points   []ChartPoint `json:"points"`
	Segments []Segment    `json:"segments"`
	Axis     AxisLabels   `json:"axis"`
}

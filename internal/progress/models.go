// Package progress stores goals, personal records and the profile, and serves projections of them.
package progress

import (
	"time"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/projection"
)

var (
	// ErrNotFound is returned when a requested goal or record does not exist.
	ErrNotFound       = errors.NewSentinel("not found")
	ErrInvalidGoal    = errors.NewSentinel("invalid goal")
	ErrInvalidRecord  = errors.NewSentinel("invalid record")
	ErrInvalidProfile = errors.NewSentinel("invalid profile")
)

const (
	maxMetricLength = 100
	maxUnitLength   = 20
	maxNotesLength  = 10000
	defaultUnit     = "kg"
)

// Goal is the personal record a user works towards for one metric.
type Goal struct {
	Metric  string
	Current float64
	Target  float64
	Unit    string
	// Notes is markdown.
	Notes     string
	UpdatedAt time.Time
}

// Record is one logged performance.
type Record struct {
	ID         int
	Metric     string
	RecordedOn time.Time
	Value      float64
	Unit       string
}

// Profile holds the hints the estimator uses.
type Profile struct {
	Level        projection.ExperienceLevel
	BodyWeightKg *float64
}

// GoalProjection pairs a goal with its projection.
type GoalProjection struct {
	Goal       Goal
	Projection projection.ProjectionResult
}

// Chart is a goal's projection laid out for drawing.
type Chart struct {
	Goal       Goal
	Projection projection.ProjectionResult
	// Timeline is the display series followed by the projected series.
	Timeline []projection.SeriesPoint
	Geometry projection.Geometry
	// TargetY is the vertical position of the target line.
	TargetY float64
}

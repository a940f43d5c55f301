package projection

import "time"

// Engine runs the projection pipeline with a fixed set of tunables and a clock.
type Engine struct {
	tunables Tunables
	now      func() time.Time
}

// NewEngine creates an engine. A nil now uses [time.Now].
func NewEngine(tunables Tunables, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tunables: tunables,
		now:      now,
	}
}

// Tunables returns the engine's tunables.
func (e *Engine) Tunables() Tunables {
	return e.tunables
}

// Today returns midnight of the current day in the clock's location.
func (e *Engine) Today() time.Time {
	return e.today()
}

func (e *Engine) today() time.Time {
	t := e.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Project estimates the goal and builds both series from the same estimate.
func (e *Engine) Project(goal MetricGoal, level ExperienceLevel, weightHint *float64) ProjectionResult {
	est := e.EstimateGoal(goal, level, weightHint)
	series := e.BuildSeries(goal, est.TimeToGoal)
	return ProjectionResult{
		ProgressPercent:         est.ProgressPercent,
		TimeToGoal:              est.TimeToGoal,
		ImprovementRatePerMonth: est.ImprovementRatePerMonth,
		ExperienceNote:          est.ExperienceNote,
		Path:                    est.Path,
		DisplaySeries:           series.Display,
		ProjectedSeries:         series.Projected,
	}
}

// Timeline joins the display series and the projected series into one chronological line. The projected
// "Now" point is dropped when the display series already ends today.
func Timeline(display, projected []SeriesPoint) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(display)+len(projected))
	out = append(out, display...)
	if len(display) > 0 && len(projected) > 0 && display[len(display)-1].Date.Equal(projected[0].Date) {
		projected = projected[1:]
	}
	return append(out, projected...)
}

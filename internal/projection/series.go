package projection

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

const (
	LabelNow  = "Now"
	LabelGoal = "Goal"

	dayLabelLayout  = "Jan 2"
	yearLabelLayout = "Jan 2006"

	// maxHorizonDays caps how far into the future the projected goal point is dated. Longer time-to-goal
	// labels are kept as the estimator rendered them; only the series is clamped, so a goal estimated at
	// "~500 years" is drawn 100 years out.
	maxHorizonDays = 100 * daysPerYear
)

//nolint:gochecknoglobals // compiled once.
var timeToGoalPattern = regexp.MustCompile(`^~(\d+) (day|week|month|year)s?$`)

// horizon is a parsed time-to-goal label.
type horizon struct {
	totalDays int
	stepDays  int
	layout    string
}

// parseTimeToGoal turns a label produced by [Engine.EstimateGoal] back into a horizon. Labels that do not
// describe a future duration, such as [LabelReached] and [LabelUnknown], report false.
func parseTimeToGoal(label string) (horizon, bool) {
	m := timeToGoalPattern.FindStringSubmatch(label)
	if m == nil {
		return horizon{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return horizon{}, false
	}
	var h horizon
	switch m[2] {
	case "day":
		h = horizon{totalDays: n, stepDays: daysPerWeek, layout: dayLabelLayout}
	case "week":
		h = horizon{totalDays: n * daysPerWeek, stepDays: 2 * daysPerWeek, layout: dayLabelLayout} //nolint:mnd // bi-weekly
	case "month":
		h = horizon{totalDays: n * daysPerMonth, stepDays: daysPerMonth, layout: dayLabelLayout}
	default:
		h = horizon{totalDays: n * daysPerYear, stepDays: 91, layout: yearLabelLayout} //nolint:mnd // quarterly
	}
	if h.totalDays > maxHorizonDays || h.totalDays < 0 {
		h.totalDays = maxHorizonDays
	}
	return h, true
}

// BuildSeries produces the display series of what happened and the projected series from today to the
// goal. timeToGoal is the label computed by [Engine.EstimateGoal] for the same goal. The goal point is
// dated at most 100 years from today whatever the label says.
func (e *Engine) BuildSeries(goal MetricGoal, timeToGoal string) Series {
	today := e.today()
	history := NormalizeHistory(goal.History, goal.Metric)
	return Series{
		Display:   e.displaySeries(history, goal.Current, today),
		Projected: e.projectedSeries(goal.Current, goal.Target, timeToGoal, today),
	}
}

// displaySeries returns the most recent real samples, or placeholder points trending up to the current
// value when there are fewer than two of them.
func (e *Engine) displaySeries(history []HistorySample, current float64, today time.Time) []SeriesPoint {
	if len(history) >= 2 { //nolint:mnd // a trend needs two samples
		recent := history[max(0, len(history)-e.tunables.DisplayLength):]
		out := make([]SeriesPoint, len(recent))
		for i, s := range recent {
			out[i] = SeriesPoint{
				Date:        s.Date,
				Value:       s.Value,
				Label:       s.Date.Format(dayLabelLayout),
				IsSynthetic: false,
			}
		}
		return out
	}

	current = finiteOr(current, 0)
	n := e.tunables.DisplayLength
	out := make([]SeriesPoint, n)
	for k := range n {
		stepsBack := n - 1 - k
		value := current
		if current > 0 {
			value = math.Max(
				current*(1-float64(stepsBack)*e.tunables.SyntheticStep),
				current*e.tunables.SyntheticFloor,
			)
		}
		date := today.AddDate(0, 0, -stepsBack*e.tunables.SyntheticSpacingDays)
		out[k] = SeriesPoint{
			Date:        date,
			Value:       value,
			Label:       date.Format(dayLabelLayout),
			IsSynthetic: stepsBack > 0,
		}
	}
	return out
}

// projectedSeries interpolates linearly from the current value today to the target on the estimated goal
// date. A reached or unknown goal yields only the current point.
func (e *Engine) projectedSeries(current, target float64, timeToGoal string, today time.Time) []SeriesPoint {
	current = finiteOr(current, 0)
	now := SeriesPoint{Date: today, Value: current, Label: LabelNow, IsSynthetic: false}
	h, ok := parseTimeToGoal(timeToGoal)
	if !ok || !isFinite(target) {
		return []SeriesPoint{now}
	}

	step := h.stepDays
	if intermediate := (h.totalDays - 1) / step; intermediate > e.tunables.MaxProjectedPoints {
		step = int(math.Ceil(float64(h.totalDays) / float64(e.tunables.MaxProjectedPoints+1)))
	}

	out := []SeriesPoint{now}
	for day := step; day < h.totalDays; day += step {
		if len(out) > e.tunables.MaxProjectedPoints {
			break
		}
		date := today.AddDate(0, 0, day)
		frac := float64(day) / float64(h.totalDays)
		out = append(out, SeriesPoint{
			Date:        date,
			Value:       current + (target-current)*frac,
			Label:       date.Format(h.layout),
			IsSynthetic: true,
		})
	}
	out = append(out, SeriesPoint{
		Date:        today.AddDate(0, 0, h.totalDays),
		Value:       target,
		Label:       LabelGoal,
		IsSynthetic: true,
	})
	return out
}

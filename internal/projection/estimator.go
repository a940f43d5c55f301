package projection

import (
	"fmt"
	"math"
)

const (
	LabelReached = "Goal reached!"
	LabelUnknown = "Unknown"

	daysPerWeek   = 7
	daysPerMonth  = 30
	daysPerYear   = 365
	monthsPerYear = 12
)

// EstimateGoal computes progress towards the target and a human-readable time-to-goal label.
//
// With fewer than two valid samples of the goal's metric an assumed monthly improvement rate for the
// experience level is used, scaled by the body-weight hint when one is given. With more history the rate
// observed between the oldest and the newest sample is used instead, unless it shows no improvement.
// Malformed numbers produce a zero progress "Unknown" estimate.
func (e *Engine) EstimateGoal(goal MetricGoal, level ExperienceLevel, weightHint *float64) Estimate {
	level = ParseExperienceLevel(string(level))
	est := Estimate{
		ProgressPercent:         0,
		TimeToGoal:              LabelUnknown,
		ImprovementRatePerMonth: nil,
		ExperienceNote:          ExperienceNote(level),
		Path:                    PathUnknown,
	}
	if !isFinite(goal.Current) || !isFinite(goal.Target) {
		return est
	}

	est.ProgressPercent = progressPercent(goal.Current, goal.Target)
	history := NormalizeHistory(goal.History, goal.Metric)
	daily, observed := e.observedDailyRate(history, level)

	if goal.Current >= goal.Target {
		est.TimeToGoal = LabelReached
		est.Path = PathReached
		if observed {
			est.ImprovementRatePerMonth = monthlyPercent(daily, goal.Current)
		}
		return est
	}

	if observed {
		days := math.Ceil((goal.Target - goal.Current) / daily)
		if days > 0 && isFinite(days) {
			est.TimeToGoal = formatDays(days)
			est.Path = PathRich
			est.ImprovementRatePerMonth = monthlyPercent(daily, goal.Current)
			return est
		}
	}

	rate := e.tunables.MonthlyRate.For(level) * e.weightMultiplier(weightHint)
	monthlyGain := goal.Current * rate
	if !(monthlyGain > 0) || !isFinite(monthlyGain) {
		return est
	}
	months := math.Ceil((goal.Target - goal.Current) / monthlyGain)
	if !isFinite(months) {
		return est
	}
	est.TimeToGoal = formatMonths(months)
	est.Path = PathSparse
	percent := rate * 100 //nolint:mnd // percent
	est.ImprovementRatePerMonth = &percent
	return est
}

// observedDailyRate returns the level-adjusted daily improvement between the oldest and the newest sample.
// It reports false when there are fewer than two samples, no time passed, or the value did not improve.
func (e *Engine) observedDailyRate(history []HistorySample, level ExperienceLevel) (float64, bool) {
	if len(history) < 2 { //nolint:mnd // a rate needs two samples
		return 0, false
	}
	byDate := newestFirst(history)
	newest, oldest := byDate[0], byDate[len(byDate)-1]
	daySpan := newest.Date.Sub(oldest.Date).Hours() / 24 //nolint:mnd // hours per day
	if daySpan <= 0 || newest.Value <= oldest.Value {
		return 0, false
	}
	daily := (newest.Value - oldest.Value) / daySpan * e.tunables.RateFactor.For(level)
	if !(daily > 0) || !isFinite(daily) {
		return 0, false
	}
	return daily, true
}

// weightMultiplier slows the assumed rate down for heavy lifters and speeds it up for light ones.
func (e *Engine) weightMultiplier(weightHint *float64) float64 {
	if weightHint == nil || !isFinite(*weightHint) || *weightHint <= 0 {
		return 1
	}
	switch {
	case *weightHint > e.tunables.HeavyWeightThresholdKg:
		return e.tunables.HeavyWeightMultiplier
	case *weightHint < e.tunables.LightWeightThresholdKg:
		return e.tunables.LightWeightMultiplier
	default:
		return 1
	}
}

// ExperienceNote describes how the experience level biases the estimate.
func ExperienceNote(level ExperienceLevel) string {
	switch ParseExperienceLevel(string(level)) {
	case LevelBeginner:
		return "As a beginner you can expect **accelerated** progress, so the estimate assumes faster gains."
	case LevelAdvanced:
		return "At an advanced level gains come slowly, so the estimate is **conservative**."
	case LevelIntermediate:
		return "At an intermediate level the estimate assumes a **balanced** rate of progress."
	default:
		return ""
	}
}

func progressPercent(current, target float64) float64 {
	if target == 0 {
		return 0
	}
	p := current / target * 100 //nolint:mnd // percent
	if !isFinite(p) || p < 0 {
		return 0
	}
	// Two negative values give a ratio above one while the goal is still ahead.
	if current < target && p > 100 {
		return 0
	}
	return math.Min(p, 100) //nolint:mnd // percent
}

func monthlyPercent(daily, current float64) *float64 {
	if current <= 0 {
		return nil
	}
	p := daily * daysPerMonth / current * 100 //nolint:mnd // percent
	if !isFinite(p) {
		return nil
	}
	return &p
}

func formatDays(days float64) string {
	switch {
	case days <= daysPerWeek:
		return approx(days, "day")
	case days <= daysPerMonth:
		return approx(math.Ceil(days/daysPerWeek), "week")
	case days <= daysPerYear:
		return approx(math.Ceil(days/daysPerMonth), "month")
	default:
		return approx(math.Round(days/daysPerYear), "year")
	}
}

func formatMonths(months float64) string {
	if months <= monthsPerYear {
		return approx(months, "month")
	}
	return approx(math.Round(months/monthsPerYear), "year")
}

func approx(n float64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("~1 %s", unit)
	}
	return fmt.Sprintf("~%.0f %ss", n, unit)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteOr(f, fallback float64) float64 {
	if isFinite(f) {
		return f
	}
	return fallback
}

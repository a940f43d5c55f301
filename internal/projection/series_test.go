package projection_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/myrjola/liftlog/internal/projection"
)

func TestEngine_BuildSeries_SyntheticDisplay(t *testing.T) {
	engine := newEngine(t)
	today := day(2025, time.June, 15)

	got := engine.BuildSeries(projection.MetricGoal{Metric: "Squat", Current: 100, Target: 100}, projection.LabelReached)

	want := []projection.SeriesPoint{
		{Date: today.AddDate(0, 0, -60), Value: 80, Label: "Apr 16", IsSynthetic: true},
		{Date: today.AddDate(0, 0, -45), Value: 85, Label: "May 1", IsSynthetic: true},
		{Date: today.AddDate(0, 0, -30), Value: 90, Label: "May 16", IsSynthetic: true},
		{Date: today.AddDate(0, 0, -15), Value: 95, Label: "May 31", IsSynthetic: true},
		{Date: today, Value: 100, Label: "Jun 15", IsSynthetic: false},
	}
	if diff := cmp.Diff(want, got.Display, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Display mismatch (-want +got):\n%s", diff)
	}
	if len(got.Projected) != 1 || got.Projected[0].Label != projection.LabelNow || got.Projected[0].Value != 100 {
		t.Errorf("Projected = %+v, want single current point", got.Projected)
	}
}

func TestEngine_BuildSeries_SyntheticFloor(t *testing.T) {
	tunables := projection.DefaultTunables()
	tunables.DisplayLength = 8
	engine := projection.NewEngine(tunables, fixedClock)

	got := engine.BuildSeries(projection.MetricGoal{Metric: "Squat", Current: 100, Target: 150}, projection.LabelUnknown)

	if len(got.Display) != 8 {
		t.Fatalf("len(Display) = %d, want 8", len(got.Display))
	}
	for i, p := range got.Display {
		if p.Value < 80-1e-9 {
			t.Errorf("Display[%d].Value = %v, below the floor", i, p.Value)
		}
	}
	if !approxEqual(got.Display[0].Value, 80) {
		t.Errorf("oldest value = %v, want floor 80", got.Display[0].Value)
	}
}

func TestEngine_BuildSeries_NonPositiveCurrentIsFlat(t *testing.T) {
	engine := newEngine(t)
	for _, current := range []float64{0, -20, math.NaN()} {
		got := engine.BuildSeries(projection.MetricGoal{Metric: "Squat", Current: current, Target: 100}, projection.LabelUnknown)
		want := current
		if math.IsNaN(current) {
			want = 0
		}
		for i, p := range got.Display {
			if p.Value != want {
				t.Errorf("current=%v: Display[%d].Value = %v, want %v", current, i, p.Value, want)
			}
		}
		for i, p := range got.Projected {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				t.Errorf("current=%v: Projected[%d].Value = %v", current, i, p.Value)
			}
		}
	}
}

func TestEngine_BuildSeries_RealDisplay(t *testing.T) {
	engine := newEngine(t)
	goal := projection.MetricGoal{
		Metric:  "Squat",
		Current: 130,
		Target:  150,
		History: []projection.RawSample{
			{Metric: "Squat", Date: "2025-01-07", Value: 130},
			{Metric: "Squat", Date: "2025-01-01", Value: 100},
			{Metric: "Squat", Date: "2025-01-02", Value: 105},
			{Metric: "Squat", Date: "2025-01-03", Value: 110},
			{Metric: "Squat", Date: "2025-01-04", Value: 115},
			{Metric: "Squat", Date: "2025-01-05", Value: 120},
			{Metric: "Squat", Date: "2025-01-06", Value: 125},
			{Metric: "Bench", Date: "2025-01-08", Value: 999},
		},
	}

	got := engine.BuildSeries(goal, "~1 month")

	want := []projection.SeriesPoint{
		{Date: day(2025, time.January, 3), Value: 110, Label: "Jan 3", IsSynthetic: false},
		{Date: day(2025, time.January, 4), Value: 115, Label: "Jan 4", IsSynthetic: false},
		{Date: day(2025, time.January, 5), Value: 120, Label: "Jan 5", IsSynthetic: false},
		{Date: day(2025, time.January, 6), Value: 125, Label: "Jan 6", IsSynthetic: false},
		{Date: day(2025, time.January, 7), Value: 130, Label: "Jan 7", IsSynthetic: false},
	}
	if diff := cmp.Diff(want, got.Display); diff != "" {
		t.Errorf("Display mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_BuildSeries_Projected(t *testing.T) {
	engine := newEngine(t)
	today := day(2025, time.June, 15)
	goal := projection.MetricGoal{Metric: "Squat", Current: 100, Target: 130}

	got := engine.BuildSeries(goal, "~3 months")

	want := []projection.SeriesPoint{
		{Date: today, Value: 100, Label: projection.LabelNow, IsSynthetic: false},
		{Date: today.AddDate(0, 0, 30), Value: 110, Label: "Jul 15", IsSynthetic: true},
		{Date: today.AddDate(0, 0, 60), Value: 120, Label: "Aug 14", IsSynthetic: true},
		{Date: today.AddDate(0, 0, 90), Value: 130, Label: projection.LabelGoal, IsSynthetic: true},
	}
	if diff := cmp.Diff(want, got.Projected, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Projected mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_BuildSeries_ProjectedShape(t *testing.T) {
	tests := []struct {
		label   string
		wantLen int
	}{
		{"~2 days", 2},
		{"~3 weeks", 3},
		{"~3 years", 14},
		{"~100 years", 26},
		{projection.LabelReached, 1},
		{projection.LabelUnknown, 1},
		{"garbage", 1},
	}

	engine := newEngine(t)
	maxPoints := engine.Tunables().MaxProjectedPoints
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := engine.BuildSeries(projection.MetricGoal{Metric: "Squat", Current: 100, Target: 200}, tt.label)
			if len(got.Projected) != tt.wantLen {
				t.Fatalf("len(Projected) = %d, want %d", len(got.Projected), tt.wantLen)
			}
			if len(got.Projected) > maxPoints+2 {
				t.Errorf("len(Projected) = %d exceeds the cap", len(got.Projected))
			}
			for i := 1; i < len(got.Projected); i++ {
				prev, cur := got.Projected[i-1], got.Projected[i]
				if cur.Value < prev.Value {
					t.Errorf("Projected[%d].Value %v < %v", i, cur.Value, prev.Value)
				}
				if !cur.Date.After(prev.Date) {
					t.Errorf("Projected[%d].Date %v not after %v", i, cur.Date, prev.Date)
				}
			}
			if last := got.Projected[len(got.Projected)-1]; tt.wantLen > 1 && (last.Value != 200 || last.Label != projection.LabelGoal) {
				t.Errorf("last point = %+v, want goal at 200", last)
			}
		})
	}
}

func TestEngine_BuildSeries_GoalDateIsCapped(t *testing.T) {
	engine := newEngine(t)
	today := day(2025, time.June, 15)
	goal := projection.MetricGoal{Metric: "Squat", Current: 0.001, Target: 1e9}

	est := engine.EstimateGoal(goal, projection.LevelAdvanced, nil)
	if est.TimeToGoal != "~4166666666663 years" {
		t.Fatalf("TimeToGoal = %q, want %q", est.TimeToGoal, "~4166666666663 years")
	}
	got := engine.BuildSeries(goal, est.TimeToGoal)

	if want := engine.Tunables().MaxProjectedPoints + 2; len(got.Projected) != want {
		t.Fatalf("len(Projected) = %d, want %d", len(got.Projected), want)
	}
	last := got.Projected[len(got.Projected)-1]
	if want := today.AddDate(0, 0, 100*365); !last.Date.Equal(want) || last.Label != projection.LabelGoal {
		t.Errorf("goal point = %+v, want %q dated %v", last, projection.LabelGoal, want)
	}
	if last.Value != 1e9 {
		t.Errorf("goal value = %v, want 1e9", last.Value)
	}
}

func TestEngine_BuildSeries_IsIdempotent(t *testing.T) {
	engine := newEngine(t)
	goal := projection.MetricGoal{
		Metric:  "Bench",
		Current: 135,
		Target:  225,
		History: []projection.RawSample{
			{Metric: "Bench", Date: "2024-03-01", Value: 135},
			{Metric: "Bench", Date: "2024-01-01", Value: 130},
		},
	}

	first := engine.Project(goal, projection.LevelIntermediate, nil)
	second := engine.Project(goal, projection.LevelIntermediate, nil)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Project() not deterministic (-first +second):\n%s", diff)
	}
	if first.TimeToGoal != "~3 years" {
		t.Errorf("TimeToGoal = %q, want ~3 years", first.TimeToGoal)
	}
}

func TestEngine_BuildSeries_EqualCurrentAndTargetIsConstant(t *testing.T) {
	engine := newEngine(t)
	got := engine.BuildSeries(projection.MetricGoal{Metric: "Squat", Current: 100, Target: 100}, "~2 months")
	for i, p := range got.Projected {
		if p.Value != 100 {
			t.Errorf("Projected[%d].Value = %v, want 100", i, p.Value)
		}
	}
}

func TestTimeline(t *testing.T) {
	today := day(2025, time.June, 15)
	display := []projection.SeriesPoint{
		{Date: today.AddDate(0, 0, -15), Value: 95, Label: "May 31", IsSynthetic: true},
		{Date: today, Value: 100, Label: "Jun 15", IsSynthetic: false},
	}
	projected := []projection.SeriesPoint{
		{Date: today, Value: 100, Label: projection.LabelNow, IsSynthetic: false},
		{Date: today.AddDate(0, 0, 30), Value: 110, Label: projection.LabelGoal, IsSynthetic: true},
	}

	got := projection.Timeline(display, projected)

	want := []projection.SeriesPoint{display[0], display[1], projected[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Timeline() mismatch (-want +got):\n%s", diff)
	}
}

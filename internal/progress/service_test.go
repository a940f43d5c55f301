package progress_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/myrjola/liftlog/internal/progress"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/myrjola/liftlog/internal/ptr"
	"github.com/myrjola/liftlog/internal/sqlite"
	"github.com/myrjola/liftlog/internal/testhelpers"
)

func fixedClock() time.Time {
	return time.Date(2025, time.June, 15, 13, 30, 0, 0, time.UTC)
}

type countingObserver struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (o *countingObserver) ObserveMemo(hit bool) {
	if hit {
		o.hits.Add(1)
		return
	}
	o.misses.Add(1)
}

func newService(t *testing.T) (*progress.Service, *countingObserver) {
	t.Helper()
	return newServiceWithMemo(t, 8*1024*1024)
}

func newServiceWithMemo(t *testing.T, memoBytes int) (*progress.Service, *countingObserver) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewTestLogger(t)
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	observer := &countingObserver{}
	engine := projection.NewEngine(projection.DefaultTunables(), fixedClock)
	svc := progress.NewService(db, engine, logger, progress.Config{
		MemoCacheBytes: memoBytes,
		MemoTTL:        time.Minute,
		Observer:       observer,
	})
	return svc, observer
}

func mustSaveGoal(t *testing.T, svc *progress.Service, goal progress.Goal) progress.Goal {
	t.Helper()
	saved, err := svc.SaveGoal(t.Context(), goal)
	if err != nil {
		t.Fatalf("SaveGoal(%q) error = %v", goal.Metric, err)
	}
	return saved
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

var ignoreUpdatedAt = cmpopts.IgnoreFields(progress.Goal{}, "UpdatedAt") //nolint:gochecknoglobals // test option

func TestService_SaveGoal(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()

	saved := mustSaveGoal(t, svc, progress.Goal{Metric: "  Squat ", Current: 100, Target: 140, Unit: "", Notes: ""})
	want := progress.Goal{Metric: "Squat", Current: 100, Target: 140, Unit: "kg", Notes: "", UpdatedAt: time.Time{}}
	if diff := cmp.Diff(want, saved, ignoreUpdatedAt); diff != "" {
		t.Errorf("SaveGoal() mismatch (-want +got):\n%s", diff)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}

	// Saving the same metric again replaces the values.
	mustSaveGoal(t, svc, progress.Goal{Metric: "Squat", Current: 110, Target: 150, Unit: "lbs", Notes: "*deep*"})
	got, err := svc.GetGoal(ctx, "Squat")
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	want = progress.Goal{Metric: "Squat", Current: 110, Target: 150, Unit: "lbs", Notes: "*deep*", UpdatedAt: time.Time{}}
	if diff := cmp.Diff(want, got, ignoreUpdatedAt); diff != "" {
		t.Errorf("GetGoal() mismatch (-want +got):\n%s", diff)
	}

	goals, err := svc.ListGoals(ctx)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 1 {
		t.Errorf("ListGoals() returned %d goals, want 1", len(goals))
	}
}

func TestService_SaveGoal_invalid(t *testing.T) {
	svc, _ := newService(t)
	tests := []struct {
		name string
		goal progress.Goal
	}{
		{name: "empty metric", goal: progress.Goal{Metric: "  ", Current: 1, Target: 2}},
		{name: "negative current", goal: progress.Goal{Metric: "Bench", Current: -1, Target: 2}},
		{name: "zero target", goal: progress.Goal{Metric: "Bench", Current: 1, Target: 0}},
		{name: "unit too long", goal: progress.Goal{Metric: "Bench", Current: 1, Target: 2, Unit: "kilograms-and-then-some"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SaveGoal(t.Context(), tt.goal); !errors.Is(err, progress.ErrInvalidGoal) {
				t.Errorf("SaveGoal() error = %v, want %v", err, progress.ErrInvalidGoal)
			}
		})
	}
}

func TestService_GetGoal_notFound(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.GetGoal(t.Context(), "Deadlift"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("GetGoal() error = %v, want %v", err, progress.ErrNotFound)
	}
}

func TestService_LogRecord(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120, Unit: "kg"})

	rec, raised, err := svc.LogRecord(ctx, progress.Record{Metric: "Bench", Value: 95})
	if err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}
	if raised {
		t.Error("LogRecord() reported a personal record for a lower value")
	}
	want := progress.Record{ID: rec.ID, Metric: "Bench", RecordedOn: day("2025-06-15"), Value: 95, Unit: "kg"}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("LogRecord() mismatch (-want +got):\n%s", diff)
	}

	if _, raised, err = svc.LogRecord(ctx, progress.Record{
		Metric: "Bench", RecordedOn: day("2025-06-10"), Value: 105, Unit: "kg",
	}); err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}
	if !raised {
		t.Error("LogRecord() did not report a personal record")
	}
	goal, err := svc.GetGoal(ctx, "Bench")
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if goal.Current != 105 {
		t.Errorf("goal current = %v, want 105", goal.Current)
	}

	history, err := svc.History(ctx, "Bench")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	gotDates := make([]string, len(history))
	for i, r := range history {
		gotDates[i] = r.RecordedOn.Format(time.DateOnly)
	}
	if diff := cmp.Diff([]string{"2025-06-15", "2025-06-10"}, gotDates); diff != "" {
		t.Errorf("History() dates mismatch (-want +got):\n%s", diff)
	}
}

func TestService_LogRecord_errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})

	if _, _, err := svc.LogRecord(ctx, progress.Record{Metric: "Row", Value: 80, Unit: "kg"}); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("LogRecord() for missing goal error = %v, want %v", err, progress.ErrNotFound)
	}
	if _, _, err := svc.LogRecord(ctx, progress.Record{Metric: "Bench", Value: -5}); !errors.Is(err, progress.ErrInvalidRecord) {
		t.Errorf("LogRecord() with negative value error = %v, want %v", err, progress.ErrInvalidRecord)
	}
}

func TestService_DeleteRecordAndGoal(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})
	rec, _, err := svc.LogRecord(ctx, progress.Record{Metric: "Bench", Value: 90})
	if err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}

	if err = svc.DeleteRecord(ctx, "Squat", rec.ID); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("DeleteRecord() with the wrong metric error = %v, want %v", err, progress.ErrNotFound)
	}
	if err = svc.DeleteRecord(ctx, "Bench", rec.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if err = svc.DeleteRecord(ctx, "Bench", rec.ID); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("second DeleteRecord() error = %v, want %v", err, progress.ErrNotFound)
	}

	if _, _, err = svc.LogRecord(ctx, progress.Record{Metric: "Bench", Value: 90}); err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}
	if err = svc.DeleteGoal(ctx, "Bench"); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
	history, err := svc.History(ctx, "Bench")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("records survived goal deletion: %v", history)
	}
	if err = svc.DeleteGoal(ctx, "Bench"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("second DeleteGoal() error = %v, want %v", err, progress.ErrNotFound)
	}
}

func TestService_UpdateNotes(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})

	if err := svc.UpdateNotes(ctx, "Bench", "Pause on the chest."); err != nil {
		t.Fatalf("UpdateNotes() error = %v", err)
	}
	goal, err := svc.GetGoal(ctx, "Bench")
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if goal.Notes != "Pause on the chest." {
		t.Errorf("Notes = %q", goal.Notes)
	}
	if err = svc.UpdateNotes(ctx, "Row", "x"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("UpdateNotes() for missing goal error = %v, want %v", err, progress.ErrNotFound)
	}
}

func TestService_Profile(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()

	got, err := svc.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if diff := cmp.Diff(progress.Profile{Level: projection.LevelIntermediate, BodyWeightKg: nil}, got); diff != "" {
		t.Errorf("default profile mismatch (-want +got):\n%s", diff)
	}

	want := progress.Profile{Level: projection.LevelAdvanced, BodyWeightKg: ptr.Ref(82.5)}
	if err = svc.SaveProfile(ctx, want); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if got, err = svc.GetProfile(ctx); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetProfile() mismatch (-want +got):\n%s", diff)
	}

	invalid := []progress.Profile{
		{Level: "expert", BodyWeightKg: nil},
		{Level: projection.LevelBeginner, BodyWeightKg: ptr.Ref(0.0)},
	}
	for _, p := range invalid {
		if err = svc.SaveProfile(ctx, p); !errors.Is(err, progress.ErrInvalidProfile) {
			t.Errorf("SaveProfile(%+v) error = %v, want %v", p, err, progress.ErrInvalidProfile)
		}
	}
}

func TestService_Projection(t *testing.T) {
	svc, observer := newService(t)
	ctx := t.Context()
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})

	first, err := svc.Projection(ctx, "Bench")
	if err != nil {
		t.Fatalf("Projection() error = %v", err)
	}
	if first.Projection.TimeToGoal != "~4 months" {
		t.Errorf("TimeToGoal = %q, want %q", first.Projection.TimeToGoal, "~4 months")
	}
	if first.Projection.Path != projection.PathSparse {
		t.Errorf("Path = %q, want %q", first.Projection.Path, projection.PathSparse)
	}

	second, err := svc.Projection(ctx, "Bench")
	if err != nil {
		t.Fatalf("Projection() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("memoized projection differs (-first +second):\n%s", diff)
	}
	if hits, misses := observer.hits.Load(), observer.misses.Load(); hits != 1 || misses != 1 {
		t.Errorf("memo hits = %d, misses = %d, want 1 and 1", hits, misses)
	}

	// New data changes the memo key.
	if _, _, err = svc.LogRecord(ctx, progress.Record{Metric: "Bench", RecordedOn: day("2025-05-15"), Value: 90}); err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}
	if _, err = svc.Projection(ctx, "Bench"); err != nil {
		t.Fatalf("Projection() error = %v", err)
	}
	if misses := observer.misses.Load(); misses != 2 {
		t.Errorf("memo misses = %d, want 2", misses)
	}

	if _, err = svc.Projection(ctx, "Row"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("Projection() for missing goal error = %v, want %v", err, progress.ErrNotFound)
	}
}

func TestService_Projection_smallMemo(t *testing.T) {
	svc, observer := newServiceWithMemo(t, 1024*1024)
	ctx := t.Context()
	// A century-long horizon fills the projection up to its point cap.
	mustSaveGoal(t, svc, progress.Goal{Metric: "Squat", Current: 10, Target: 1000})

	first, err := svc.Projection(ctx, "Squat")
	if err != nil {
		t.Fatalf("Projection() error = %v", err)
	}
	maxProjected := projection.DefaultTunables().MaxProjectedPoints + 2
	if got := len(first.Projection.ProjectedSeries); got != maxProjected {
		t.Fatalf("got %d projected points, want %d", got, maxProjected)
	}
	for range 2 {
		if _, err = svc.Projection(ctx, "Squat"); err != nil {
			t.Fatalf("Projection() error = %v", err)
		}
	}
	if hits, misses := observer.hits.Load(), observer.misses.Load(); hits != 2 || misses != 1 {
		t.Errorf("memo hits = %d, misses = %d, want 2 and 1", hits, misses)
	}
}

func TestService_Chart(t *testing.T) {
	svc, _ := newService(t)
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})

	chart, err := svc.Chart(t.Context(), "Bench", 300, 200, ptr.Ref(2))
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	// Five display points and the projection without its duplicated "Now" point.
	wantLen := len(chart.Projection.DisplaySeries) + len(chart.Projection.ProjectedSeries) - 1
	if len(chart.Timeline) != wantLen || len(chart.Geometry.Points) != wantLen {
		t.Fatalf("got %d timeline and %d chart points, want %d", len(chart.Timeline), len(chart.Geometry.Points), wantLen)
	}
	if !chart.Geometry.Points[2].Selected {
		t.Error("point 2 is not selected")
	}
	if chart.TargetY < 0 || chart.TargetY > 200 {
		t.Errorf("TargetY = %v outside the chart", chart.TargetY)
	}
}

func TestService_Overview(t *testing.T) {
	svc, _ := newService(t)
	ctx := t.Context()
	for _, metric := range []string{"Squat", "Bench", "Deadlift"} {
		mustSaveGoal(t, svc, progress.Goal{Metric: metric, Current: 100, Target: 150})
	}
	if _, _, err := svc.LogRecord(ctx, progress.Record{Metric: "Bench", RecordedOn: day("2025-03-15"), Value: 80}); err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}
	if _, _, err := svc.LogRecord(ctx, progress.Record{Metric: "Bench", RecordedOn: day("2025-06-15"), Value: 110}); err != nil {
		t.Fatalf("LogRecord() error = %v", err)
	}

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	gotMetrics := make([]string, len(overview))
	for i, gp := range overview {
		gotMetrics[i] = gp.Goal.Metric
	}
	if diff := cmp.Diff([]string{"Bench", "Deadlift", "Squat"}, gotMetrics); diff != "" {
		t.Errorf("Overview() order mismatch (-want +got):\n%s", diff)
	}

	single, err := svc.Projection(ctx, "Bench")
	if err != nil {
		t.Fatalf("Projection() error = %v", err)
	}
	if diff := cmp.Diff(single, overview[0]); diff != "" {
		t.Errorf("Overview() and Projection() disagree (-projection +overview):\n%s", diff)
	}
	if overview[0].Projection.Path != projection.PathRich {
		t.Errorf("Bench path = %q, want %q", overview[0].Projection.Path, projection.PathRich)
	}
}

func TestService_Export(t *testing.T) {
	svc, _ := newService(t)
	mustSaveGoal(t, svc, progress.Goal{Metric: "Bench", Current: 100, Target: 120})

	path, err := svc.Export(t.Context(), t.TempDir())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if path == "" {
		t.Error("Export() returned an empty path")
	}
}

package projection_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/liftlog/internal/projection"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeHistory(t *testing.T) {
	tests := []struct {
		name    string
		samples []projection.RawSample
		metric  string
		want    []projection.HistorySample
	}{
		{
			name:    "empty",
			samples: nil,
			metric:  "Squat",
			want:    []projection.HistorySample{},
		},
		{
			name: "sorts ascending and filters metric",
			samples: []projection.RawSample{
				{Metric: "Squat", Date: "2024-03-01", Value: 110},
				{Metric: "Bench", Date: "2024-02-01", Value: 80},
				{Metric: "Squat", Date: "2024-01-01", Value: 100},
			},
			metric: "Squat",
			want: []projection.HistorySample{
				{Date: day(2024, time.January, 1), Value: 100},
				{Date: day(2024, time.March, 1), Value: 110},
			},
		},
		{
			name: "drops unparseable dates and non-finite values",
			samples: []projection.RawSample{
				{Metric: "Squat", Date: "yesterday", Value: 100},
				{Metric: "Squat", Date: "", Value: 100},
				{Metric: "Squat", Date: "2024-01-02", Value: math.NaN()},
				{Metric: "Squat", Date: "2024-01-03", Value: math.Inf(1)},
				{Metric: "Squat", Date: "2024-01-04", Value: 105},
			},
			metric: "Squat",
			want: []projection.HistorySample{
				{Date: day(2024, time.January, 4), Value: 105},
			},
		},
		{
			name: "keeps input order for equal dates",
			samples: []projection.RawSample{
				{Metric: "Squat", Date: "2024-01-05", Value: 3},
				{Metric: "Squat", Date: "2024-01-04", Value: 1},
				{Metric: "Squat", Date: "2024-01-04", Value: 2},
			},
			metric: "Squat",
			want: []projection.HistorySample{
				{Date: day(2024, time.January, 4), Value: 1},
				{Date: day(2024, time.January, 4), Value: 2},
				{Date: day(2024, time.January, 5), Value: 3},
			},
		},
		{
			name: "accepts timestamps",
			samples: []projection.RawSample{
				{Metric: "Squat", Date: "2024-01-02T10:00:00Z", Value: 2},
				{Metric: "Squat", Date: "2024-01-01 09:00:00", Value: 1},
			},
			metric: "Squat",
			want: []projection.HistorySample{
				{Date: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC), Value: 1},
				{Date: time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC), Value: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := projection.NormalizeHistory(tt.samples, tt.metric)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeHistory() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeHistory_DoesNotModifyInput(t *testing.T) {
	samples := []projection.RawSample{
		{Metric: "Squat", Date: "2024-03-01", Value: 110},
		{Metric: "Squat", Date: "2024-01-01", Value: 100},
	}
	before := append([]projection.RawSample(nil), samples...)

	_ = projection.NormalizeHistory(samples, "Squat")

	if diff := cmp.Diff(before, samples); diff != "" {
		t.Errorf("input modified (-before +after):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	if _, ok := projection.ParseDate("2024-13-01"); ok {
		t.Error("expected invalid month to be rejected")
	}
	got, ok := projection.ParseDate(" 2024-02-29 ")
	if !ok {
		t.Fatal("expected leap day to parse")
	}
	if !got.Equal(day(2024, time.February, 29)) {
		t.Errorf("ParseDate() = %v", got)
	}
}

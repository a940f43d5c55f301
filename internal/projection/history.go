package projection

import (
	"math"
	"slices"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing a sample date.
var dateLayouts = []string{ //nolint:gochecknoglobals // read-only lookup table.
	time.DateOnly,
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02T15:04:05",
}

// ParseDate parses the date formats found in stored history. The boolean is false when no layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeHistory returns the samples of metric sorted oldest first.
//
// Samples with an unparseable date or a non-finite value are dropped. Samples sharing a date keep their
// input order. The input is not modified.
func NormalizeHistory(samples []RawSample, metric string) []HistorySample {
	out := make([]HistorySample, 0, len(samples))
	for _, s := range samples {
		if s.Metric != metric {
			continue
		}
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		date, ok := ParseDate(s.Date)
		if !ok {
			continue
		}
		out = append(out, HistorySample{Date: date, Value: s.Value})
	}
	slices.SortStableFunc(out, func(a, b HistorySample) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// newestFirst returns a copy of ascending history sorted newest first.
func newestFirst(history []HistorySample) []HistorySample {
	out := slices.Clone(history)
	slices.SortStableFunc(out, func(a, b HistorySample) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

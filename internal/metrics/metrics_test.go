package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/myrjola/liftlog/internal/metrics"
)

func TestMetrics(t *testing.T) {
	m := metrics.New()

	m.ObserveMemo(true)
	m.ObserveMemo(false)
	m.ObserveMemo(false)
	done := m.RequestStarted(http.MethodGet)
	done(http.StatusOK)
	m.ObservePanic()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no metric families")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		`liftlog_projection_memo_lookups_total{result="miss"} 2`,
		`liftlog_projection_memo_lookups_total{result="hit"} 1`,
		`liftlog_http_requests_total{method="GET",status="200"} 1`,
		`liftlog_http_requests_in_flight 0`,
		`liftlog_http_panics_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition is missing %q", want)
		}
	}
}

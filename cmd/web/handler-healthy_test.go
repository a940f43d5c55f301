package main

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func Test_application_healthyAndMetrics(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startTestServer(t)
		client = server.Client()
	)

	var health struct {
		Status string `json:"status"`
	}
	if err := client.GetJSON(ctx, "/api/healthy", &health); err != nil {
		t.Fatalf("Failed to get health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Expected status ok, got %q", health.Status)
	}

	// The dashboard projects every goal, the second visit is served from the memo.
	createGoal(t, client, "Bench", "100", "120")
	for range 2 {
		if _, err := client.GetDoc(ctx, "/"); err != nil {
			t.Fatalf("Failed to get dashboard: %v", err)
		}
	}

	resp, err := client.Get(ctx, "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	for _, want := range []string{
		`liftlog_http_requests_total{method="GET",status="200"}`,
		`liftlog_projection_memo_lookups_total{result="hit"}`,
		`liftlog_projection_memo_lookups_total{result="miss"}`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

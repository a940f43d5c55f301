package main

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/liftlog/internal/e2etest"
)

func postDoc(t *testing.T, client *e2etest.Client, path string, values url.Values) *goquery.Document {
	t.Helper()
	resp, err := client.PostForm(t.Context(), path, values)
	if err != nil {
		t.Fatalf("Failed to post %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 from %s, got %d", path, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return doc
}

func historyDates(doc *goquery.Document) []string {
	var dates []string
	doc.Find(".history time").Each(func(_ int, s *goquery.Selection) {
		date, _ := s.Attr("datetime")
		dates = append(dates, date)
	})
	return dates
}

func Test_application_goalRecords(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startTestServer(t)
		client = server.Client()
		err    error
	)
	doc := createGoal(t, client, "Bench", "100", "120")

	t.Run("New personal record raises the goal", func(t *testing.T) {
		doc, err = client.SubmitForm(ctx, doc, "/goals/Bench/records", map[string]string{
			"Value": "105",
			"Date":  "2025-06-01",
		})
		if err != nil {
			t.Fatalf("Failed to log record: %v", err)
		}
		if got := doc.Find(".current").Text(); got != "105 kg" {
			t.Errorf("Expected current 105 kg, got %q", got)
		}
		if got := doc.Find(".history .value").Text(); got != "105 kg" {
			t.Errorf("Expected history entry 105 kg, got %q", got)
		}
	})

	t.Run("Older weaker record keeps the goal", func(t *testing.T) {
		doc, err = client.SubmitForm(ctx, doc, "/goals/Bench/records", map[string]string{
			"Value": "90",
			"Date":  "2025-05-01",
		})
		if err != nil {
			t.Fatalf("Failed to log record: %v", err)
		}
		if got := doc.Find(".current").Text(); got != "105 kg" {
			t.Errorf("Expected current 105 kg, got %q", got)
		}
		if got, want := strings.Join(historyDates(doc), ","), "2025-06-01,2025-05-01"; got != want {
			t.Errorf("Expected history %q, got %q", want, got)
		}
	})

	t.Run("Delete record", func(t *testing.T) {
		action, ok := doc.Find(".history form").Last().Attr("action")
		if !ok {
			t.Fatal("Expected delete form in history")
		}
		doc, err = client.SubmitForm(ctx, doc, action, nil)
		if err != nil {
			t.Fatalf("Failed to delete record: %v", err)
		}
		if got, want := strings.Join(historyDates(doc), ","), "2025-06-01"; got != want {
			t.Errorf("Expected history %q, got %q", want, got)
		}
	})

	t.Run("Invalid records are rejected", func(t *testing.T) {
		for _, value := range []string{"-5", "abc", ""} {
			resp, postErr := client.PostForm(ctx, "/goals/Bench/records", url.Values{"value": {value}})
			if postErr != nil {
				t.Fatalf("Failed to post record: %v", postErr)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400 for value %q, got %d", value, resp.StatusCode)
			}
		}
	})

	t.Run("Unknown goal", func(t *testing.T) {
		resp, getErr := client.Get(ctx, "/goals/Row")
		if getErr != nil {
			t.Fatalf("Failed to get goal: %v", getErr)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}

		resp, getErr = client.PostForm(ctx, "/goals/Row/records", url.Values{"value": {"10"}})
		if getErr != nil {
			t.Fatalf("Failed to post record: %v", getErr)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
	})
}

func Test_application_goalNotes(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startTestServer(t)
		client = server.Client()
		err    error
	)
	doc := createGoal(t, client, "Squat", "140", "160")

	doc, err = client.SubmitForm(ctx, doc, "/goals/Squat/notes", map[string]string{
		"Edit": "Paused for a **deload** week.\r\n\r\n<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("Failed to save notes: %v", err)
	}
	if got := doc.Find(".notes strong").Text(); got != "deload" {
		t.Errorf("Expected rendered markdown, got %q", got)
	}
	if doc.Find(".notes script").Length() != 0 {
		t.Error("Expected raw HTML in notes to be dropped")
	}

	t.Run("Editing the goal keeps notes", func(t *testing.T) {
		doc, err = client.SubmitForm(ctx, doc, "/goals", map[string]string{"Target": "170"})
		if err != nil {
			t.Fatalf("Failed to update goal: %v", err)
		}
		if got := doc.Find(".target").Text(); got != "170 kg" {
			t.Errorf("Expected target 170 kg, got %q", got)
		}
		if got := doc.Find(".notes strong").Text(); got != "deload" {
			t.Errorf("Expected notes to survive the update, got %q", got)
		}
	})
}

func Test_application_goalSelection(t *testing.T) {
	var (
		server = startTestServer(t)
		client = server.Client()
	)
	createGoal(t, client, "Bench", "100", "120")

	doc := postDoc(t, client, "/goals/Bench/select/2", nil)
	if doc.Find(".selected-point").Length() != 1 {
		t.Error("Expected the selected point caption")
	}
	selected := doc.Find("rect.marker.selected")
	if index, _ := selected.Attr("data-index"); selected.Length() != 1 || index != "2" {
		t.Errorf("Expected marker 2 to be selected, got %d markers with index %q", selected.Length(), index)
	}

	doc = postDoc(t, client, "/goals/Bench/select/clear", nil)
	if doc.Find("rect.marker.selected").Length() != 0 {
		t.Error("Expected no selected marker after clearing")
	}

	doc = postDoc(t, client, "/goals/Bench/select/999", nil)
	if doc.Find(".selected-point").Length() != 0 {
		t.Error("Expected out of range selection to highlight nothing")
	}
}

func Test_application_goalDelete(t *testing.T) {
	var (
		server = startTestServer(t)
		client = server.Client()
	)
	createGoal(t, client, "Bench", "100", "120")

	doc := postDoc(t, client, "/goals/Bench/delete", nil)
	if doc.Find(".empty").Length() != 1 {
		t.Error("Expected the dashboard empty state after deleting the only goal")
	}

	resp, err := client.PostForm(t.Context(), "/goals/Bench/delete", nil)
	if err != nil {
		t.Fatalf("Failed to post delete: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 when deleting twice, got %d", resp.StatusCode)
	}
}

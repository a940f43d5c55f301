package main

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func Test_application_preferences(t *testing.T) {
	var (
		ctx    = t.Context()
		server = startTestServer(t)
		client = server.Client()
		doc    *goquery.Document
		err    error
	)

	t.Run("Shows default preferences", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/preferences"); err != nil {
			t.Fatalf("Failed to get preferences: %v", err)
		}
		if got := doc.Find("h1").Text(); got != "Preferences" {
			t.Errorf("Expected preferences heading, got %q", got)
		}
		if got, _ := doc.Find("select#experience_level option[selected]").Attr("value"); got != "intermediate" {
			t.Errorf("Expected intermediate to be selected, got %q", got)
		}
		if got, _ := doc.Find("input#body_weight_kg").Attr("value"); got != "" {
			t.Errorf("Expected empty body weight, got %q", got)
		}
		if got := doc.Find(`.level-note[data-level="beginner"] strong`).Text(); got != "accelerated" {
			t.Errorf("Expected rendered beginner note, got %q", got)
		}
	})

	t.Run("Saves preferences", func(t *testing.T) {
		doc, err = client.SubmitForm(ctx, doc, "/preferences", map[string]string{
			"Experience": "beginner",
			"Body":       "82.5",
		})
		if err != nil {
			t.Fatalf("Failed to submit preferences: %v", err)
		}
		if got := doc.Find(".profile").Text(); !strings.Contains(got, "beginner") || !strings.Contains(got, "82.5 kg") {
			t.Errorf("Expected dashboard to show the saved profile, got %q", got)
		}

		if doc, err = client.GetDoc(ctx, "/preferences"); err != nil {
			t.Fatalf("Failed to get preferences: %v", err)
		}
		if got, _ := doc.Find("select#experience_level option[selected]").Attr("value"); got != "beginner" {
			t.Errorf("Expected beginner to be selected, got %q", got)
		}
		if got, _ := doc.Find("input#body_weight_kg").Attr("value"); got != "82.5" {
			t.Errorf("Expected body weight 82.5, got %q", got)
		}
	})

	t.Run("Rejects invalid preferences", func(t *testing.T) {
		tests := []url.Values{
			{"experience_level": {"expert"}},
			{"experience_level": {"beginner"}, "body_weight_kg": {"-3"}},
			{"experience_level": {"beginner"}, "body_weight_kg": {"heavy"}},
		}
		for _, values := range tests {
			resp, postErr := client.PostForm(ctx, "/preferences", values)
			if postErr != nil {
				t.Fatalf("Failed to post preferences: %v", postErr)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400 for %v, got %d", values, resp.StatusCode)
			}
		}
	})
}

func Test_application_export(t *testing.T) {
	var (
		server = startTestServer(t)
		client = server.Client()
	)
	createGoal(t, client, "Bench", "100", "120")

	resp, err := client.Get(t.Context(), "/preferences/export")
	if err != nil {
		t.Fatalf("Failed to get export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/x-sqlite3" {
		t.Errorf("Expected SQLite content type, got %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(got, "attachment;") {
		t.Errorf("Expected attachment disposition, got %q", got)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("SQLite format 3\x00")) {
		t.Errorf("Expected an SQLite database, got %d bytes", len(body))
	}
}

package main

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/myrjola/liftlog/internal/contexthelpers"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.render(w, r, http.StatusInternalServerError, "error", errorTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		TraceID:          contexthelpers.TraceID(r.Context()),
	})
}

type errorTemplateData struct {
	BaseTemplateData
	TraceID string
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusNotFound, "not-found", newBaseTemplateData(r))
}

type clientErrorTemplateData struct {
	BaseTemplateData
	Message string
}

// handleError maps validation failures to 400, missing entities to 404 and everything else to 500.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, progress.ErrNotFound):
		app.notFound(w, r)
	case errors.Is(err, progress.ErrInvalidGoal),
		errors.Is(err, progress.ErrInvalidRecord),
		errors.Is(err, progress.ErrInvalidProfile):
		app.logger.LogAttrs(r.Context(), slog.LevelInfo, "rejected input", errors.SlogError(err))
		app.render(w, r, http.StatusBadRequest, "bad-request", clientErrorTemplateData{
			BaseTemplateData: newBaseTemplateData(r),
			Message:          err.Error(),
		})
	default:
		app.serverError(w, r, err)
	}
}

// redirect detects if the request is originating from a fetch API call or a top-level navigation and points the user
// to the correct URL.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("Sec-Fetch-Dest") == "empty" {
		w.Header().Set("Content-Location", path)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, path, http.StatusSeeOther)
}

// goalPath is the URL of the goal page for metric.
func goalPath(metric string) string {
	return "/goals/" + url.PathEscape(metric)
}

// parseIntParam parses the named path parameter as a non-negative integer.
// On failure, sends HTTP 404 response automatically.
func (app *application) parseIntParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < 0 {
		app.notFound(w, r)
		return 0, false
	}
	return n, true
}

// parseFloatField parses an optional form field. Empty values yield nil.
func parseFloatField(r *http.Request, name string) (*float64, error) {
	raw := r.PostForm.Get(name)
	if raw == "" {
		return nil, nil //nolint:nilnil // missing optional field
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse float", slog.String("field", name))
	}
	return &f, nil
}

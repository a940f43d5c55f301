package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
)

const (
	// Size of the inline chart on the goal page in SVG user units.
	chartWidth  = 320
	chartHeight = 200
)

type goalTemplateData struct {
	BaseTemplateData
	Chart   progress.Chart
	History []progress.Record
	Profile progress.Profile
	// Today prefills the record form.
	Today string
	// Selected is the highlighted chart point if any.
	Selected *selectedPoint
}

type selectedPoint struct {
	Index int
	Label string
	Value float64
}

func (app *application) goalGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metric := r.PathValue("metric")
	selected := app.selectedIndex(ctx, metric)

	chart, err := app.progress.Chart(ctx, metric, chartWidth, chartHeight, selected)
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "chart", slog.String("metric", metric)))
		return
	}
	history, err := app.progress.History(ctx, metric)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "history"))
		return
	}
	profile, err := app.progress.GetProfile(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get profile"))
		return
	}

	data := goalTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Chart:            chart,
		History:          history,
		Profile:          profile,
		Today:            app.progress.Engine().Today().Format("2006-01-02"),
		Selected:         nil,
	}
	if selected != nil && *selected < len(chart.Geometry.Points) {
		p := chart.Geometry.Points[*selected]
		data.Selected = &selectedPoint{Index: *selected, Label: p.Label, Value: p.Value}
	}
	app.render(w, r, http.StatusOK, "goal", data)
}

func (app *application) goalPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	current, err := parseFloatField(r, "current")
	if err != nil {
		app.handleError(w, r, errors.Join(progress.ErrInvalidGoal, err))
		return
	}
	target, err := parseFloatField(r, "target")
	if err != nil {
		app.handleError(w, r, errors.Join(progress.ErrInvalidGoal, err))
		return
	}
	if current == nil || target == nil {
		app.handleError(w, r, errors.Wrap(progress.ErrInvalidGoal, "current and target are required"))
		return
	}

	goal, err := app.progress.SaveGoal(r.Context(), progress.Goal{ //nolint:exhaustruct // set by the database
		Metric:  r.PostForm.Get("metric"),
		Current: *current,
		Target:  *target,
		Unit:    r.PostForm.Get("unit"),
		Notes:   normalizeNewlines(r.PostForm.Get("notes")),
	})
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "save goal"))
		return
	}
	redirect(w, r, goalPath(goal.Metric))
}

func (app *application) goalNotesPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	metric := r.PathValue("metric")
	if err := app.progress.UpdateNotes(r.Context(), metric, normalizeNewlines(r.PostForm.Get("notes"))); err != nil {
		app.handleError(w, r, errors.Wrap(err, "update notes", slog.String("metric", metric)))
		return
	}
	redirect(w, r, goalPath(metric))
}

func (app *application) goalDeletePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metric := r.PathValue("metric")
	if err := app.progress.DeleteGoal(ctx, metric); err != nil {
		app.handleError(w, r, errors.Wrap(err, "delete goal", slog.String("metric", metric)))
		return
	}
	app.sessionManager.Remove(ctx, selectionKey(metric))
	redirect(w, r, "/")
}

// normalizeNewlines converts the CRLF line endings browsers submit for textareas.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

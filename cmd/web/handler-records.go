package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
)

func (app *application) recordPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	ctx := r.Context()
	metric := r.PathValue("metric")

	value, err := parseFloatField(r, "value")
	if err != nil {
		app.handleError(w, r, errors.Join(progress.ErrInvalidRecord, err))
		return
	}
	if value == nil {
		app.handleError(w, r, errors.Wrap(progress.ErrInvalidRecord, "value is required"))
		return
	}
	var recordedOn time.Time
	if raw := r.PostForm.Get("date"); raw != "" {
		if recordedOn, err = time.Parse(time.DateOnly, raw); err != nil {
			app.handleError(w, r, errors.Join(progress.ErrInvalidRecord, errors.Wrap(err, "parse date")))
			return
		}
	}

	rec, raised, err := app.progress.LogRecord(ctx, progress.Record{
		ID:         0,
		Metric:     metric,
		RecordedOn: recordedOn,
		Value:      *value,
		Unit:       r.PostForm.Get("unit"),
	})
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "log record", slog.String("metric", metric)))
		return
	}
	if raised {
		app.logger.LogAttrs(ctx, slog.LevelInfo, "goal raised by record",
			slog.String("metric", metric), slog.Int("record_id", rec.ID))
	}
	redirect(w, r, goalPath(metric))
}

func (app *application) recordDeletePOST(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	id, ok := app.parseIntParam(w, r, "id")
	if !ok {
		return
	}
	if err := app.progress.DeleteRecord(r.Context(), metric, id); err != nil {
		app.handleError(w, r, errors.Wrap(err, "delete record", slog.String("metric", metric), slog.Int("id", id)))
		return
	}
	redirect(w, r, goalPath(metric))
}

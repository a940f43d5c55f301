package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
	"github.com/myrjola/liftlog/internal/projection"
)

type levelOption struct {
	Value    projection.ExperienceLevel
	Selected bool
	Note     string
}

type preferencesTemplateData struct {
	BaseTemplateData
	Levels       []levelOption
	BodyWeightKg *float64
}

func (app *application) preferencesGET(w http.ResponseWriter, r *http.Request) {
	profile, err := app.progress.GetProfile(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get profile"))
		return
	}

	levels := projection.Levels()
	options := make([]levelOption, 0, len(levels))
	for _, level := range levels {
		options = append(options, levelOption{
			Value:    level,
			Selected: level == profile.Level,
			Note:     projection.ExperienceNote(level),
		})
	}

	data := preferencesTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Levels:           options,
		BodyWeightKg:     profile.BodyWeightKg,
	}
	app.render(w, r, http.StatusOK, "preferences", data)
}

func (app *application) preferencesPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	weight, err := parseFloatField(r, "body_weight_kg")
	if err != nil {
		app.handleError(w, r, errors.Join(progress.ErrInvalidProfile, err))
		return
	}

	profile := progress.Profile{
		Level:        projection.ExperienceLevel(r.PostForm.Get("experience_level")),
		BodyWeightKg: weight,
	}
	if err = app.progress.SaveProfile(r.Context(), profile); err != nil {
		app.handleError(w, r, errors.Wrap(err, "save profile"))
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "profile details",
			slog.String("level", string(profile.Level)))
		return
	}

	redirect(w, r, "/")
}

// exportGET streams a SQLite copy of all goals, records and the profile.
func (app *application) exportGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dir := app.exportDir
	if dir == "" {
		dir = os.TempDir()
	}
	exportPath, err := app.progress.Export(ctx, dir)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "export"))
		return
	}

	defer func() {
		if removeErr := os.Remove(exportPath); removeErr != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "failed to remove temporary export file",
				slog.String("path", exportPath), errors.SlogError(removeErr))
		}
	}()

	file, err := os.Open(exportPath)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "open export file"))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close export file",
				slog.String("path", exportPath), errors.SlogError(closeErr))
		}
	}()

	filename := filepath.Base(exportPath)
	w.Header().Set("Content-Type", "application/x-sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if _, err = io.Copy(w, file); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "failed to stream export file to client",
			slog.String("path", exportPath), errors.SlogError(err))
	}
}

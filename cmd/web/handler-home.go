package main

import (
	"net/http"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
	"github.com/myrjola/liftlog/internal/projection"
)

type homeTemplateData struct {
	BaseTemplateData
	Goals   []progress.GoalProjection
	Profile progress.Profile
	Reached projection.EstimatePath
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	goals, err := app.progress.Overview(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "overview"))
		return
	}
	profile, err := app.progress.GetProfile(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get profile"))
		return
	}

	data := homeTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		Goals:            goals,
		Profile:          profile,
		Reached:          projection.PathReached,
	}
	app.render(w, r, http.StatusOK, "home", data)
}

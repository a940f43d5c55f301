package main

import (
	"context"
	"net/http"

	"github.com/myrjola/liftlog/internal/ptr"
)

// selectionKey is the session key of the highlighted chart point of metric.
func selectionKey(metric string) string {
	return "selected:" + metric
}

func (app *application) selectedIndex(ctx context.Context, metric string) *int {
	key := selectionKey(metric)
	if !app.sessionManager.Exists(ctx, key) {
		return nil
	}
	return ptr.Ref(app.sessionManager.GetInt(ctx, key))
}

// selectPOST stores the highlighted point. Indexes past the end are kept and simply match no point.
func (app *application) selectPOST(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	index, ok := app.parseIntParam(w, r, "index")
	if !ok {
		return
	}
	app.sessionManager.Put(r.Context(), selectionKey(metric), index)
	redirect(w, r, goalPath(metric))
}

func (app *application) selectClearPOST(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	app.sessionManager.Remove(r.Context(), selectionKey(metric))
	redirect(w, r, goalPath(metric))
}

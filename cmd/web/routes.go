package main

import (
	"net/http"

	"github.com/myrjola/liftlog/internal/errors"
)

func (app *application) routes() (http.Handler, error) {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(
				commonContext(app.timeout(next)))))
		}
		noSession = func(next http.Handler) http.Handler {
			return app.recoverPanic(shared(next))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(shared(next))))
		}
	)

	mux.Handle("GET /{$}", session(http.HandlerFunc(app.home)))

	mux.Handle("POST /goals", session(http.HandlerFunc(app.goalPOST)))
	mux.Handle("GET /goals/{metric}", session(http.HandlerFunc(app.goalGET)))
	mux.Handle("POST /goals/{metric}/delete", session(http.HandlerFunc(app.goalDeletePOST)))
	mux.Handle("POST /goals/{metric}/notes", session(http.HandlerFunc(app.goalNotesPOST)))
	mux.Handle("POST /goals/{metric}/records", session(http.HandlerFunc(app.recordPOST)))
	mux.Handle("POST /goals/{metric}/records/{id}/delete", session(http.HandlerFunc(app.recordDeletePOST)))
	mux.Handle("POST /goals/{metric}/select/{index}", session(http.HandlerFunc(app.selectPOST)))
	mux.Handle("POST /goals/{metric}/select/clear", session(http.HandlerFunc(app.selectClearPOST)))
	mux.Handle("GET /goals/{metric}/chart.png", noSession(noCache(http.HandlerFunc(app.chartPNG))))
	mux.Handle("GET /goals/{metric}/chart.svg", noSession(noCache(http.HandlerFunc(app.chartSVG))))

	mux.Handle("GET /preferences", session(http.HandlerFunc(app.preferencesGET)))
	mux.Handle("POST /preferences", session(http.HandlerFunc(app.preferencesPOST)))
	mux.Handle("GET /preferences/export", session(http.HandlerFunc(app.exportGET)))

	mux.Handle("GET /api/goals/{metric}/projection", noSession(noCache(http.HandlerFunc(app.projectionAPI))))
	mux.Handle("GET /api/healthy", noSession(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /metrics", app.metrics.Handler())

	fileServer, err := app.fileServerHandler(noCache(commonContext(http.HandlerFunc(app.notFound))))
	if err != nil {
		return nil, errors.Wrap(err, "file server")
	}
	mux.Handle("/", fileServer)

	return mux, nil
}

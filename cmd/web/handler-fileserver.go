package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/myrjola/liftlog/internal/errors"
)

// fileServerHandler serves ui/static and falls back to notFound for anything else.
func (app *application) fileServerHandler(notFound http.Handler) (http.Handler, error) {
	fileRoot, err := resolveUIPath("", "static")
	if err != nil {
		return nil, errors.Wrap(err, "resolve static root")
	}
	fileServer := http.FileServer(http.Dir(fileRoot))

	return app.recoverPanic(app.logAndTraceRequest(secureHeaders(cacheForever(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cleanPath := filepath.Clean(r.URL.Path)
			if strings.Contains(cleanPath, "..") {
				notFound.ServeHTTP(w, r)
				return
			}
			stat, statErr := os.Stat(filepath.Join(fileRoot, cleanPath))
			if statErr != nil || stat.IsDir() {
				notFound.ServeHTTP(w, r)
				return
			}

			fileServer.ServeHTTP(w, r)
		}))))), nil
}

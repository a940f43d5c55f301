package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/myrjola/liftlog/internal/contexthelpers"
	"github.com/myrjola/liftlog/internal/errors"
)

type BaseTemplateData struct {
	CurrentPath string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		CurrentPath: contexthelpers.CurrentPath(r.Context()),
	}
}

// findModuleDir locates the directory containing the go.mod file.
func findModuleDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "get working directory")
	}

	for {
		if _, err = os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parentDir := filepath.Dir(dir)
		if parentDir == dir { // If we reached the root directory
			break
		}
		dir = parentDir
	}

	return "", os.ErrNotExist
}

// resolveUIPath resolves a directory under ui/ from the module root unless configured explicitly.
func resolveUIPath(configured string, elem string) (string, error) {
	path := configured
	if path == "" {
		modulePath, err := findModuleDir()
		if err != nil {
			return "", errors.Wrap(err, "find module dir")
		}
		path = filepath.Join(modulePath, "ui", elem)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, "stat ui path", slog.String("path", path))
	}
	if !stat.IsDir() {
		return "", errors.New("ui path is not a directory", slog.String("path", path))
	}
	return path, nil
}

// resolveAndVerifyTemplatePath resolves the template path and verifies it.
//
// If the templatePath is empty, it will attempt to find it from the module root.
func resolveAndVerifyTemplatePath(templatePath string) (string, error) {
	return resolveUIPath(templatePath, "templates")
}

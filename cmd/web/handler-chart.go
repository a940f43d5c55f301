package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/myrjola/liftlog/internal/chartrender"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/progress"
	"github.com/myrjola/liftlog/internal/projection"
)

// maxChartSize bounds the requested chart dimensions.
const maxChartSize = 4096

func (app *application) chartPNG(w http.ResponseWriter, r *http.Request) {
	app.chartExport(w, r, chartrender.FormatPNG, "image/png")
}

func (app *application) chartSVG(w http.ResponseWriter, r *http.Request) {
	app.chartExport(w, r, chartrender.FormatSVG, "image/svg+xml")
}

func (app *application) chartExport(w http.ResponseWriter, r *http.Request, format chartrender.Format, contentType string) {
	metric := r.PathValue("metric")
	gp, err := app.progress.Projection(r.Context(), metric)
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "projection", slog.String("metric", metric)))
		return
	}

	var buf bytes.Buffer
	err = chartrender.Render(&buf, app.progress.Engine(), gp.Projection, gp.Goal.Target, chartrender.Options{
		Title:  gp.Goal.Metric,
		Unit:   gp.Goal.Unit,
		Width:  0,
		Height: 0,
		Format: format,
	})
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "render chart", slog.String("format", string(format))))
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = buf.WriteTo(w)
}

type projectionGoal struct {
	Metric  string  `json:"metric"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Unit    string  `json:"unit"`
}

type projectionResponse struct {
	Goal       projectionGoal              `json:"goal"`
	Projection projection.ProjectionResult `json:"projection"`
	Geometry   projection.Geometry         `json:"geometry"`
	TargetY    float64                     `json:"target_y"`
}

type apiError struct {
	Error string `json:"error"`
}

// projectionAPI serves the projection and chart geometry as JSON. The query parameters width and height size
// the geometry and selected highlights a point.
func (app *application) projectionAPI(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	query := r.URL.Query()

	width, err := parseDimension(query.Get("width"), chartWidth)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid width"})
		return
	}
	height, err := parseDimension(query.Get("height"), chartHeight)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid height"})
		return
	}
	var selected *int
	if raw := query.Get("selected"); raw != "" {
		index, atoiErr := strconv.Atoi(raw)
		if atoiErr != nil || index < 0 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid selected"})
			return
		}
		selected = &index
	}

	chart, err := app.progress.Chart(r.Context(), metric, width, height, selected)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "goal not found"})
			return
		}
		app.logger.LogAttrs(r.Context(), slog.LevelError, "projection api", errors.SlogError(err))
		writeJSON(w, http.StatusInternalServerError, apiError{Error: http.StatusText(http.StatusInternalServerError)})
		return
	}

	writeJSON(w, http.StatusOK, projectionResponse{
		Goal: projectionGoal{
			Metric:  chart.Goal.Metric,
			Current: chart.Goal.Current,
			Target:  chart.Goal.Target,
			Unit:    chart.Goal.Unit,
		},
		Projection: chart.Projection,
		Geometry:   chart.Geometry,
		TargetY:    chart.TargetY,
	})
}

func parseDimension(raw string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse dimension")
	}
	if !(f > 0 && f <= maxChartSize) {
		return 0, errors.New("dimension out of range", slog.Float64("value", f))
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

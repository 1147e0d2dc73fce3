package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/charts"
	"github.com/argo-explorer/dashboard/pkg/render"
)

// ChartDrawer draws rendered views as images.
type ChartDrawer interface {
	Profile(view *render.ProfileView, param string, w io.Writer, format charts.Format) error
	Timeseries(view *render.TimeseriesView, w io.Writer, format charts.Format) error
	Map(view *render.MapView, w io.Writer, format charts.Format) error
}

// ChartHandler renders a posted result as a chart image.
type ChartHandler struct {
	drawer ChartDrawer
	logger *zap.Logger
}

func NewChartHandler(drawer ChartDrawer, logger *zap.Logger) *ChartHandler {
	return &ChartHandler{drawer: drawer, logger: logger}
}

// RegisterRoutes registers the chart handler's routes on the given mux.
func (h *ChartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/charts/{kind}", h.Draw)
}

// Draw handles POST /api/charts/{kind} with kind one of profile, timeseries
// or map. The body is a backend result. Query parameters: format (svg|png),
// param (profile x parameter, defaults to the first inferred one) and the
// date_start/date_end filter for time series.
func (h *ChartHandler) Draw(w http.ResponseWriter, r *http.Request) {
	format, err := charts.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "unknown_format", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	opts, ok := ParseRenderOptions(w, r, h.logger)
	if !ok {
		return
	}
	result, ok := readResult(w, r, h.logger)
	if !ok {
		return
	}

	var buf bytes.Buffer
	kind := r.PathValue("kind")
	switch kind {
	case "profile":
		view := render.BuildProfile(result.Data, result.Viz)
		param := r.URL.Query().Get("param")
		if param == "" && view != nil && len(view.Spec.XOpts) > 0 {
			param = view.Spec.XOpts[0]
		}
		err = h.drawer.Profile(view, param, &buf, format)
	case "timeseries":
		err = h.drawer.Timeseries(render.BuildTimeseries(result.Data, result.Viz, opts.DateRange), &buf, format)
	case "map":
		err = h.drawer.Map(render.BuildMap(result.Data, result.Viz), &buf, format)
	default:
		if err := ErrorResponse(w, http.StatusNotFound, "unknown_chart", "Unknown chart kind: "+kind); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if errors.Is(err, charts.ErrNotEnoughData) {
		if err := ErrorResponse(w, http.StatusUnprocessableEntity, "not_enough_data", "Not enough data to draw this chart"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Failed to write chart", zap.String("kind", kind), zap.Error(err))
	}
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/models"
	"github.com/argo-explorer/dashboard/pkg/render"
)

// maxRegionLength bounds region names in /api/data/region/{id}.
const maxRegionLength = 64

// ============================================================================
// Request/Response Types
// ============================================================================

// CompareRequest for POST /api/compare and POST /api/trajectories
type CompareRequest struct {
	FloatIDs  []string `json:"float_ids"`
	Parameter string   `json:"parameter,omitempty"`
}

// DataResponse carries a direct view's result and its derived view.
type DataResponse struct {
	Result *models.QueryResult `json:"result"`
	View   render.View         `json:"view"`
}

// ============================================================================
// Handler
// ============================================================================

// DataBackend serves the backend's direct data views.
type DataBackend interface {
	DepthProfile(ctx context.Context, floatID, parameter string) (*models.QueryResult, error)
	Trajectory(ctx context.Context, floatID string) (*models.QueryResult, error)
	Timeseries(ctx context.Context, floatID, parameter string) (*models.QueryResult, error)
	RegionData(ctx context.Context, region string) (*models.QueryResult, error)
	CompareFloats(ctx context.Context, floatIDs []string, parameter string) (*models.QueryResult, error)
	MultipleTrajectories(ctx context.Context, floatIDs []string) (*models.QueryResult, error)
}

// DataHandler fetches float and region views without going through a
// natural-language query.
type DataHandler struct {
	backend DataBackend
	gate    interface{ Connected() bool }
	logger  *zap.Logger
}

func NewDataHandler(backend DataBackend, gate interface{ Connected() bool }, logger *zap.Logger) *DataHandler {
	return &DataHandler{backend: backend, gate: gate, logger: logger}
}

// RegisterRoutes registers the data handler's routes on the given mux.
func (h *DataHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/data/{kind}/{id}", h.Get)
	mux.HandleFunc("POST /api/compare", h.Compare)
	mux.HandleFunc("POST /api/trajectories", h.Trajectories)
}

// Get handles GET /api/data/{kind}/{id} for kind depth_profile, trajectory,
// timeseries (id is a float) and region (id is a region name). The optional
// "parameter" query value selects the measured variable.
func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseRenderOptions(w, r, h.logger)
	if !ok {
		return
	}
	if !h.connected(w) {
		return
	}

	parameter := strings.TrimSpace(r.URL.Query().Get("parameter"))
	ctx := r.Context()

	var result *models.QueryResult
	var err error
	switch kind := r.PathValue("kind"); kind {
	case "depth_profile", "trajectory", "timeseries":
		id, ok := ParseFloatID(w, r, h.logger)
		if !ok {
			return
		}
		switch kind {
		case "depth_profile":
			result, err = h.backend.DepthProfile(ctx, id, parameter)
		case "trajectory":
			result, err = h.backend.Trajectory(ctx, id)
		default:
			result, err = h.backend.Timeseries(ctx, id, parameter)
		}
	case "region":
		region := strings.TrimSpace(r.PathValue("id"))
		if region == "" || len(region) > maxRegionLength {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_region", "Invalid region name"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		result, err = h.backend.RegionData(ctx, region)
	default:
		if err := ErrorResponse(w, http.StatusNotFound, "unknown_view", "Unknown data view: "+kind); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.respondResult(w, result, err, opts)
}

// Compare handles POST /api/compare: one parameter across two or more floats.
func (h *DataHandler) Compare(w http.ResponseWriter, r *http.Request) {
	h.multi(w, r, func(ctx context.Context, req CompareRequest) (*models.QueryResult, error) {
		return h.backend.CompareFloats(ctx, req.FloatIDs, req.Parameter)
	})
}

// Trajectories handles POST /api/trajectories: positions of several floats.
func (h *DataHandler) Trajectories(w http.ResponseWriter, r *http.Request) {
	h.multi(w, r, func(ctx context.Context, req CompareRequest) (*models.QueryResult, error) {
		return h.backend.MultipleTrajectories(ctx, req.FloatIDs)
	})
}

func (h *DataHandler) multi(w http.ResponseWriter, r *http.Request, fetch func(context.Context, CompareRequest) (*models.QueryResult, error)) {
	opts, ok := ParseRenderOptions(w, r, h.logger)
	if !ok {
		return
	}
	var req CompareRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if !ValidFloatIDs(req.FloatIDs) {
		WriteError(w, h.logger, fmt.Errorf("%w: malformed float ID", apperrors.ErrInvalidRequest))
		return
	}
	if !h.connected(w) {
		return
	}

	result, err := fetch(r.Context(), req)
	h.respondResult(w, result, err, opts)
}

func (h *DataHandler) connected(w http.ResponseWriter) bool {
	if h.gate != nil && !h.gate.Connected() {
		WriteError(w, h.logger, apperrors.ErrNotConnected)
		return false
	}
	return true
}

func (h *DataHandler) respondResult(w http.ResponseWriter, result *models.QueryResult, err error, opts render.Options) {
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	respond(w, h.logger, DataResponse{Result: result, View: render.Build(result, opts)})
}

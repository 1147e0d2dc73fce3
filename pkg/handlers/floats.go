package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/render"
	"github.com/argo-explorer/dashboard/pkg/roster"
)

// FloatsResponse for GET /api/floats
type FloatsResponse struct {
	*roster.Roster
	ActiveCount int    `json:"active_count"`
	Label       string `json:"label"`
	ActiveLabel string `json:"active_label"`
}

// RosterLoader loads the float network panel.
type RosterLoader interface {
	Load(ctx context.Context) (*roster.Roster, error)
}

// FloatHandler serves the float roster.
type FloatHandler struct {
	roster RosterLoader
	logger *zap.Logger
}

func NewFloatHandler(loader RosterLoader, logger *zap.Logger) *FloatHandler {
	return &FloatHandler{roster: loader, logger: logger}
}

// RegisterRoutes registers the float handler's routes on the given mux.
func (h *FloatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/floats", h.List)
}

// List handles GET /api/floats
func (h *FloatHandler) List(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.roster.Load(r.Context())
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	total := len(loaded.Floats)
	if loaded.TotalCount != nil {
		total = *loaded.TotalCount
	}
	active := loaded.ActiveCount()

	respond(w, h.logger, FloatsResponse{
		Roster:      loaded,
		ActiveCount: active,
		Label:       render.Pluralize(total, "float"),
		ActiveLabel: render.Pluralize(active, "active float"),
	})
}
